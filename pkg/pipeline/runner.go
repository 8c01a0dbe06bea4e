package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/trussview/pkg/cache"
	"github.com/matzehuels/trussview/pkg/errors"
	"github.com/matzehuels/trussview/pkg/manifest"
	"github.com/matzehuels/trussview/pkg/observability"
	"github.com/matzehuels/trussview/pkg/render"
)

// Runner executes runs with caching.
//
// The Runner is stateless except for its collaborators; multiple goroutines
// can use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// Store receives the manifest in addition to the manifest file in the
	// output directory. Optional.
	Store manifest.Store
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Result contains the outputs of a run.
type Result struct {
	Input    *Input
	Views    []View
	Manifest *manifest.Manifest
	Stats    Stats
}

// Stats contains run statistics.
type Stats struct {
	Views    int
	Images   int
	Cached   int
	Skipped  int
	Failed   int
	LoadTime time.Duration
	Duration time.Duration
}

// outcome is the result of one view, stored by plan index so the manifest
// keeps plan order whatever the worker scheduling.
type outcome struct {
	images   []manifest.Image
	failures []manifest.Failure
	skipped  *manifest.Failure
}

// Execute runs load, plan, build and render for one input directory and
// writes the manifest. Input errors and cancellation are returned; errors
// that only affect one view are recorded in the manifest.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	start := time.Now()
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger

	in, err := Parse(ctx, opts)
	if err != nil {
		return nil, err
	}
	result := &Result{Input: in}
	result.Stats.LoadTime = time.Since(start)

	logger.Info("loaded model",
		"nodes", in.Topology.NodeCount(),
		"elements", in.Topology.ElementCount(),
		"loads", len(in.Records),
		"duration", result.Stats.LoadTime)
	for _, name := range in.Missing {
		logger.Info("optional table not found", "table", name)
	}
	if len(in.Issues) > 0 {
		logger.Warn("skipped rows", "count", len(in.Issues))
		for _, is := range in.Issues {
			logger.Debug("skipped row", "row", is.String())
		}
	}

	result.Views = Plan(in.Topology, in.Records)
	result.Stats.Views = len(result.Views)
	builder := NewBuilder(in.Topology, opts)
	renderers := opts.Renderers()

	outcomes := make([]outcome, len(result.Views))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, v := range result.Views {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o, err := r.runView(gctx, builder, v, renderers, opts)
			outcomes[i] = o
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := manifest.New(opts.InputDir)
	m.InputHash = in.InputHash
	for _, o := range outcomes {
		m.Images = append(m.Images, o.images...)
		m.Failures = append(m.Failures, o.failures...)
		if o.skipped != nil {
			m.Skipped = append(m.Skipped, *o.skipped)
		}
	}
	for _, img := range m.Images {
		if img.Cached {
			result.Stats.Cached++
		}
	}
	result.Manifest = m
	result.Stats.Images = len(m.Images)
	result.Stats.Skipped = len(m.Skipped)
	result.Stats.Failed = len(m.Failures)

	if err := manifest.NewFileStore(opts.OutputDir).Save(ctx, m); err != nil {
		return result, err
	}
	if r.Store != nil {
		if err := r.Store.Save(ctx, m); err != nil {
			// The images and the local manifest exist; a shared store outage
			// only loses the remote copy.
			logger.Error("manifest store failed", "err", errors.UserMessage(err))
		}
	}

	result.Stats.Duration = time.Since(start)
	logger.Info("rendered images",
		"images", result.Stats.Images,
		"cached", result.Stats.Cached,
		"skipped", result.Stats.Skipped,
		"failed", result.Stats.Failed,
		"duration", result.Stats.Duration)
	return result, nil
}

// runView builds and renders one view. Only cancellation is returned as an
// error; everything else ends up in the outcome.
func (r *Runner) runView(ctx context.Context, b *Builder, v View, renderers []render.Renderer, opts Options) (o outcome, err error) {
	if err := ctx.Err(); err != nil {
		return o, err
	}
	start := time.Now()
	observability.Pipeline().OnViewStart(ctx, v.Name, v.Kind)
	defer func() {
		var viewErr error
		if len(o.failures) > 0 {
			viewErr = fmt.Errorf("%s", o.failures[0].Message)
		}
		observability.Pipeline().OnViewComplete(ctx, v.Name, v.Kind, time.Since(start), viewErr)
	}()

	s, fr, err := b.Build(v)
	if fr != nil {
		opts.Logger.Debug("window",
			"view", v.Name,
			"ref", fr.Reference,
			"kept", fr.NodesKept,
			"removed", fr.NodesRemoved,
			"competitors", fr.CompetitorsRemoved,
			"elements_removed", fr.ElementsRemoved)
	}
	switch {
	case errors.Is(err, errors.ErrCodeFilterEmpty):
		opts.Logger.Warn("empty window, view skipped", "view", v.Name)
		f := failure(v, err)
		o.skipped = &f
		return o, nil
	case err != nil:
		opts.Logger.Error("view failed", "view", v.Name, "err", errors.UserMessage(err))
		o.failures = append(o.failures, failure(v, err))
		return o, nil
	}
	opts.Logger.Debug("scene", "view", v.Name, "stats", s.String())

	o.images, o.failures, err = r.renderView(ctx, v, s, renderers, opts)
	return o, err
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	var err error
	if r.Cache != nil {
		err = r.Cache.Close()
	}
	if r.Store != nil {
		if serr := r.Store.Close(context.Background()); err == nil {
			err = serr
		}
	}
	return err
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

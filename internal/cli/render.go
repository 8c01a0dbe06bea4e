package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/trussview/pkg/errors"
	"github.com/matzehuels/trussview/pkg/manifest"
	"github.com/matzehuels/trussview/pkg/observability"
	"github.com/matzehuels/trussview/pkg/pipeline"
)

// renderFlags holds the command-line flags for the render command. Flags
// left unset keep the value from --config or the pipeline default.
type renderFlags struct {
	output  string
	config  string
	formats string
	groupBy string
	radius  float64
	width   int
	height  int
	workers int
	planar  bool
	refresh bool
	backend backendFlags
}

// renderCommand creates the render command.
func (c *CLI) renderCommand() *cobra.Command {
	var f renderFlags

	cmd := &cobra.Command{
		Use:   "render [input-dir]",
		Short: "Render the report figures of a solver output directory",
		Long: `Render reads the model and load tables of an input directory and writes
one full-model image, one zoomed image per fitting load and one image per
winch load group, plus a manifest.json listing them.

The input directory may also come from the input_dir key of --config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := f.options(cmd.Flags(), args)
			if err != nil {
				return err
			}
			return c.runRender(cmd.Context(), opts, f.backend)
		},
	}

	cmd.Flags().StringVarP(&f.output, "output", "o", "", "output directory (default <input-dir>/figures)")
	cmd.Flags().StringVar(&f.config, "config", "", "TOML file with run options")
	cmd.Flags().StringVarP(&f.formats, "format", "f", "", "output format(s): png (default), json (comma-separated)")
	cmd.Flags().StringVar(&f.groupBy, "group-by", "", "winch load grouping: case (default), source")
	cmd.Flags().Float64Var(&f.radius, "radius", pipeline.DefaultRadius, "half-width of the zoom window around a fitting")
	cmd.Flags().IntVar(&f.width, "width", 0, "image width in pixels")
	cmd.Flags().IntVar(&f.height, "height", 0, "image height in pixels")
	cmd.Flags().IntVar(&f.workers, "workers", 1, "views rendered concurrently")
	cmd.Flags().BoolVar(&f.planar, "planar", false, "draw fitting loads in the XY plane only")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "ignore cached images")
	f.backend.register(cmd)

	return cmd
}

// options merges the config file, the positional argument and every flag
// the user set explicitly.
func (f *renderFlags) options(flags *pflag.FlagSet, args []string) (pipeline.Options, error) {
	var opts pipeline.Options
	if f.config != "" {
		var err error
		if opts, err = pipeline.LoadConfig(f.config); err != nil {
			return opts, err
		}
		// Relative paths in a config file are relative to the file.
		base := filepath.Dir(f.config)
		if opts.InputDir != "" && !filepath.IsAbs(opts.InputDir) {
			opts.InputDir = filepath.Join(base, opts.InputDir)
		}
		if opts.OutputDir != "" && !filepath.IsAbs(opts.OutputDir) {
			opts.OutputDir = filepath.Join(base, opts.OutputDir)
		}
	}
	if len(args) > 0 {
		opts.InputDir = args[0]
	}
	if opts.InputDir == "" {
		return opts, errors.New(errors.ErrCodeInvalidInput, "no input directory: pass one or set input_dir in --config")
	}

	if flags.Changed("output") {
		opts.OutputDir = f.output
	}
	if flags.Changed("format") {
		opts.Formats = parseFormats(f.formats)
		if err := pipeline.ValidateFormats(opts.Formats); err != nil {
			return opts, err
		}
	}
	if flags.Changed("group-by") {
		opts.GroupBy = f.groupBy
	}
	if flags.Changed("radius") {
		opts.Radius = f.radius
	}
	if flags.Changed("width") {
		opts.Width = f.width
	}
	if flags.Changed("height") {
		opts.Height = f.height
	}
	if flags.Changed("workers") {
		opts.Workers = f.workers
	}
	if flags.Changed("planar") {
		opts.Annotation.Planar = f.planar
	}
	if flags.Changed("refresh") {
		opts.Refresh = f.refresh
	}
	return opts, nil
}

// runRender executes one batch and prints its summary. A batch with failed
// views returns an error after the summary so scripts can detect it.
func (c *CLI) runRender(ctx context.Context, opts pipeline.Options, b backendFlags) error {
	logger := loggerFromContext(ctx)
	opts.Logger = logger
	opts.SetDefaults()

	runner, err := c.newRunner(ctx, b)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinnerWithContext(ctx, "Rendering views...")
	prev := observability.Pipeline()
	observability.SetPipelineHooks(&progressHooks{PipelineHooks: prev, spinner: spinner})
	defer observability.SetPipelineHooks(prev)

	prog := newProgress(logger)
	spinner.Start()
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Rendered %d views", result.Stats.Views))

	m := result.Manifest
	printSuccess("Report figures written")
	printFile(filepath.Join(opts.OutputDir, manifest.Filename))
	printStats(result.Stats.Images, result.Stats.Cached, result.Stats.Skipped, result.Stats.Failed)
	if line, ok := c.cacheSummary(); ok {
		printDetail("%s", line)
	}
	for _, s := range m.Skipped {
		printWarning("%s skipped: %s", s.Name, s.Message)
	}
	for _, f := range m.Failures {
		printError("%s: %s", f.Name, f.Message)
	}
	printNewline()
	printNextStep("Browse", appName+" serve "+opts.OutputDir)

	if !m.OK() {
		return errors.New(errors.ErrCodeRender, "%d of %d views failed", len(m.Failures), result.Stats.Views)
	}
	return nil
}

// cacheSummary reports the cache lookups of the current execution. It is
// empty when the cache was bypassed.
func (c *CLI) cacheSummary() (string, bool) {
	if c.hooks == nil {
		return "", false
	}
	hits, misses := c.hooks.CacheStats()
	if hits+misses == 0 {
		return "", false
	}
	return fmt.Sprintf("cache: %d hits, %d misses", hits, misses), true
}

// progressHooks forwards pipeline events and counts finished views on the
// spinner line.
type progressHooks struct {
	observability.PipelineHooks
	spinner *Spinner
	done    atomic.Int64
}

func (h *progressHooks) OnViewComplete(ctx context.Context, name, kind string, d time.Duration, err error) {
	h.PipelineHooks.OnViewComplete(ctx, name, kind, d, err)
	h.spinner.Update("Rendering views (%d done)...", h.done.Add(1))
}

// Package pipeline turns a solver output directory into the set of report
// images: one full-model view, one detail view per fitting (vector) load and
// one view per group of winch (directional) loads.
//
// # Architecture
//
// A run has three stages:
//
//  1. Load: read the structural and load tables ([io.ReadModel], [io.ReadLoads])
//  2. Plan and build: decide the views ([Plan]) and assemble one scene per view
//     on its own copy of the topology ([Builder.Build])
//  3. Render: encode each scene in every requested format, with caching, and
//     record the outcome in a manifest
//
// Failures that only affect one view (an empty window, a renderer error) are
// logged and recorded in the manifest; the batch continues. Only input errors
// and cancellation abort a run.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	opts := pipeline.Options{InputDir: "run/output"}
//	result, err := runner.Execute(ctx, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	path := result.Manifest.Paths()["View_01_Full_Model"]
package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/trussview/pkg/cache"
	"github.com/matzehuels/trussview/pkg/errors"
	tio "github.com/matzehuels/trussview/pkg/io"
	"github.com/matzehuels/trussview/pkg/load"
	"github.com/matzehuels/trussview/pkg/render"
	"github.com/matzehuels/trussview/pkg/render/raster"
)

const (
	// DefaultRadius is the half-width of a detail window in model units.
	DefaultRadius = 1500.0

	// DefaultDistance is the camera distance of detail and group views.
	DefaultDistance = 6000.0

	// DefaultFullBoundarySize is the support marker size in the full view.
	DefaultFullBoundarySize = 10.0

	// DefaultDetailBoundarySize is the support marker size in zoomed views.
	DefaultDetailBoundarySize = 25.0

	// DefaultOutputSubdir is used when no output directory is given.
	DefaultOutputSubdir = "figures"
)

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	render.FormatPNG:  true,
	render.FormatJSON: true,
}

// Options configures a run. It can be loaded from a TOML file with
// [LoadConfig] and overridden by command line flags.
type Options struct {
	InputDir  string `json:"input_dir" toml:"input_dir"`
	OutputDir string `json:"output_dir,omitempty" toml:"output_dir"`

	Model tio.ModelFiles `json:"model" toml:"model"`
	Loads tio.LoadFiles  `json:"loads" toml:"loads"`

	// GroupBy selects how winch loads are grouped: "case" or "source".
	GroupBy string `json:"group_by,omitempty" toml:"group_by"`

	Radius             float64 `json:"radius,omitempty" toml:"radius"`
	DetailDistance     float64 `json:"detail_distance,omitempty" toml:"detail_distance"`
	GroupDistance      float64 `json:"group_distance,omitempty" toml:"group_distance"`
	FullBoundarySize   float64 `json:"full_boundary_size,omitempty" toml:"full_boundary_size"`
	DetailBoundarySize float64 `json:"detail_boundary_size,omitempty" toml:"detail_boundary_size"`

	Width   int      `json:"width,omitempty" toml:"width"`
	Height  int      `json:"height,omitempty" toml:"height"`
	Formats []string `json:"formats,omitempty" toml:"formats"`

	// Palette overrides PNG colors by name, e.g. structure = "#008000".
	Palette map[string]string `json:"palette,omitempty" toml:"palette"`

	// Workers is the number of views rendered concurrently.
	Workers int `json:"workers,omitempty" toml:"workers"`

	Annotation load.Config `json:"annotation" toml:"annotation"`

	// Refresh ignores cached images and overwrites them.
	Refresh bool `json:"refresh,omitempty" toml:"refresh"`

	Logger *log.Logger `json:"-" toml:"-"`
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidInput, "invalid format: %q (must be one of: png, json)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// SetDefaults fills every zero field. It is idempotent.
func (o *Options) SetDefaults() {
	model, loads := tio.DefaultModelFiles(), tio.DefaultLoadFiles()
	if o.Model == (tio.ModelFiles{}) {
		o.Model = model
	}
	if o.Loads == (tio.LoadFiles{}) {
		o.Loads = loads
	}
	if o.OutputDir == "" && o.InputDir != "" {
		o.OutputDir = filepath.Join(o.InputDir, DefaultOutputSubdir)
	}
	if o.GroupBy == "" {
		o.GroupBy = string(tio.GroupByCase)
	}
	if o.Radius == 0 {
		o.Radius = DefaultRadius
	}
	if o.DetailDistance == 0 {
		o.DetailDistance = DefaultDistance
	}
	if o.GroupDistance == 0 {
		o.GroupDistance = DefaultDistance
	}
	if o.FullBoundarySize == 0 {
		o.FullBoundarySize = DefaultFullBoundarySize
	}
	if o.DetailBoundarySize == 0 {
		o.DetailBoundarySize = DefaultDetailBoundarySize
	}
	if o.Width == 0 {
		o.Width = raster.DefaultWidth
	}
	if o.Height == 0 {
		o.Height = raster.DefaultHeight
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{render.FormatPNG}
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Workers > runtime.NumCPU()*4 {
		o.Workers = runtime.NumCPU() * 4
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate checks the options after [Options.SetDefaults].
func (o *Options) Validate() error {
	if o.InputDir == "" {
		return errors.New(errors.ErrCodeInvalidInput, "input directory is required")
	}
	if fi, err := os.Stat(o.InputDir); err != nil || !fi.IsDir() {
		return errors.New(errors.ErrCodeFileNotFound, "input directory %s does not exist", o.InputDir)
	}
	if o.Model.Nodes == "" || o.Model.Elements == "" {
		return errors.New(errors.ErrCodeInvalidInput, "node and element tables are required")
	}
	if _, err := tio.ParseGroupBy(o.GroupBy); err != nil {
		return err
	}
	if o.Radius <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "radius must be positive, got %g", o.Radius)
	}
	if o.DetailDistance <= 0 || o.GroupDistance <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "camera distances must be positive")
	}
	if o.Width <= 0 || o.Height <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "invalid image size %dx%d", o.Width, o.Height)
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if _, err := raster.DefaultPalette().Override(o.Palette); err != nil {
		return err
	}
	if o.Annotation.ArrowLength < 0 || o.Annotation.Epsilon < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "arrow length and epsilon must not be negative")
	}
	return nil
}

// ValidateAndSetDefaults applies defaults and validates.
func (o *Options) ValidateAndSetDefaults() error {
	o.SetDefaults()
	return o.Validate()
}

// groupBy returns the parsed grouping; Validate has already checked it.
func (o *Options) groupBy() tio.GroupBy {
	g, _ := tio.ParseGroupBy(o.GroupBy)
	return g
}

// ArtifactKeyOpts returns cache key options for one format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	k := cache.ArtifactKeyOpts{Format: format}
	if format == render.FormatPNG {
		k.Width, k.Height = o.Width, o.Height
		k.Palette = o.Palette
	}
	return k
}

// Renderers returns one renderer per requested format, in request order
// with duplicates removed.
func (o *Options) Renderers() []render.Renderer {
	var out []render.Renderer
	seen := make([]string, 0, len(o.Formats))
	for _, f := range o.Formats {
		if slices.Contains(seen, f) {
			continue
		}
		seen = append(seen, f)
		switch f {
		case render.FormatPNG:
			out = append(out, raster.New(o.rasterOptions()...))
		case render.FormatJSON:
			out = append(out, render.JSON{})
		}
	}
	return out
}

// rasterOptions configures the PNG renderer. An invalid palette is caught by
// Validate; here it falls back to the defaults.
func (o *Options) rasterOptions() []raster.Option {
	opts := []raster.Option{raster.WithSize(o.Width, o.Height)}
	if len(o.Palette) > 0 {
		if p, err := raster.DefaultPalette().Override(o.Palette); err == nil {
			opts = append(opts, raster.WithPalette(p))
		}
	}
	return opts
}

// LoadConfig reads options from a TOML file. Keys that do not map to an
// option are rejected so that typos do not pass silently.
func LoadConfig(path string) (Options, error) {
	var o Options
	md, err := toml.DecodeFile(path, &o)
	if os.IsNotExist(err) {
		return o, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s not found", path)
	}
	if err != nil {
		return o, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return o, errors.New(errors.ErrCodeInvalidFormat, "config %s: unknown key %s", path, keyList(undecoded))
	}
	return o, nil
}

func keyList(keys []toml.Key) string {
	s := keys[0].String()
	if len(keys) > 1 {
		s += fmt.Sprintf(" (and %d more)", len(keys)-1)
	}
	return s
}

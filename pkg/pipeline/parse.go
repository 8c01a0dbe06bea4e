package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/matzehuels/trussview/pkg/cache"
	tio "github.com/matzehuels/trussview/pkg/io"
	"github.com/matzehuels/trussview/pkg/load"
	"github.com/matzehuels/trussview/pkg/observability"
	"github.com/matzehuels/trussview/pkg/topology"
)

// Input is the loaded content of an input directory.
type Input struct {
	Topology  *topology.Topology
	Records   []load.Record
	Missing   []string   // optional tables not found
	Issues    []tio.Issue // skipped rows
	InputHash string
}

// Parse reads the model and load tables named in opts. Only problems with the
// required node and element tables are returned as errors.
func Parse(ctx context.Context, opts Options) (*Input, error) {
	start := time.Now()
	observability.Pipeline().OnLoadStart(ctx, opts.InputDir)

	in, err := parse(opts)
	var nodes, elements, loads int
	if in != nil {
		nodes, elements, loads = in.Topology.NodeCount(), in.Topology.ElementCount(), len(in.Records)
	}
	observability.Pipeline().OnLoadComplete(ctx, opts.InputDir, nodes, elements, loads, time.Since(start), err)
	return in, err
}

func parse(opts Options) (*Input, error) {
	model, err := tio.ReadModel(opts.InputDir, opts.Model)
	if err != nil {
		return nil, err
	}
	loads, err := tio.ReadLoads(opts.InputDir, opts.Loads, opts.groupBy())
	if err != nil {
		return nil, err
	}

	in := &Input{
		Topology: model.Topology,
		Records:  loads.Records,
		Missing:  append(model.Missing, loads.Missing...),
		Issues:   append(model.Issues, loads.Issues...),
	}

	var paths []string
	for _, name := range []string{
		opts.Model.Nodes, opts.Model.Elements, opts.Model.Rigids, opts.Model.Boundary,
		opts.Loads.Vector, opts.Loads.Directional,
	} {
		if name != "" {
			paths = append(paths, filepath.Join(opts.InputDir, name))
		}
	}
	// The hash only identifies the run in the manifest; a failure is not fatal.
	in.InputHash, _ = cache.HashFiles(paths...)
	return in, nil
}

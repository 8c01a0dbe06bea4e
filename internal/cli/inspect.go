package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/trussview/pkg/errors"
	tio "github.com/matzehuels/trussview/pkg/io"
	"github.com/matzehuels/trussview/pkg/load"
	"github.com/matzehuels/trussview/pkg/pipeline"
	"github.com/matzehuels/trussview/pkg/topology"
)

type inspectFlags struct {
	ref     int
	radius  float64
	export  string
	groupBy string
	issues  bool
}

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var f inspectFlags

	cmd := &cobra.Command{
		Use:   "inspect <input-dir>",
		Short: "Print model statistics and zoom windows",
		Long: `Inspect loads the tables of an input directory and prints what a render
would work with: model size, supports, loads and the planned views.

With --ref the zoom window around that node is computed the way a fitting
view computes it. With --export the (windowed) structural tables are
written as CSV for checking in a spreadsheet.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd.Context(), args[0], f)
		},
	}

	cmd.Flags().IntVar(&f.ref, "ref", 0, "node id to center a zoom window on")
	cmd.Flags().Float64Var(&f.radius, "radius", pipeline.DefaultRadius, "half-width of the zoom window")
	cmd.Flags().StringVar(&f.export, "export", "", "directory to write the (windowed) tables to")
	cmd.Flags().StringVar(&f.groupBy, "group-by", "", "winch load grouping: case (default), source")
	cmd.Flags().BoolVar(&f.issues, "issues", false, "list every skipped row")

	return cmd
}

func (c *CLI) runInspect(ctx context.Context, dir string, f inspectFlags) error {
	opts := pipeline.Options{InputDir: dir, GroupBy: f.groupBy, Radius: f.radius, Logger: loggerFromContext(ctx)}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}
	in, err := pipeline.Parse(ctx, opts)
	if err != nil {
		return err
	}
	t := in.Topology

	printInfo("Model %s", StyleHighlight.Render(dir))
	printModel(t)
	printLoads(in.Records)
	printKeyValue("Views", StyleNumber.Render(fmt.Sprint(len(pipeline.Plan(t, in.Records)))))
	if len(in.Missing) > 0 {
		printKeyValue("Missing", strings.Join(in.Missing, ", "))
	}
	if err := t.Validate(); err != nil {
		printWarning("%s", errors.UserMessage(err))
	}
	if n := len(in.Issues); n > 0 {
		printWarning("%d rows skipped", n)
		if f.issues {
			for _, is := range in.Issues {
				printDetail("%s", is.String())
			}
		}
	}

	export := t
	if f.ref != 0 {
		window := t.Clone()
		ref := topology.NodeID(f.ref)
		fr, err := topology.FilterInRange(window, ref, opts.Radius, topology.WithCompetitors(competitors(in.Records, ref)...))
		if err != nil && !errors.Is(err, errors.ErrCodeFilterEmpty) {
			return err
		}
		printNewline()
		printWindow(fr)
		if err != nil {
			printWarning("%s", errors.UserMessage(err))
		}
		export = window
	}

	if f.export != "" {
		if same, _ := samePath(f.export, dir); same {
			return errors.New(errors.ErrCodeInvalidPath, "refusing to export over the input tables in %s", dir)
		}
		if err := tio.ExportTables(f.export, export, opts.Model); err != nil {
			return err
		}
		printNewline()
		printSuccess("Tables exported")
		for _, name := range []string{opts.Model.Nodes, opts.Model.Elements, opts.Model.Rigids, opts.Model.Boundary} {
			printFile(filepath.Join(f.export, name))
		}
	}
	return nil
}

func printModel(t *topology.Topology) {
	printKeyValue("Nodes", StyleNumber.Render(fmt.Sprint(t.NodeCount())))
	printKeyValue("Elements", StyleNumber.Render(fmt.Sprint(t.ElementCount())))
	printKeyValue("Rigid links", fmt.Sprintf("%s (%d active)",
		StyleNumber.Render(fmt.Sprint(len(t.RigidLinks()))), len(t.ActiveRigidLinks())))
	printKeyValue("Supports", StyleNumber.Render(fmt.Sprint(len(t.Boundary()))))
	if b, ok := t.Bounds(); ok {
		size := b.Size()
		printKeyValue("Extent", fmt.Sprintf("%.6g x %.6g x %.6g", size.X, size.Y, size.Z))
	}
}

func printLoads(records []load.Record) {
	var vector, directional int
	sources := make(map[string]bool)
	groups := make(map[string]bool)
	for _, r := range records {
		switch r.Kind {
		case load.KindVector:
			vector++
			sources[r.Source] = true
		case load.KindDirectional:
			directional++
			groups[r.Group] = true
		}
	}
	printKeyValue("Fittings", fmt.Sprintf("%s loads, %d sources", StyleNumber.Render(fmt.Sprint(vector)), len(sources)))
	printKeyValue("Winches", fmt.Sprintf("%s loads, %d groups", StyleNumber.Render(fmt.Sprint(directional)), len(groups)))
}

func printWindow(fr *topology.FilterResult) {
	printInfo("Window around node %d (radius %g)", fr.Reference, fr.Radius)
	printKeyValue("Kept", StyleNumber.Render(fmt.Sprint(fr.NodesKept)))
	printKeyValue("Removed", fmt.Sprint(fr.NodesRemoved))
	printKeyValue("Competitors", fmt.Sprint(fr.CompetitorsRemoved))
	printKeyValue("Elements", fmt.Sprintf("%d removed", fr.ElementsRemoved))
	printKeyValue("Rigid links", fmt.Sprintf("%d removed", fr.RigidLinksRemoved))
}

// competitors returns the vector load nodes other than ref, the same set a
// fitting view excludes.
func competitors(records []load.Record, ref topology.NodeID) []topology.NodeID {
	var out []topology.NodeID
	seen := make(map[topology.NodeID]bool)
	for _, r := range records {
		if r.Kind == load.KindVector && r.Node != ref && !seen[r.Node] {
			seen[r.Node] = true
			out = append(out, r.Node)
		}
	}
	return out
}

func samePath(a, b string) (bool, error) {
	aa, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	bb, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return aa == bb, nil
}

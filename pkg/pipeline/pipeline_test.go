package pipeline

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/trussview/pkg/cache"
	"github.com/matzehuels/trussview/pkg/errors"
	tio "github.com/matzehuels/trussview/pkg/io"
	"github.com/matzehuels/trussview/pkg/load"
	"github.com/matzehuels/trussview/pkg/manifest"
	"github.com/matzehuels/trussview/pkg/render"
	"github.com/matzehuels/trussview/pkg/scene"
	"github.com/matzehuels/trussview/pkg/topology"
)

const (
	fixtureNodes = "NodeID,X,Y,Z\n1,0,0,0\n2,1000,0,0\n3,1000,1000,0\n4,5000,0,0\n5,6000,0,0\n"
	fixtureElems = "ElementID,NodeIDs\n10,1;2\n11,2;3\n12,4;5\n13,2;4\n"
	fixtureSPC   = "NodeID\n1\n5\n"
	fixtureMF    = "Type,MF_ID,LoadCaseID,NodeID,SWL(Ton),Angle_H(deg),Angle_V(deg),Calc_Fx,Calc_Fy,Calc_Fz,Result\n" +
		"MF,MF-1,1,1,10,0,0,0,0,-10,Success\n" +
		"MF,MF-2,1,3,5,0,0,3,4,0,Success\n" +
		"MF,MF-3,1,99,5,0,0,1,0,0,Success\n" +
		"MF,MF-4,1,4,5,0,0,1,0,0,Failed\n"
	fixtureWinch = "CaseName,WinchID,LoadCaseID,NodeID,Input_Fx(Ton),Input_Fy(Ton),Input_Fz(Ton),Final_Fx,Final_Fy,Final_Fz,Location\n" +
		"LC1,W1,1,5,1,0,0,1,0,0,Deck\n" +
		"LC1,W2,1,2,0,0,-2,0,0,-2,Deck\n" +
		"LC2,W1,2,77,1,0,0,1,0,0,Deck\n"
)

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	m, l := tio.DefaultModelFiles(), tio.DefaultLoadFiles()
	for name, content := range map[string]string{
		m.Nodes:       fixtureNodes,
		m.Elements:    fixtureElems,
		m.Boundary:    fixtureSPC,
		l.Vector:      fixtureMF,
		l.Directional: fixtureWinch,
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func fixtureInput(t *testing.T) *Input {
	t.Helper()
	opts := Options{InputDir: fixtureDir(t)}
	opts.SetDefaults()
	in, err := Parse(context.Background(), opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return in
}

func TestValidateFormat(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{"png", false},
		{"json", false},
		{"svg", true},
		{"PNG", true}, // case-sensitive
		{"", true},
	}
	for _, tt := range tests {
		err := ValidateFormat(tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormat(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
		}
	}
	if err := ValidateFormats([]string{"png", "pdf"}); err == nil {
		t.Error("invalid format should fail")
	}
}

func TestSetDefaults(t *testing.T) {
	o := Options{InputDir: "run"}
	o.SetDefaults()
	if o.Radius != DefaultRadius || o.DetailDistance != DefaultDistance || o.Workers != 1 {
		t.Errorf("defaults = %+v", o)
	}
	if o.OutputDir != filepath.Join("run", DefaultOutputSubdir) {
		t.Errorf("OutputDir = %q", o.OutputDir)
	}
	if o.Model != tio.DefaultModelFiles() || o.GroupBy != "case" || o.Logger == nil {
		t.Errorf("defaults = %+v", o)
	}
	if len(o.Formats) != 1 || o.Formats[0] != render.FormatPNG {
		t.Errorf("Formats = %v", o.Formats)
	}

	again := o
	again.SetDefaults()
	if again.OutputDir != o.OutputDir || again.Radius != o.Radius {
		t.Error("SetDefaults is not idempotent")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		mutate func(*Options)
		code   errors.Code
	}{
		{"ok", func(*Options) {}, ""},
		{"no input", func(o *Options) { o.InputDir = "" }, errors.ErrCodeInvalidInput},
		{"missing input", func(o *Options) { o.InputDir = filepath.Join(dir, "nope") }, errors.ErrCodeFileNotFound},
		{"bad group", func(o *Options) { o.GroupBy = "deck" }, errors.ErrCodeInvalidInput},
		{"negative radius", func(o *Options) { o.Radius = -1 }, errors.ErrCodeInvalidInput},
		{"bad format", func(o *Options) { o.Formats = []string{"gif"} }, errors.ErrCodeInvalidInput},
		{"palette", func(o *Options) { o.Palette = map[string]string{"rigid": "#ff8800"} }, ""},
		{"bad palette key", func(o *Options) { o.Palette = map[string]string{"beam": "#ff8800"} }, errors.ErrCodeInvalidInput},
		{"bad palette color", func(o *Options) { o.Palette = map[string]string{"rigid": "orange"} }, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Options{InputDir: dir}
			o.SetDefaults()
			tt.mutate(&o)
			err := o.Validate()
			if tt.code == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("got %v, want %s", err, tt.code)
			}
		})
	}
}

func TestRenderersDeduplicate(t *testing.T) {
	o := Options{Formats: []string{"png", "json", "png"}}
	o.SetDefaults()
	rs := o.Renderers()
	if len(rs) != 2 || rs[0].Format() != "png" || rs[1].Format() != "json" {
		t.Errorf("renderers = %v", rs)
	}
}

func TestPaletteChangesArtifactKey(t *testing.T) {
	o := Options{}
	o.SetDefaults()
	keyer := cache.NewDefaultKeyer()
	plain := keyer.ArtifactKey("s", o.ArtifactKeyOpts("png"))

	o.Palette = map[string]string{"structure": "#000080"}
	if keyer.ArtifactKey("s", o.ArtifactKeyOpts("png")) == plain {
		t.Error("palette must be part of the PNG cache key")
	}
	if k := o.ArtifactKeyOpts("json"); k.Palette != nil {
		t.Errorf("json key carries palette %v", k.Palette)
	}
	if len(o.rasterOptions()) != 2 {
		t.Error("palette not passed to the PNG renderer")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trussview.toml")
	content := `
input_dir = "run/output"
radius = 2000.0
formats = ["png", "json"]
group_by = "source"

[model]
nodes = "nodes.csv"
elements = "elements.csv"

[annotation]
arrow_length = 800.0
planar = true

[palette]
structure = "#000080"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	o, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if o.Radius != 2000 || o.GroupBy != "source" || len(o.Formats) != 2 {
		t.Errorf("options = %+v", o)
	}
	if o.Model.Nodes != "nodes.csv" || o.Model.Rigids != "" {
		t.Errorf("model = %+v", o.Model)
	}
	if o.Annotation.ArrowLength != 800 || !o.Annotation.Planar {
		t.Errorf("annotation = %+v", o.Annotation)
	}
	if o.Palette["structure"] != "#000080" {
		t.Errorf("palette = %v", o.Palette)
	}

	bad := filepath.Join(dir, "bad.toml")
	_ = os.WriteFile(bad, []byte("radus = 3\n"), 0o644)
	if _, err := LoadConfig(bad); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("unknown key: got %v, want INVALID_FORMAT", err)
	}
	if _, err := LoadConfig(filepath.Join(dir, "missing.toml")); !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("missing file: got %v, want FILE_NOT_FOUND", err)
	}
}

func TestPlan(t *testing.T) {
	in := fixtureInput(t)
	views := Plan(in.Topology, in.Records)

	want := []struct{ name, kind string }{
		{FullViewName, manifest.KindFull},
		{"View_MF_MF-1", manifest.KindDetail},
		{"View_MF_MF-2", manifest.KindDetail},
		{"View_Winch_LC1", manifest.KindGroup},
	}
	if len(views) != len(want) {
		t.Fatalf("got %d views: %+v", len(views), views)
	}
	for i, w := range want {
		if views[i].Name != w.name || views[i].Kind != w.kind {
			t.Errorf("view %d = %s/%s, want %s/%s", i, views[i].Name, views[i].Kind, w.name, w.kind)
		}
	}

	mf1 := views[1]
	if mf1.Reference != 1 || len(mf1.Competitors) != 2 {
		t.Errorf("MF-1 view = %+v", mf1)
	}
	if views[3].Reference != 5 || len(views[3].Records) != 2 {
		t.Errorf("group view = %+v", views[3])
	}
}

func TestPlanViewNames(t *testing.T) {
	topo := topology.New()
	for id := 1; id <= 4; id++ {
		_ = topo.AddNode(topology.Node{ID: topology.NodeID(id)})
	}
	recs := []load.Record{
		{Source: "MF 1", Node: 1, Kind: load.KindVector},
		{Source: "MF_1", Node: 2, Kind: load.KindVector},
		{Source: "MF..3", Node: 3, Kind: load.KindVector},
		{Source: "MF/1", Node: 4, Kind: load.KindVector},
		{Source: "W1", Node: 1, Kind: load.KindDirectional, Group: "W/1"},
		{Source: "W2", Node: 2, Kind: load.KindDirectional, Group: "W:1"},
	}

	want := []string{
		FullViewName,
		"View_MF_MF_1",
		"View_MF_MF_1_2",
		"View_MF_MF_3",
		"View_MF_MF_1_3",
		"View_Winch_W_1",
		"View_Winch_W_1_2",
	}
	views := Plan(topo, recs)
	if len(views) != len(want) {
		t.Fatalf("got %d views, want %d", len(views), len(want))
	}
	for i, v := range views {
		if v.Name != want[i] {
			t.Errorf("views[%d].Name = %q, want %q", i, v.Name, want[i])
		}
		if err := errors.ValidateImageName(v.Name); err != nil {
			t.Errorf("%q is not a valid image name: %v", v.Name, err)
		}
	}
	if views[2].Label != "MF_1" || views[1].Label != "MF 1" {
		t.Errorf("labels must keep the source ids: %q, %q", views[1].Label, views[2].Label)
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  ", "unnamed"},
		{"MF-01", "MF-01"},
		{"a..b", "a_b"},
		{"a...b", "a_.b"},
		{"a....b", "a__b"},
		{"..", "_"},
		{"x\\y", "x_y"},
		{strings.Repeat("a", 300), strings.Repeat("a", maxSafeName)},
	}
	for _, tt := range tests {
		if got := safeName(tt.in); got != tt.want {
			t.Errorf("safeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildDetailWindow(t *testing.T) {
	in := fixtureInput(t)
	opts := Options{InputDir: "x"}
	opts.SetDefaults()
	b := NewBuilder(in.Topology, opts)
	views := Plan(in.Topology, in.Records)

	s, fr, err := b.Build(views[1])
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Node 3 is MF-2's node and is removed as a competitor.
	if fr.NodesKept != 2 || fr.CompetitorsRemoved != 1 {
		t.Errorf("filter result = %+v", fr)
	}
	if got := s.Stats(); got.Lines != 1 || got.Arrows != 1 || got.Boundary != 1 {
		t.Errorf("stats = %+v", got)
	}
	if s.View.Focus == nil || s.View.Focus.X != 0 {
		t.Errorf("focus = %v", s.View.Focus)
	}
	// The master topology is untouched.
	if in.Topology.NodeCount() != 5 || in.Topology.ElementCount() != 4 {
		t.Error("Build modified the master topology")
	}
}

func TestBuildGroupIsQuantized(t *testing.T) {
	in := fixtureInput(t)
	opts := Options{InputDir: "x"}
	opts.SetDefaults()
	views := Plan(in.Topology, in.Records)
	s, _, err := NewBuilder(in.Topology, opts).Build(views[3])
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(s.Arrows) != 2 {
		t.Fatalf("arrows = %d", len(s.Arrows))
	}
	if v := s.Arrows[1].Vector; v.X != 0 || v.Y != 0 || v.Z != -1000 {
		t.Errorf("quantized vector = %v", v)
	}
}

func TestExecute(t *testing.T) {
	dir := fixtureDir(t)
	fc, err := cache.NewFileCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}
	r := NewRunner(fc, nil, nil)
	opts := Options{InputDir: dir, Formats: []string{"png", "json"}, Width: 200, Height: 150}

	res, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Stats.Views != 4 || res.Stats.Images != 8 || res.Stats.Failed != 0 || res.Stats.Cached != 0 {
		t.Errorf("stats = %+v, failures = %+v", res.Stats, res.Manifest.Failures)
	}

	out := filepath.Join(dir, DefaultOutputSubdir)
	for _, img := range res.Manifest.Images {
		if _, err := os.Stat(filepath.Join(out, img.Path)); err != nil {
			t.Errorf("image %s not written: %v", img.Path, err)
		}
	}
	m, err := manifest.ReadFile(filepath.Join(out, manifest.Filename))
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m.RunID != res.Manifest.RunID || m.InputHash == "" {
		t.Errorf("manifest = %+v", m)
	}
	if img, ok := m.LookupFormat(FullViewName, "png"); !ok || img.Path != FullViewName+".png" {
		t.Errorf("full view = %+v, %v", img, ok)
	}
	if m.Images[0].Name != FullViewName {
		t.Error("manifest not in plan order")
	}

	// Unchanged input renders nothing the second time.
	opts.Workers = 3
	again, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if again.Stats.Cached != 8 {
		t.Errorf("cached = %d, want 8", again.Stats.Cached)
	}
	if again.Manifest.RunID == res.Manifest.RunID {
		t.Error("run id reused")
	}
}

func TestExecuteMissingRequiredTable(t *testing.T) {
	dir := fixtureDir(t)
	_ = os.Remove(filepath.Join(dir, tio.DefaultModelFiles().Elements))
	_, err := NewRunner(nil, nil, nil).Execute(context.Background(), Options{InputDir: dir})
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("got %v, want FILE_NOT_FOUND", err)
	}
}

func TestExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRunner(nil, nil, nil).Execute(ctx, Options{InputDir: fixtureDir(t), Width: 100, Height: 100})
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestRunViewEmptyWindowIsSkipped(t *testing.T) {
	in := fixtureInput(t)
	opts := Options{InputDir: "x", OutputDir: t.TempDir()}
	opts.SetDefaults()
	opts.Radius = 0
	r := NewRunner(nil, nil, nil)
	views := Plan(in.Topology, in.Records)

	o, err := r.runView(context.Background(), NewBuilder(in.Topology, opts), views[1], opts.Renderers(), opts)
	if err != nil {
		t.Fatalf("runView: %v", err)
	}
	if o.skipped == nil || o.skipped.Code != string(errors.ErrCodeFilterEmpty) {
		t.Errorf("skipped = %+v", o.skipped)
	}
	if len(o.images) != 0 || len(o.failures) != 0 {
		t.Errorf("outcome = %+v", o)
	}
}

type failingRenderer struct{}

func (failingRenderer) Format() string { return "png" }

func (failingRenderer) Render(context.Context, *scene.Scene) ([]byte, error) {
	return nil, stderrors.New("out of ink")
}

func TestRenderFailureIsIsolated(t *testing.T) {
	in := fixtureInput(t)
	opts := Options{InputDir: "x", OutputDir: t.TempDir()}
	opts.SetDefaults()
	r := NewRunner(nil, nil, nil)
	views := Plan(in.Topology, in.Records)

	renderers := []render.Renderer{failingRenderer{}, render.JSON{}}
	o, err := r.runView(context.Background(), NewBuilder(in.Topology, opts), views[0], renderers, opts)
	if err != nil {
		t.Fatalf("runView: %v", err)
	}
	if len(o.failures) != 1 || o.failures[0].Code != string(errors.ErrCodeRender) {
		t.Errorf("failures = %+v", o.failures)
	}
	if len(o.images) != 1 || o.images[0].Format != "json" {
		t.Errorf("images = %+v", o.images)
	}
}

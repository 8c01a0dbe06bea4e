package render

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	terrors "github.com/matzehuels/trussview/pkg/errors"
	"github.com/matzehuels/trussview/pkg/scene"
	"github.com/matzehuels/trussview/pkg/topology"
)

type failingRenderer struct{ err error }

func (failingRenderer) Format() string { return "png" }

func (f failingRenderer) Render(context.Context, *scene.Scene) ([]byte, error) { return nil, f.err }

func sampleScene() *scene.Scene {
	t := topology.New()
	_ = t.AddNode(topology.Node{ID: 1})
	return scene.Assemble("View_Test", t)
}

func TestJSONWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", Filename("View_Test", FormatJSON))

	if err := WriteFile(context.Background(), JSON{}, sampleScene(), path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var s scene.Scene
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("output is not a scene: %v", err)
	}
	if s.Name != "View_Test" || len(s.Points) != 1 {
		t.Errorf("decoded scene = %+v", s)
	}
}

func TestWriteFileRenderFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.png")
	err := WriteFile(context.Background(), failingRenderer{errors.New("boom")}, sampleScene(), path)
	if !terrors.Is(err, terrors.ErrCodeRender) {
		t.Fatalf("got %v, want RENDER_FAILED", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("file written despite render failure")
	}
}

func TestJSONRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (JSON{}).Render(ctx, sampleScene()); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

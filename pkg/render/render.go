package render

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/matzehuels/trussview/pkg/errors"
	"github.com/matzehuels/trussview/pkg/scene"
)

// Output formats.
const (
	FormatPNG  = "png"
	FormatJSON = "json"
)

// Renderer draws a scene into an encoded artifact.
type Renderer interface {
	// Format returns the output format, which is also the file extension.
	Format() string
	// Render encodes the scene. It must not retain s.
	Render(ctx context.Context, s *scene.Scene) ([]byte, error)
}

// JSON renders the scene description as indented JSON.
type JSON struct{}

// Format implements [Renderer].
func (JSON) Format() string { return FormatJSON }

// Render implements [Renderer].
func (JSON) Render(ctx context.Context, s *scene.Scene) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "encode scene %s", s.Name)
	}
	return data, nil
}

// WriteFile renders s with r and writes the result to path, creating parent
// directories as needed. Render failures carry RENDER_FAILED, write failures
// IO_ERROR.
func WriteFile(ctx context.Context, r Renderer, s *scene.Scene, path string) error {
	data, err := r.Render(ctx, s)
	if err != nil {
		if errors.GetCode(err) != "" {
			return err
		}
		return errors.Wrap(errors.ErrCodeRender, err, "render %s as %s", s.Name, r.Format())
	}
	return Write(path, data)
}

// Write stores an already rendered artifact.
func Write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create output directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", path)
	}
	return nil
}

// Filename returns the output file name for a scene name and format.
func Filename(name, format string) string {
	return name + "." + format
}

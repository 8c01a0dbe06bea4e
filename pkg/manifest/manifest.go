// Package manifest records which image was written for which logical view of
// a run, so that report generators can place figures by name instead of by
// guessing file paths.
//
// A manifest is written as manifest.json next to the images and may also be
// pushed to a shared [Store].
package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/trussview/pkg/errors"
)

// Filename is the manifest file written into the output directory.
const Filename = "manifest.json"

// Image kinds.
const (
	KindFull   = "full"
	KindDetail = "detail"
	KindGroup  = "group"
)

// Image is one written file.
type Image struct {
	Name   string `json:"name" bson:"name"`
	Kind   string `json:"kind" bson:"kind"`
	Format string `json:"format" bson:"format"`
	Path   string `json:"path" bson:"path"` // relative to the output directory
	Bytes  int    `json:"bytes" bson:"bytes"`
	Cached bool   `json:"cached,omitempty" bson:"cached,omitempty"`
}

// Failure is a view that produced no image.
type Failure struct {
	Name    string `json:"name" bson:"name"`
	Kind    string `json:"kind" bson:"kind"`
	Code    string `json:"code" bson:"code"`
	Message string `json:"message" bson:"message"`
}

// Manifest describes the outcome of one run.
type Manifest struct {
	RunID     string    `json:"run_id" bson:"_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	InputDir  string    `json:"input_dir" bson:"input_dir"`
	InputHash string    `json:"input_hash,omitempty" bson:"input_hash,omitempty"`
	Images    []Image   `json:"images" bson:"images"`
	Skipped   []Failure `json:"skipped,omitempty" bson:"skipped,omitempty"`
	Failures  []Failure `json:"failures,omitempty" bson:"failures,omitempty"`
}

// New starts a manifest with a fresh run id.
func New(inputDir string) *Manifest {
	return &Manifest{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		InputDir:  inputDir,
		Images:    []Image{},
	}
}

// Lookup returns the first image with the given logical name.
func (m *Manifest) Lookup(name string) (Image, bool) {
	for _, img := range m.Images {
		if img.Name == name {
			return img, true
		}
	}
	return Image{}, false
}

// LookupFormat returns the image of name in a specific format.
func (m *Manifest) LookupFormat(name, format string) (Image, bool) {
	for _, img := range m.Images {
		if img.Name == name && img.Format == format {
			return img, true
		}
	}
	return Image{}, false
}

// Paths maps logical names to the path of their first image.
func (m *Manifest) Paths() map[string]string {
	out := make(map[string]string, len(m.Images))
	for _, img := range m.Images {
		if _, ok := out[img.Name]; !ok {
			out[img.Name] = img.Path
		}
	}
	return out
}

// OK reports whether every planned view produced an image.
func (m *Manifest) OK() bool { return len(m.Failures) == 0 }

// WriteFile writes the manifest as indented JSON.
func (m *Manifest) WriteFile(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode manifest")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", path)
	}
	return nil
}

// ReadFile reads a manifest written by WriteFile.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "%s not found", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "read %s", path)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode %s", path)
	}
	return &m, nil
}

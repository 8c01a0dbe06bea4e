package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/trussview/pkg/manifest"
)

func newTestHandler(t *testing.T) (*Handler, *manifest.Manifest) {
	t.Helper()
	dir := t.TempDir()
	m := manifest.New("in")
	m.Images = []manifest.Image{
		{Name: "View_01_Full_Model", Kind: manifest.KindFull, Format: "png", Path: "View_01_Full_Model.png", Bytes: 4},
		{Name: "View_01_Full_Model", Kind: manifest.KindFull, Format: "json", Path: "View_01_Full_Model.json", Bytes: 2},
		{Name: "View_MF_gone", Kind: manifest.KindDetail, Format: "png", Path: "View_MF_gone.png", Bytes: 4},
	}
	if err := os.WriteFile(filepath.Join(dir, "View_01_Full_Model.png"), []byte("\x89PNG"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "View_01_Full_Model.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := manifest.NewFileStore(dir)
	if err := store.Save(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	return New(store, dir, log.New(os.Stderr)), m
}

func TestRoutes(t *testing.T) {
	h, m := newTestHandler(t)
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantType    string
		wantErrCode string
	}{
		{"health", "/healthz", http.StatusOK, "application/json", ""},
		{"latest manifest", "/manifest.json", http.StatusOK, "application/json", ""},
		{"run by id", "/runs/" + m.RunID, http.StatusOK, "application/json", ""},
		{"unknown run", "/runs/nope", http.StatusNotFound, "application/json", "not_found"},
		{"image default format", "/images/View_01_Full_Model", http.StatusOK, "image/png", ""},
		{"image json", "/images/View_01_Full_Model?format=json", http.StatusOK, "application/json", ""},
		{"unknown image", "/images/View_99", http.StatusNotFound, "application/json", "not_found"},
		{"missing file", "/images/View_MF_gone", http.StatusNotFound, "application/json", "not_found"},
		{"bad format", "/images/View_01_Full_Model?format=svg", http.StatusBadRequest, "application/json", "validation_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := resp.Header.Get("Content-Type"); got != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
			if tt.wantErrCode != "" {
				var body errorBody
				if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if body.Error.Code != tt.wantErrCode {
					t.Errorf("error code = %q, want %q", body.Error.Code, tt.wantErrCode)
				}
			}
		})
	}
}

func TestLatestManifestBody(t *testing.T) {
	h, m := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/manifest.json", nil))

	var got manifest.Manifest
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.RunID != m.RunID || len(got.Images) != 3 {
		t.Errorf("got run %s with %d images", got.RunID, len(got.Images))
	}
}

func TestNoManifest(t *testing.T) {
	dir := t.TempDir()
	h := New(manifest.NewFileStore(dir), dir, nil)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/manifest.json", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	h, _ := newTestHandler(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.ListenAndServe(ctx, "127.0.0.1:0") }()
	cancel()
	if err := <-done; err != nil && err != context.Canceled {
		t.Errorf("ListenAndServe() = %v", err)
	}
}

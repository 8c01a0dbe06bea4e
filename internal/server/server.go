// Package server serves rendered report images and their manifests over HTTP.
//
// Routes:
//
//	GET /healthz               liveness probe
//	GET /manifest.json         latest manifest
//	GET /runs/{id}             manifest of one run
//	GET /images/{name}         image of the latest run; ?format=png|json
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/trussview/pkg/buildinfo"
	"github.com/matzehuels/trussview/pkg/errors"
	"github.com/matzehuels/trussview/pkg/manifest"
	"github.com/matzehuels/trussview/pkg/observability"
	"github.com/matzehuels/trussview/pkg/render"
)

// ShutdownTimeout bounds the graceful shutdown after the serve context ends.
const ShutdownTimeout = 5 * time.Second

var contentTypes = map[string]string{
	render.FormatPNG:  "image/png",
	render.FormatJSON: "application/json",
}

// Handler answers report requests from a manifest store and an image
// directory.
type Handler struct {
	store  manifest.Store
	dir    string
	logger *log.Logger
}

// New creates a handler. Image paths in manifests are resolved below dir.
func New(store manifest.Store, dir string, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{store: store, dir: dir, logger: logger}
}

// Router returns the chi router with all routes mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.observe)
	r.Get("/healthz", h.handleHealth)
	r.Get("/manifest.json", h.handleLatest)
	r.Get("/runs/{id}", h.handleRun)
	r.Get("/images/{name}", h.handleImage)
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (h *Handler) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "build": buildinfo.Get()})
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.Latest(r.Context())
	if err != nil {
		h.writeStoreError(w, err, nil)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "run id is required", nil)
		return
	}
	m, err := h.store.Load(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, err, map[string]any{"id": id})
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	if format != "" && contentTypes[format] == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid format", map[string]any{"format": format})
		return
	}

	m, err := h.store.Latest(r.Context())
	if err != nil {
		h.writeStoreError(w, err, nil)
		return
	}

	var img manifest.Image
	var ok bool
	if format == "" {
		img, ok = m.Lookup(name)
	} else {
		img, ok = m.LookupFormat(name, format)
	}
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "image not found", map[string]any{"name": name, "format": format})
		return
	}
	if err := errors.ValidateImageName(img.Path); err != nil {
		h.writeError(w, http.StatusInternalServerError, "internal_error", "manifest holds an invalid path", map[string]any{"path": img.Path})
		return
	}

	data, err := os.ReadFile(filepath.Join(h.dir, img.Path))
	if os.IsNotExist(err) {
		h.writeError(w, http.StatusNotFound, "not_found", "image file missing", map[string]any{"path": img.Path})
		return
	}
	if err != nil {
		h.logger.Error("read image", "path", img.Path, "err", err)
		h.writeError(w, http.StatusInternalServerError, "io_error", "failed to read image", nil)
		return
	}

	w.Header().Set("Content-Type", contentTypes[img.Format])
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error, details map[string]any) {
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound:
		h.writeError(w, http.StatusNotFound, "not_found", "manifest not found", details)
	default:
		h.logger.Error("manifest store", "err", err)
		h.writeError(w, http.StatusInternalServerError, "store_error", "failed to load manifest", nil)
	}
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	h.writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: msg, Details: details}})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug("write response", "err", err)
	}
}

// statusWriter records the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

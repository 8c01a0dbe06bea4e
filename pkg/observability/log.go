package observability

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks writes pipeline, cache and HTTP events to a logger at debug
// level and keeps cache counters for the run summary.
type LogHooks struct {
	logger *log.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

// NewLogHooks returns hooks that log to logger.
func NewLogHooks(logger *log.Logger) *LogHooks {
	return &LogHooks{logger: logger}
}

func (h *LogHooks) OnLoadStart(_ context.Context, dir string) {
	h.logger.Debug("loading model", "dir", dir)
}

func (h *LogHooks) OnLoadComplete(_ context.Context, dir string, nodes, elements, loads int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("load failed", "dir", dir, "err", err)
		return
	}
	h.logger.Debug("model loaded", "nodes", nodes, "elements", elements, "loads", loads, "took", d.Round(time.Millisecond))
}

func (h *LogHooks) OnViewStart(_ context.Context, name, kind string) {
	h.logger.Debug("view", "name", name, "kind", kind)
}

func (h *LogHooks) OnViewComplete(_ context.Context, name, kind string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("view failed", "name", name, "err", err)
		return
	}
	h.logger.Debug("view done", "name", name, "took", d.Round(time.Millisecond))
}

func (h *LogHooks) OnRenderComplete(_ context.Context, name, format string, size int, d time.Duration, err error) {
	if err != nil {
		return
	}
	h.logger.Debug("rendered", "name", name, "format", format, "bytes", size, "took", d.Round(time.Millisecond))
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.hits.Add(1)
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.misses.Add(1)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(context.Context, string, string) {}

func (h *LogHooks) OnResponse(_ context.Context, method, path string, status int, d time.Duration) {
	h.logger.Info("request", "method", method, "path", path, "status", status, "took", d.Round(time.Microsecond))
}

// CacheStats returns the hit and miss counts seen so far.
func (h *LogHooks) CacheStats() (hits, misses int64) {
	return h.hits.Load(), h.misses.Load()
}

var (
	_ PipelineHooks = (*LogHooks)(nil)
	_ CacheHooks    = (*LogHooks)(nil)
	_ HTTPHooks     = (*LogHooks)(nil)
)

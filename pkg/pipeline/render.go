package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/matzehuels/trussview/pkg/cache"
	"github.com/matzehuels/trussview/pkg/errors"
	"github.com/matzehuels/trussview/pkg/manifest"
	"github.com/matzehuels/trussview/pkg/observability"
	"github.com/matzehuels/trussview/pkg/render"
	"github.com/matzehuels/trussview/pkg/scene"
)

// RenderWithCacheInfo encodes s with r, consulting the cache first. The
// scene hash plus the format options form the cache key, so an unchanged view
// is never drawn twice.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, rd render.Renderer, s *scene.Scene, sceneHash string, opts Options) ([]byte, bool, error) {
	key := r.Keyer.ArtifactKey(sceneHash, opts.ArtifactKeyOpts(rd.Format()))

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "artifact")
			return data, true, nil
		} else if err != nil {
			opts.Logger.Debug("cache read failed", "key", key, "err", err)
		}
		observability.Cache().OnCacheMiss(ctx, "artifact")
	}

	start := time.Now()
	data, err := rd.Render(ctx, s)
	observability.Pipeline().OnRenderComplete(ctx, s.Name, rd.Format(), len(data), time.Since(start), err)
	if err != nil {
		if errors.GetCode(err) == "" && ctx.Err() == nil {
			err = errors.Wrap(errors.ErrCodeRender, err, "render %s as %s", s.Name, rd.Format())
		}
		return nil, false, err
	}

	if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err != nil {
		opts.Logger.Debug("cache write failed", "key", key, "err", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "artifact", len(data))
	}
	return data, false, nil
}

// renderView writes every format of one built scene. A failing format is
// recorded and the remaining formats are still written.
func (r *Runner) renderView(ctx context.Context, v View, s *scene.Scene, renderers []render.Renderer, opts Options) ([]manifest.Image, []manifest.Failure, error) {
	sceneHash, err := cache.HashJSON(s)
	if err != nil {
		return nil, []manifest.Failure{failure(v, errors.Wrap(errors.ErrCodeInternal, err, "hash scene"))}, nil
	}

	var images []manifest.Image
	var failures []manifest.Failure
	for _, rd := range renderers {
		if err := ctx.Err(); err != nil {
			return images, failures, err
		}
		name := render.Filename(v.Name, rd.Format())
		if err := errors.ValidateImageName(name); err != nil {
			failures = append(failures, failure(v, err))
			continue
		}

		data, cached, err := r.RenderWithCacheInfo(ctx, rd, s, sceneHash, opts)
		if err == nil {
			err = render.Write(filepath.Join(opts.OutputDir, name), data)
		}
		if err != nil {
			if ctx.Err() != nil {
				return images, failures, ctx.Err()
			}
			opts.Logger.Error("image failed", "view", v.Name, "format", rd.Format(), "err", errors.UserMessage(err))
			failures = append(failures, failure(v, err))
			continue
		}
		images = append(images, manifest.Image{
			Name:   v.Name,
			Kind:   v.Kind,
			Format: rd.Format(),
			Path:   name,
			Bytes:  len(data),
			Cached: cached,
		})
	}
	return images, failures, nil
}

func failure(v View, err error) manifest.Failure {
	code := string(errors.GetCode(err))
	if code == "" {
		code = string(errors.ErrCodeInternal)
	}
	return manifest.Failure{Name: v.Name, Kind: v.Kind, Code: code, Message: errors.UserMessage(err)}
}

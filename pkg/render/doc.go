// Package render defines the renderer contract that turns a scene description
// into an output artifact.
//
// # Overview
//
// A [Renderer] consumes a [scene.Scene] and returns encoded bytes. Renderers
// are stateless: nothing is carried from one scene to the next, so a failure
// while drawing one image never affects the following one.
//
// Two implementations ship with trussview:
//
//   - [raster]: fixed-resolution PNG images drawn with fogleman/gg
//   - [JSON]: the scene description itself, for external 3D backends
//
// [WriteFile] applies the file-level contract used by the batch runner: render
// one scene to a target path and report success or failure.
//
//	r := raster.New(raster.WithSize(2000, 1500))
//	err := render.WriteFile(ctx, r, sc, "out/View_01_Full_Model.png")
//
// [raster]: github.com/matzehuels/trussview/pkg/render/raster
package render

// Package pkg holds the libraries behind trussview, which turns the tables of
// a structural solver run into report figures.
//
// # Overview
//
// A run reads the model (nodes, elements, rigid links, supports) and the load
// reports, then draws three kinds of image: the whole model seen from above,
// a zoomed window around every fitting load, and one overview per group of
// winch loads.
//
// # Architecture
//
//	CSV tables
//	     ↓
//	[io] (parse tables, export check tables)
//	     ↓
//	[topology] (node/element registry, window filter)
//	     ↓
//	[load] (arrows and labels from load records)
//	     ↓
//	[scene] (renderer input: geometry, glyphs, camera hint)
//	     ↓
//	[render] (PNG via render/raster, JSON)
//
// [pipeline] wires these stages, caches rendered images through [cache] and
// records every run in a [manifest].
//
// # Quick Start
//
//	runner := pipeline.NewRunner(nil, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{InputDir: "run/output"})
//	if err != nil {
//	    return err
//	}
//	for _, img := range result.Manifest.Images {
//	    fmt.Println(img.Path)
//	}
//
// # Main Packages
//
// [topology] - Nodes with fixed 3D coordinates, elements connecting two or
// more nodes, rigid links and boundary nodes. Insertion order is preserved;
// filtering works in place on a clone.
//
// [load] - Load records and the synthesizer that turns them into arrow and
// label annotations, with continuous or quantized direction.
//
// [scene] - Everything a renderer needs for one image, assembled with
// functional options.
//
// [render] - The Renderer interface, the JSON renderer and file output.
// [render/raster] draws PNG images with fogleman/gg.
//
// [io] - Readers for the solver and load tables and writers for check tables.
//
// [pipeline] - Options, view planning, scene building and the concurrent
// runner.
//
// [cache] - Rendered image cache with file, Redis and null backends.
//
// [manifest] - Run manifests with file and MongoDB stores.
//
// [observability] - Hooks for load, view, render, cache and HTTP events.
//
// [errors] - Coded errors shared by all packages.
//
// [io]: https://pkg.go.dev/github.com/matzehuels/trussview/pkg/io
// [topology]: https://pkg.go.dev/github.com/matzehuels/trussview/pkg/topology
// [load]: https://pkg.go.dev/github.com/matzehuels/trussview/pkg/load
// [scene]: https://pkg.go.dev/github.com/matzehuels/trussview/pkg/scene
// [render]: https://pkg.go.dev/github.com/matzehuels/trussview/pkg/render
// [render/raster]: https://pkg.go.dev/github.com/matzehuels/trussview/pkg/render/raster
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/trussview/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/trussview/pkg/cache
// [manifest]: https://pkg.go.dev/github.com/matzehuels/trussview/pkg/manifest
// [observability]: https://pkg.go.dev/github.com/matzehuels/trussview/pkg/observability
// [errors]: https://pkg.go.dev/github.com/matzehuels/trussview/pkg/errors
package pkg

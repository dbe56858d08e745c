// Package pkg provides the core libraries for collage composition.
//
// # Overview
//
// Collage arranges up to eight photos into one framed image. The pkg
// directory is organized into three areas:
//
//  1. Domain logic: [slots], [ingest], [layout], [composite], [export]
//  2. Infrastructure: [cache], [share], [session], [config], [errors]
//  3. Orchestration: [pipeline], with [dropzone] as a folder input surface
//
// # Architecture
//
// The data flow through collage:
//
//	Photo files (chooser, HTTP upload, drop folder)
//	         ↓
//	    [ingest] package (validate, classify, re-encode, progress)
//	         ↓
//	    [slots] package (eight tagged slots, tickets, reorder)
//	         ↓
//	    [layout] package (grid or asymmetric geometry)
//	         ↓
//	    [composite] package (cover-fit every Ready slot)
//	         ↓
//	    [export] package (PNG/JPEG, share then download)
//
// # Quick Start
//
// Load two photos and save a collage:
//
//	import (
//	    "github.com/matzehuels/collage/pkg/config"
//	    "github.com/matzehuels/collage/pkg/export"
//	    "github.com/matzehuels/collage/pkg/ingest"
//	    "github.com/matzehuels/collage/pkg/layout"
//	    "github.com/matzehuels/collage/pkg/pipeline"
//	    "github.com/matzehuels/collage/pkg/slots"
//	)
//
//	runner := pipeline.NewRunner(config.Defaults(), nil, nil, logger)
//	runner.Strategies = func(pipeline.Options) []export.Strategy {
//	    return []export.Strategy{&export.DownloadStrategy{Target: export.DirTarget{Dir: "."}}}
//	}
//
//	a, _ := ingest.FromPath("beach.jpg")
//	b, _ := ingest.FromPath("scan.tiff")
//	store := slots.NewStore(layout.Grid)
//	result, err := runner.Execute(ctx, store, []ingest.File{a, b}, pipeline.Options{Format: "jpeg"})
//
// # Main Packages
//
// [slots] - The slot store: eight positions, each Empty, Loading, Ready or
// Unsupported. Every load holds a ticket so stale results are discarded
// after an overwrite, clear or reset, and follow their slot across a move.
//
// [ingest] - The format normalizer. Direct formats are read as they are;
// TIFF, SVG, ICO and AVIF are re-encoded to PNG; HEIC is reported with
// conversion advice. Batches stagger their starts and never let one bad
// file stop the others.
//
// [layout] - Pure geometry for the grid and asymmetric layouts, plus
// uniform scaling for previews.
//
// [composite] - Draws every Ready slot into its rectangle with cover-fit
// on a white canvas.
//
// [export] - Encodes the canvas and walks an ordered strategy chain, share
// before download. A user cancelling the share ends the chain quietly.
//
// [cache] - Byte cache with file, memory, null and Redis backends; the
// file cache keeps re-encoded sources, Redis or memory back [share].
//
// [pipeline] - The Runner shared by the CLI and the HTTP API.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                    # All tests
//	go test -run Example ./pkg/layout    # Examples only
//	go test -tags integration ./pkg/...  # Include Redis tests (REDIS_ADDR)
//
// [slots]: https://pkg.go.dev/github.com/matzehuels/collage/pkg/slots
// [ingest]: https://pkg.go.dev/github.com/matzehuels/collage/pkg/ingest
// [layout]: https://pkg.go.dev/github.com/matzehuels/collage/pkg/layout
// [composite]: https://pkg.go.dev/github.com/matzehuels/collage/pkg/composite
// [export]: https://pkg.go.dev/github.com/matzehuels/collage/pkg/export
// [cache]: https://pkg.go.dev/github.com/matzehuels/collage/pkg/cache
// [share]: https://pkg.go.dev/github.com/matzehuels/collage/pkg/share
// [session]: https://pkg.go.dev/github.com/matzehuels/collage/pkg/session
// [config]: https://pkg.go.dev/github.com/matzehuels/collage/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/collage/pkg/errors
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/collage/pkg/pipeline
// [dropzone]: https://pkg.go.dev/github.com/matzehuels/collage/pkg/dropzone
package pkg

// Package pipeline provides the collage pipeline shared by the CLI and the
// HTTP server.
//
// This package ties the stages together so every entry point behaves the
// same way:
//
//  1. Ingest: normalize files into the slots of a [slots.Store]
//  2. Composite: compute the layout geometry and paint the Ready slots
//  3. Export: encode the surface and negotiate delivery
//
// # Usage
//
//	runner := pipeline.NewRunner(cfg, sourceCache, nil, logger)
//	runner.Strategies = func(opts pipeline.Options) []export.Strategy {
//	    return []export.Strategy{&export.DownloadStrategy{Target: export.DirTarget{Dir: "."}}}
//	}
//	store := slots.NewStore(layout.Grid)
//	result, err := runner.Execute(ctx, store, files, pipeline.Options{Format: "jpeg"})
//
// Stages can also run on their own, which is how the server drives a
// session's store across requests:
//
//	runner.Ingest(ctx, store, files, profile)
//	runner.Export(ctx, store, opts)
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/collage/pkg/device"
	"github.com/matzehuels/collage/pkg/export"
	"github.com/matzehuels/collage/pkg/ingest"
	"github.com/matzehuels/collage/pkg/layout"
	"github.com/matzehuels/collage/pkg/slots"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

// DefaultFormat is the default export format.
const DefaultFormat = export.Lossless

// DefaultLayout is the layout of new stores.
const DefaultLayout = layout.Grid

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Move is one reorder step: the slot at From is removed and reinserted at To.
type Move struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Options contains the configuration of one export.
type Options struct {
	// Layout is the layout to export with; it becomes the store's layout
	// once the export succeeds. Empty uses the store's current layout.
	Layout string `json:"layout,omitempty"`

	// Format is png/jpeg or the lossless/lossy hint.
	Format string `json:"format,omitempty"`

	// Moves are applied in order after ingestion (Execute only).
	Moves []Move `json:"moves,omitempty"`

	// Share asks for native share before falling back to download.
	Share bool `json:"share,omitempty"`

	// Runtime options (not serialized)
	Profile device.Profile `json:"-"`
	Logger  *log.Logger    `json:"-"`

	kind   layout.Kind
	format export.Format

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Ingest is the ingestion report (Execute only).
	Ingest *ingest.Report

	// Receipt describes the delivery. Receipt.Cancelled() reports a
	// dismissed share; that is not an error.
	Receipt *export.Receipt

	// Geometry is the export geometry that was painted.
	Geometry layout.Geometry

	// Indices are the store indices drawn, in rectangle order.
	Indices []int

	// Stats contains timing and size information.
	Stats Stats
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Ready         int
	Unsupported   int
	IngestTime    time.Duration
	CompositeTime time.Duration
	ExportTime    time.Duration
	Bytes         int
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks the options and applies defaults.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Layout != "" {
		kind, err := layout.ParseKind(o.Layout)
		if err != nil {
			return err
		}
		o.kind = kind
	}
	f, err := export.ParseFormat(o.Format)
	if err != nil {
		return err
	}
	o.format = f
	o.Format = string(f)

	for _, m := range o.Moves {
		if m.From < 0 || m.From >= slots.Count || m.To < 0 || m.To >= slots.Count {
			return fmt.Errorf("invalid move %d:%d (indices must be in [0, %d])", m.From, m.To, slots.Count-1)
		}
	}

	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Kind returns the requested layout, or "" to keep the store's.
func (o *Options) Kind() layout.Kind { return o.kind }

// ExportFormat returns the parsed export format.
func (o *Options) ExportFormat() export.Format {
	if o.format == "" {
		return DefaultFormat
	}
	return o.format
}

package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/collage/pkg/cache"
	"github.com/matzehuels/collage/pkg/composite"
	"github.com/matzehuels/collage/pkg/config"
	"github.com/matzehuels/collage/pkg/device"
	"github.com/matzehuels/collage/pkg/errors"
	"github.com/matzehuels/collage/pkg/export"
	"github.com/matzehuels/collage/pkg/ingest"
	"github.com/matzehuels/collage/pkg/slots"
)

// Runner encapsulates pipeline execution.
// Both CLI and API use this to avoid duplicating the stage wiring.
//
// The Runner keeps no collage state: stores are passed in. Multiple
// goroutines can use the same Runner with different stores. Exports of one
// store are serialized; a second export while one is in flight fails with
// EXPORT_IN_PROGRESS.
type Runner struct {
	Normalizer *ingest.Normalizer
	Compositor *composite.Compositor
	Logger     *log.Logger

	// Strategies returns the delivery chain for an export. The default
	// declines everything.
	Strategies func(opts Options) []export.Strategy

	JPEGQuality int

	mu       sync.Mutex
	inflight map[*slots.Store]struct{}
}

// NewRunner creates a runner from configuration.
// If cache is nil, re-encoded sources are not cached.
// If keyer is nil, a DefaultKeyer is used.
func NewRunner(cfg config.Config, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	normalizer := ingest.NewNormalizer(cfg.Ingest, c, keyer, logger)
	if cfg.Cache.TTL > 0 {
		normalizer.SourceTTL = cfg.Cache.TTL
	}
	return &Runner{
		Normalizer:  normalizer,
		Compositor:  composite.New(cfg.Layout),
		Logger:      logger,
		Strategies:  func(Options) []export.Strategy { return nil },
		JPEGQuality: cfg.Export.JPEGQuality,
		inflight:    make(map[*slots.Store]struct{}),
	}
}

// Execute runs the complete ingest → composite → export pipeline on store.
func (r *Runner) Execute(ctx context.Context, store *slots.Store, files []ingest.File, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	// Stage 1: Ingest
	ingestStart := time.Now()
	report := r.Ingest(ctx, store, files, opts.Profile)
	ingestTime := time.Since(ingestStart)
	for _, m := range opts.Moves {
		if err := store.Move(m.From, m.To); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stages 2 and 3
	result, err := r.Export(ctx, store, opts)
	if err != nil {
		return nil, err
	}
	result.Ingest = &report
	result.Stats.Unsupported = report.Count(slots.Unsupported)
	result.Stats.IngestTime = ingestTime
	return result, nil
}

// Ingest loads files into store through batch ingestion.
func (r *Runner) Ingest(ctx context.Context, store *slots.Store, files []ingest.File, p device.Profile) ingest.Report {
	start := time.Now()
	report := r.Normalizer.Batch(ctx, store, files, p)

	r.Logger.Info("ingested files",
		"ready", report.Count(slots.Ready),
		"unsupported", report.Count(slots.Unsupported),
		"failed", len(report.Failed()),
		"duration", time.Since(start).Round(time.Millisecond))
	// Callers report failed files to the user.
	for _, res := range report.Failed() {
		r.Logger.Debug("file not loaded", "slot", res.Index, "file", res.Name, "error", errors.UserMessage(res.Err))
	}
	return report
}

// IngestAt loads one file into the slot at index.
func (r *Runner) IngestAt(ctx context.Context, store *slots.Store, index int, f ingest.File, p device.Profile) ingest.Result {
	return r.Normalizer.Normalize(ctx, store, index, f, p)
}

// Export composites the store's Ready slots and delivers the result. The
// store is left untouched unless the export succeeds with a requested
// layout, which then becomes the store's layout.
func (r *Runner) Export(ctx context.Context, store *slots.Store, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if err := r.acquire(store); err != nil {
		return nil, err
	}
	defer r.release(store)

	kind := opts.Kind()
	if kind == "" {
		kind = store.Layout()
	}

	result := &Result{}

	// Stage 2: Composite
	compositeStart := time.Now()
	surface, err := r.Compositor.Composite(ctx, store.Snapshot(), kind)
	if err != nil {
		return nil, err
	}
	result.Geometry = surface.Geometry
	result.Indices = surface.Indices
	result.Stats.Ready = len(surface.Indices)
	result.Stats.CompositeTime = time.Since(compositeStart)

	w, h := surface.Geometry.Size()
	r.Logger.Info("composited",
		"layout", surface.Geometry.Kind,
		"slots", len(surface.Indices),
		"size", fmt.Sprintf("%dx%d", w, h),
		"duration", result.Stats.CompositeTime.Round(time.Millisecond))

	// Stage 3: Export
	exportStart := time.Now()
	n := export.NewNegotiator(r.Logger, r.Strategies(opts)...)
	n.JPEGQuality = r.JPEGQuality
	receipt, err := n.Export(ctx, surface.Image, opts.ExportFormat())
	if err != nil {
		return nil, err
	}
	result.Receipt = receipt
	result.Stats.ExportTime = time.Since(exportStart)

	if opts.Kind() != "" {
		if err := store.SetLayout(kind); err != nil {
			return nil, err
		}
	}
	result.Stats.Bytes = receipt.Size

	r.Logger.Info("exported",
		"strategy", receipt.Strategy,
		"outcome", receipt.Outcome,
		"format", receipt.Format,
		"duration", result.Stats.ExportTime.Round(time.Millisecond))
	return result, nil
}

func (r *Runner) acquire(store *slots.Store) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight == nil {
		r.inflight = make(map[*slots.Store]struct{})
	}
	if _, busy := r.inflight[store]; busy {
		return errors.New(errors.ErrCodeExportInProgress, "an export is already running")
	}
	r.inflight[store] = struct{}{}
	return nil
}

func (r *Runner) release(store *slots.Store) {
	r.mu.Lock()
	delete(r.inflight, store)
	r.mu.Unlock()
}

package ingest

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/collage/pkg/device"
	"github.com/matzehuels/collage/pkg/slots"
)

// Report summarizes a batch.
type Report struct {
	// Results holds one entry per file placed, indexed by slot.
	Results []Result

	// Dropped lists files beyond the slot capacity.
	Dropped []string
}

// Failed returns the results that carry an error.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Count returns how many results ended in state s.
func (r Report) Count(s slots.State) int {
	n := 0
	for _, res := range r.Results {
		if res.State == s {
			n++
		}
	}
	return n
}

// Stagger returns the delay between batch starts for a client.
func (n *Normalizer) Stagger(p device.Profile) time.Duration {
	if p.IOS {
		return n.cfg.HandheldStagger
	}
	return n.cfg.Stagger
}

// Batch resets the store and loads files into slots 0..N-1 in selection
// order. Files beyond the slot count are dropped and listed in the report.
// Starts are staggered; every file independently reaches a terminal state
// and one file's failure never affects another. Batch returns when all
// loads are done.
func (n *Normalizer) Batch(ctx context.Context, store *slots.Store, files []File, p device.Profile) Report {
	store.Reset()

	var report Report
	if len(files) > slots.Count {
		for _, f := range files[slots.Count:] {
			report.Dropped = append(report.Dropped, f.Name)
		}
		n.logger.Debug("too many files, extra files ignored",
			"selected", len(files), "max", slots.Count, "dropped", len(report.Dropped))
		files = files[:slots.Count]
	}

	report.Results = make([]Result, len(files))
	stagger := n.Stagger(p)

	var g errgroup.Group
	for i, f := range files {
		g.Go(func() error {
			if err := n.sleep(ctx, time.Duration(i)*stagger); err != nil {
				report.Results[i] = Result{Index: i, Name: f.Name, Err: err}
				return nil
			}
			report.Results[i] = n.Normalize(ctx, store, i, f, p)
			return nil
		})
	}
	_ = g.Wait()
	return report
}

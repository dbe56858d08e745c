package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/collage/pkg/config"
	"github.com/matzehuels/collage/pkg/device"
	"github.com/matzehuels/collage/pkg/dropzone"
	"github.com/matzehuels/collage/pkg/export"
	"github.com/matzehuels/collage/pkg/ingest"
	"github.com/matzehuels/collage/pkg/pipeline"
	"github.com/matzehuels/collage/pkg/slots"
)

// watchOpts holds the command-line flags for the watch command.
type watchOpts struct {
	outDir  string
	layout  string
	format  string
	pattern string
	quiet   time.Duration
	noCache bool
}

// watchCommand creates the watch command.
func (c *CLI) watchCommand() *cobra.Command {
	opts := watchOpts{quiet: dropzone.DefaultQuiet}

	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Build a collage from photos dropped into a folder",
		Long: `Watch a folder and rebuild the collage whenever photos are dropped in.

Several photos dropped at once replace the collage. A single photo is
added to the first free slot, or replaces the last slot when all eight
are taken. After every drop the collage is exported to the output
directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outDir, "output", "o", "", "output directory (default: download_dir)")
	cmd.Flags().StringVarP(&opts.layout, "layout", "l", "", "layout: grid (default), asymmetric")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "format: png (default), jpeg")
	cmd.Flags().StringVar(&opts.pattern, "pattern", "", "glob for accepted file names (default: all known image types)")
	cmd.Flags().DurationVar(&opts.quiet, "quiet", opts.quiet, "idle time that ends a drop")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the re-encoded source cache")

	return cmd
}

// dropSession is the collage a watch command keeps between drops.
type dropSession struct {
	runner  *pipeline.Runner
	store   *slots.Store
	opts    pipeline.Options
	outputs *outputs
}

// outputs remembers the collages a watch session wrote, so exports into the
// watched folder are not picked up as drops.
type outputs struct {
	mu    sync.Mutex
	paths map[string]bool
}

func newOutputs() *outputs {
	return &outputs{paths: make(map[string]bool)}
}

func (o *outputs) add(path string) {
	o.mu.Lock()
	o.paths[absPath(path)] = true
	o.mu.Unlock()
}

func (o *outputs) has(path string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paths[absPath(path)]
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// recordingTarget records every file written through Target.
type recordingTarget struct {
	export.Target
	outputs *outputs
}

func (t recordingTarget) Put(ctx context.Context, d export.Download) (export.Reference, error) {
	ref, err := t.Target.Put(ctx, d)
	if err == nil {
		t.outputs.add(ref.Location)
	}
	return ref, err
}

// runWatch blocks until ctx is cancelled.
func (c *CLI) runWatch(ctx context.Context, dir string, opts watchOpts) error {
	logger := loggerFromContext(ctx)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	pOpts := pipeline.Options{Layout: opts.layout, Format: opts.format, Profile: device.Desktop, Logger: logger}
	if err := pOpts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	written := newOutputs()
	runner.Strategies = c.watchStrategies(cfg, opts.outDir, written)

	w, err := dropzone.New(dir, dropzone.Options{Pattern: opts.pattern, Quiet: opts.quiet, Logger: logger})
	if err != nil {
		return err
	}

	ds := &dropSession{runner: runner, store: slots.NewStore(pOpts.Kind()), opts: pOpts, outputs: written}
	printInfo("Watching %s", StyleHighlight.Render(w.Dir()))
	printDetail("Drop photos into the folder; press Ctrl+C to stop")

	err = w.Run(ctx, func(ctx context.Context, paths []string) {
		if err := ds.drop(ctx, paths); err != nil && ctx.Err() == nil {
			printError("%v", err)
		}
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// watchStrategies saves every export into outDir and records it in written.
func (c *CLI) watchStrategies(cfg config.Config, outDir string, written *outputs) func(pipeline.Options) []export.Strategy {
	if outDir == "" {
		outDir = cfg.Export.DownloadDir
	}
	return func(opts pipeline.Options) []export.Strategy {
		return []export.Strategy{&export.DownloadStrategy{
			Target:       recordingTarget{Target: export.DirTarget{Dir: outDir}, outputs: written},
			CleanupDelay: cfg.Export.CleanupDelay,
			Profile:      opts.Profile,
			Logger:       c.Logger,
		}}
	}
}

// drop handles one drop: several files replace the collage, a single file
// goes into the target slot. The session's own exports are ignored.
func (ds *dropSession) drop(ctx context.Context, paths []string) error {
	var dropped []string
	for _, p := range paths {
		if ds.outputs == nil || !ds.outputs.has(p) {
			dropped = append(dropped, p)
		}
	}
	files := loadFiles(dropped)
	switch len(files) {
	case 0:
		return nil
	case 1:
		index := targetSlot(ds.store.Snapshot())
		res := ds.runner.IngestAt(ctx, ds.store, index, files[0], ds.opts.Profile)
		printReport(ingest.Report{Results: []ingest.Result{res}})
		result, err := ds.runner.Export(ctx, ds.store, ds.opts)
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	}

	result, err := ds.runner.Execute(ctx, ds.store, files, ds.opts)
	if err != nil {
		return err
	}
	printReport(*result.Ingest)
	printResult(result)
	return nil
}

// targetSlot picks where a single dropped photo goes: the first empty slot,
// else the last one.
func targetSlot(snap [slots.Count]slots.Slot) int {
	for i, sl := range snap {
		if sl.State() == slots.Empty {
			return i
		}
	}
	return slots.Count - 1
}

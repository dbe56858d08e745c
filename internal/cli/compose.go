package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/collage/pkg/config"
	"github.com/matzehuels/collage/pkg/device"
	"github.com/matzehuels/collage/pkg/errors"
	"github.com/matzehuels/collage/pkg/export"
	"github.com/matzehuels/collage/pkg/ingest"
	"github.com/matzehuels/collage/pkg/pipeline"
	"github.com/matzehuels/collage/pkg/slots"
)

// composeOpts holds the command-line flags for the compose command.
type composeOpts struct {
	output     string   // output file; empty writes collage_<millis>.<ext> into download_dir
	layout     string   // grid or asymmetric
	format     string   // png, jpeg, lossless, lossy; empty infers from output
	moves      []string // "from:to" reorders applied after loading
	share      bool     // try the share backend before downloading
	yes        bool     // share without asking
	noCache    bool     // skip the re-encoded source cache
	noProgress bool     // plain output even on a terminal
}

// composeCommand creates the compose command.
func (c *CLI) composeCommand() *cobra.Command {
	var opts composeOpts

	cmd := &cobra.Command{
		Use:   "compose [photos...]",
		Short: "Arrange photos into a collage and export it",
		Long: `Arrange up to eight photos into a collage and export it.

Photos fill the slots in argument order; extra photos are skipped. Files
that cannot be displayed (HEIC without a decoder, corrupt files) are
reported with advice and leave their slot out of the collage.

Reorder slots after loading with --move, e.g. --move 0:2 moves the first
photo to the third position and shifts the others.

With --share the collage is offered to the share backend first ([redis]
in the config). Without one, or when the backend refuses the file, it
is saved as a download instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCompose(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: collage_<millis>.<ext> in download_dir)")
	cmd.Flags().StringVarP(&opts.layout, "layout", "l", "", "layout: grid (default), asymmetric")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "", "format: png (default), jpeg")
	cmd.Flags().StringArrayVar(&opts.moves, "move", nil, "reorder a slot, as from:to (repeatable)")
	cmd.Flags().BoolVar(&opts.share, "share", false, "share the collage before falling back to download")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "share without confirmation")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the re-encoded source cache")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "disable the live progress view")

	return cmd
}

// pipelineOptions converts the flags into validated pipeline options.
func (o composeOpts) pipelineOptions() (pipeline.Options, error) {
	opts := pipeline.Options{
		Layout: o.layout,
		Format: o.format,
		Share:  o.share,
	}
	if opts.Format == "" {
		opts.Format = formatFromPath(o.output)
	}
	for _, s := range o.moves {
		m, err := parseMove(s)
		if err != nil {
			return opts, err
		}
		opts.Moves = append(opts.Moves, m)
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return opts, err
	}
	return opts, nil
}

// parseMove parses "from:to".
func parseMove(s string) (pipeline.Move, error) {
	from, to, ok := strings.Cut(s, ":")
	if !ok {
		return pipeline.Move{}, errors.New(errors.ErrCodeInvalidInput, "invalid move %q: want from:to", s)
	}
	f, err1 := strconv.Atoi(strings.TrimSpace(from))
	t, err2 := strconv.Atoi(strings.TrimSpace(to))
	if err1 != nil || err2 != nil {
		return pipeline.Move{}, errors.New(errors.ErrCodeInvalidInput, "invalid move %q: slots are numbers", s)
	}
	for _, i := range []int{f, t} {
		if err := errors.ValidateSlotIndex(i, slots.Count); err != nil {
			return pipeline.Move{}, err
		}
	}
	return pipeline.Move{From: f, To: t}, nil
}

// formatFromPath infers the export format from an output extension.
func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return string(export.Lossy)
	case ".png":
		return string(export.Lossless)
	}
	return ""
}

// loadFiles describes the paths as ingest files. Unreadable paths are
// reported and skipped so one bad argument does not stop the batch.
func loadFiles(paths []string) []ingest.File {
	files := make([]ingest.File, 0, len(paths))
	for _, p := range paths {
		f, err := ingest.FromPath(p)
		if err != nil {
			printWarning("%s", errors.UserMessage(err))
			continue
		}
		files = append(files, f)
	}
	return files
}

// runCompose loads, arranges and exports one collage.
func (c *CLI) runCompose(ctx context.Context, paths []string, opts composeOpts) error {
	logger := loggerFromContext(ctx)

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	pOpts, err := opts.pipelineOptions()
	if err != nil {
		return err
	}
	pOpts.Profile = device.Desktop
	pOpts.Logger = logger

	files := loadFiles(paths)
	if len(files) == 0 {
		return errors.New(errors.ErrCodeNoContent, "no readable photos")
	}

	runner, err := c.newRunner(ctx, cfg, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	strategies, release, err := c.deliveryChain(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer release()
	runner.Strategies = func(pipeline.Options) []export.Strategy { return strategies }

	prog := newProgress(logger)
	store := slots.NewStore(pOpts.Kind())

	live := !opts.noProgress && interactive(os.Stderr)
	report, err := ingestWithView(ctx, runner, store, files, live)
	if err != nil {
		return err
	}
	printReport(report)

	for _, m := range pOpts.Moves {
		if err := store.Move(m.From, m.To); err != nil {
			return err
		}
	}

	result, err := runner.Export(ctx, store, pOpts)
	if err != nil {
		return err
	}
	result.Ingest = &report
	result.Stats.Unsupported = report.Count(slots.Unsupported)

	printResult(result)
	prog.done("Collage complete")
	return nil
}

// deliveryChain builds share (when asked for) then download.
func (c *CLI) deliveryChain(ctx context.Context, cfg config.Config, opts composeOpts) ([]export.Strategy, func(), error) {
	var (
		chain   []export.Strategy
		release = func() {}
	)

	if opts.share {
		s := &export.ShareStrategy{}
		if cfg.Redis.Enabled() {
			store, closeFn, err := newShareStore(ctx, cfg, cfg.Server.BaseURL)
			if err != nil {
				return nil, nil, fmt.Errorf("connect share backend: %w", err)
			}
			s.Sharer, release = store, closeFn
		} else {
			printWarning("No share backend configured; saving a download instead")
		}
		if !opts.yes && interactive(os.Stdin) {
			s.Confirm = confirmShare(os.Stdin)
		}
		chain = append(chain, s)
	}

	var target export.Target = export.DirTarget{Dir: cfg.Export.DownloadDir}
	if opts.output != "" {
		target = export.FileTarget{Path: opts.output}
	}
	chain = append(chain, &export.DownloadStrategy{
		Target:       target,
		CleanupDelay: cfg.Export.CleanupDelay,
		Profile:      device.Desktop,
		Logger:       c.Logger,
	})
	return chain, release, nil
}

// confirmShare asks on the terminal before sharing. Anything but an empty
// answer or y/yes declines.
func confirmShare(in io.Reader) func(ctx context.Context, name string) (bool, error) {
	r := bufio.NewReader(in)
	return func(ctx context.Context, name string) (bool, error) {
		printInline("Share %s? [Y/n] ", name)
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "", "y", "yes":
			return true, nil
		}
		return false, nil
	}
}

// printReport lists files that did not make it into a slot.
func printReport(report ingest.Report) {
	for _, res := range report.Failed() {
		printWarning("%s: %s", res.Name, errors.UserMessage(res.Err))
		if g := errors.Guidance(res.Err); g != "" {
			printDetail("%s", g)
		}
	}
	if n := len(report.Dropped); n > 0 {
		printWarning("Only %d photos fit; skipped %s", slots.Count, strings.Join(report.Dropped, ", "))
	}
}

// printResult describes where the collage went.
func printResult(result *pipeline.Result) {
	rc := result.Receipt
	switch {
	case rc.Cancelled():
		printInfo("Share cancelled, nothing was saved")
		return
	case rc.Strategy == "share":
		printSuccess("Shared %s", rc.Name)
		printLink(rc.Location)
	default:
		printSuccess("Saved %s", rc.Name)
		printFile(rc.Location)
	}
	w, h := result.Geometry.Size()
	printSummary(result.Stats, w, h)
}

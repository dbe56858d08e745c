// Package ingest turns user files into renderable slot sources.
//
// Every accepted file takes one of three routes (see [Classify]):
//
//   - direct: the bytes are read as they are, with progress proportional to
//     bytes read, starting from a floor of 20%
//   - reencode: the file is decoded at its native size and re-encoded as
//     PNG while a cosmetic progress timer runs
//   - unsupported: formats the runtime is known to be unable to decode
//     (HEIC/HEIF unless enabled) play a short progress animation and end in
//     the Unsupported state with guidance
//
// Results are installed through [slots.Store] tickets, so a load that was
// overwritten, cleared or reset never resurrects into a slot.
package ingest

import (
	"bytes"
	"context"
	"image"
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/collage/pkg/cache"
	"github.com/matzehuels/collage/pkg/config"
	"github.com/matzehuels/collage/pkg/device"
	"github.com/matzehuels/collage/pkg/errors"
	"github.com/matzehuels/collage/pkg/observability"
	"github.com/matzehuels/collage/pkg/slots"
)

// Guidance shown when a file cannot be displayed.
const (
	HEICGuidance = "HEIC/HEIF photos cannot be decoded here. Convert the photo to JPEG on the device " +
		"(on iPhone: Settings > Camera > Formats > Most Compatible), or use an online converter, " +
		"then upload it again."
	ConvertGuidance = "The file could not be converted. It may be corrupted or in an unsupported format; " +
		"export it as JPEG or PNG and upload it again."
	SizeGuidance = "The photo is too large to place in a collage. Resize it to a smaller resolution, " +
		"then upload it again."
)

// Progress milestones of the direct route.
const (
	directFloor = 20
	directSpan  = 60
)

// syntheticSteps is the number of cosmetic ticks per synthetic duration.
const syntheticSteps = 50

// feedbackSteps are the progress values of the failure animation with
// their offsets as fractions of the animation length.
var feedbackSteps = []struct {
	at       float64
	progress float64
}{
	{200.0 / 1200, 30},
	{500.0 / 1200, 60},
	{800.0 / 1200, 90},
}

// Normalizer places files into slots.
type Normalizer struct {
	cfg    config.Ingest
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger

	// SourceTTL is how long a re-encoded source stays cached.
	SourceTTL time.Duration

	rand  func() float64
	sleep func(ctx context.Context, d time.Duration) error
}

// NewNormalizer creates a normalizer. A nil cache disables caching of
// re-encoded sources; a nil keyer or logger uses the defaults.
func NewNormalizer(cfg config.Ingest, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Normalizer {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Normalizer{
		cfg:       cfg,
		cache:     c,
		keyer:     keyer,
		logger:    logger,
		SourceTTL: cache.TTLSource,
		rand:      rand.Float64,
		sleep:     sleep,
	}
}

// Result is the outcome of one file.
type Result struct {
	Index int
	Name  string
	Route Route

	// State is the terminal state installed, or Empty if the result was
	// discarded because the slot moved on to another file.
	State slots.State

	// Superseded reports that the slot was overwritten, cleared or reset
	// while the file was loading.
	Superseded bool

	Err error
}

// Normalize validates f and loads it into the slot at index, overwriting
// whatever the slot holds. It blocks until the load reaches a terminal
// state. Invalid files are rejected without touching the store.
func (n *Normalizer) Normalize(ctx context.Context, store *slots.Store, index int, f File, p device.Profile) Result {
	res := Result{Index: index, Name: f.Name}
	if err := Validate(f, n.cfg.MaxFileBytes); err != nil {
		res.Err = err
		return res
	}

	t, occupied, err := store.Begin(index, f.Name)
	if err != nil {
		res.Err = err
		return res
	}
	if occupied {
		n.logger.Warn("overwriting slot", "slot", index, "file", f.Name)
	}

	res.Route = Classify(f.Name, f.MediaType, n.cfg.HEICDecode)
	start := time.Now()
	observability.Pipeline().OnIngestStart(ctx, index, f.Name, res.Route.String())

	var installed bool
	switch res.Route {
	case RouteDirect:
		res.State, installed, res.Err = n.direct(ctx, store, t, f)
	case RouteReencode:
		res.State, installed, res.Err = n.convert(ctx, store, t, f)
	default:
		res.State, installed, res.Err = n.fail(ctx, store, t, f, HEICGuidance, nil)
	}
	if !installed && res.Err == nil {
		res.State = slots.Empty
		res.Superseded = true
	}

	observability.Pipeline().OnIngestComplete(ctx, index, f.Name, res.State.String(), time.Since(start), res.Err)
	n.logger.Debug("normalized", "slot", index, "file", f.Name, "route", res.Route, "state", res.State,
		"duration", time.Since(start).Round(time.Millisecond))
	return res
}

// direct reads the file bytes into a source.
func (n *Normalizer) direct(ctx context.Context, store *slots.Store, t slots.Ticket, f File) (slots.State, bool, error) {
	store.Progress(t, directFloor)

	data, err := n.read(f, func(done, total int64) {
		if total > 0 {
			store.Progress(t, directFloor+float64(done)/float64(total)*directSpan)
		}
	})
	if err != nil {
		store.Abandon(t)
		return slots.Empty, false, err
	}

	// Headers that cannot be read are left to the compositor to report.
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		if err := checkDimensions(cfg, format); err != nil {
			return n.fail(ctx, store, t, f, SizeGuidance, err)
		}
	}

	mediaType := MediaTypeFor(f.Name, f.MediaType)
	if mediaType == "" {
		mediaType = CanonicalMediaType(f.MediaType)
	}
	return n.install(ctx, store, t, slots.NewSource(mediaType, data))
}

// convert re-encodes the file while the cosmetic timer runs.
func (n *Normalizer) convert(ctx context.Context, store *slots.Store, t slots.Ticket, f File) (slots.State, bool, error) {
	stop := n.synthetic(ctx, store, t)

	data, err := n.read(f, nil)
	var out []byte
	if err == nil {
		out, err = n.reencodeCached(ctx, data, MediaTypeFor(f.Name, f.MediaType))
	}
	stop()

	if err != nil {
		if errors.Is(err, errors.ErrCodeInvalidInput) {
			store.Abandon(t)
			return slots.Empty, false, err
		}
		return n.fail(ctx, store, t, f, ConvertGuidance, err)
	}
	return n.install(ctx, store, t, slots.NewSource(reencodeTarget, out))
}

// install completes a successful load after the settle delay.
func (n *Normalizer) install(ctx context.Context, store *slots.Store, t slots.Ticket, src *slots.Source) (slots.State, bool, error) {
	if !store.Progress(t, 100) {
		return slots.Empty, false, nil
	}
	if err := n.sleep(ctx, n.cfg.Settle); err != nil {
		store.Abandon(t)
		return slots.Empty, false, err
	}
	if !store.Resolve(t, src) {
		return slots.Empty, false, nil
	}
	return slots.Ready, true, nil
}

// fail plays the failure animation and marks the slot unsupported.
func (n *Normalizer) fail(ctx context.Context, store *slots.Store, t slots.Ticket, f File, guidance string, cause error) (slots.State, bool, error) {
	total := n.cfg.HEICFeedback
	var elapsed time.Duration
	for _, step := range feedbackSteps {
		at := time.Duration(float64(total) * step.at)
		if err := n.sleep(ctx, at-elapsed); err != nil {
			store.Abandon(t)
			return slots.Empty, false, err
		}
		elapsed = at
		if !store.Progress(t, step.progress) {
			return slots.Empty, false, nil
		}
	}
	if err := n.sleep(ctx, total-elapsed); err != nil {
		store.Abandon(t)
		return slots.Empty, false, err
	}
	if !store.MarkUnsupported(t) {
		return slots.Empty, false, nil
	}

	guided := &errors.GuidedError{Name: f.Name, Guidance: guidance, Cause: cause}
	return slots.Unsupported, true, errors.Wrap(errors.ErrCodeDecodeFailure, guided, "%s cannot be displayed", f.Name)
}

// synthetic advances progress with randomized increments until stopped or
// at 100. It never changes the slot state. stop waits for the timer to exit.
func (n *Normalizer) synthetic(ctx context.Context, store *slots.Store, t slots.Ticket) (stop func()) {
	interval := n.cfg.SyntheticDuration / syntheticSteps
	if interval <= 0 {
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		tick := time.NewTicker(interval)
		defer tick.Stop()

		p := 0.0
		for p < 100 {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
			p += 2 + n.rand()*10
			if !store.Progress(t, p) {
				return
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// read loads the whole file, enforcing the size limit for readers of
// unknown length.
func (n *Normalizer) read(f File, progress func(done, total int64)) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "cannot read %s", f.Name)
	}
	defer rc.Close()

	var r io.Reader = rc
	limit := n.cfg.MaxFileBytes
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	if progress != nil {
		r = &progressReader{r: r, total: f.Size, fn: progress}
	}

	var buf bytes.Buffer
	if f.Size > 0 {
		buf.Grow(int(f.Size))
	}
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "cannot read %s", f.Name)
	}
	if limit > 0 && int64(buf.Len()) > limit {
		return nil, errors.New(errors.ErrCodeInvalidInput, "%s exceeds the size limit", f.Name)
	}
	if buf.Len() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "%s is empty", f.Name)
	}
	return buf.Bytes(), nil
}

// reencodeCached re-encodes data, reusing an earlier result for identical
// content.
func (n *Normalizer) reencodeCached(ctx context.Context, data []byte, mediaType string) ([]byte, error) {
	key := n.keyer.SourceKey(cache.Hash(data), reencodeTarget)
	if out, ok, err := n.cache.Get(ctx, key); err == nil && ok {
		observability.Cache().OnCacheHit(ctx, "source")
		return out, nil
	}
	observability.Cache().OnCacheMiss(ctx, "source")

	out, err := reencode(data, mediaType)
	if err != nil {
		return nil, err
	}
	if err := n.cache.Set(ctx, key, out, n.SourceTTL); err != nil {
		n.logger.Debug("cache write failed", "error", err)
	} else {
		observability.Cache().OnCacheSet(ctx, "source", len(out))
	}
	return out, nil
}

type progressReader struct {
	r     io.Reader
	done  int64
	total int64
	fn    func(done, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.done += int64(n)
		p.fn(p.done, p.total)
	}
	return n, err
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

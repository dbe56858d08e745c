// Package export delivers a composite to the user.
//
// A [Negotiator] encodes the surface once and offers the artifact to an
// ordered list of [Strategy] values, typically native share then download.
// Each strategy reports an [Outcome]:
//
//   - Delivered stops the chain with success
//   - Cancelled stops the chain silently; the user dismissed the dialog
//   - Declined and Failed fall through to the next strategy
//
// When no strategy delivers, Export returns a single DELIVERY_FAILURE.
package export

import (
	"context"
	"image"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/collage/pkg/errors"
	"github.com/matzehuels/collage/pkg/observability"
)

// Outcome is the result of one delivery attempt.
type Outcome int

const (
	Declined Outcome = iota
	Delivered
	Cancelled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return "declined"
}

// Receipt describes a finished export.
type Receipt struct {
	// Strategy names the strategy that ended the chain.
	Strategy string
	Outcome  Outcome

	// Name is the file name the artifact was delivered under.
	Name string

	// Location is where the artifact can be reached: a path, a share
	// link or a download URL.
	Location string

	// Disposition is "inline" or "attachment" for downloads.
	Disposition string

	Format Format
	Size   int
}

// Cancelled reports whether the user dismissed delivery.
func (r *Receipt) Cancelled() bool { return r.Outcome == Cancelled }

// Strategy is one way of handing an artifact to the user.
type Strategy interface {
	Name() string

	// Deliver attempts delivery. A Failed outcome carries the error; other
	// outcomes return a nil error.
	Deliver(ctx context.Context, a *Artifact) (Receipt, error)
}

// Negotiator runs the strategy chain.
type Negotiator struct {
	Strategies  []Strategy
	JPEGQuality int
	Logger      *log.Logger
}

// NewNegotiator creates a negotiator trying strategies in order.
func NewNegotiator(logger *log.Logger, strategies ...Strategy) *Negotiator {
	if logger == nil {
		logger = log.Default()
	}
	return &Negotiator{
		Strategies:  strategies,
		JPEGQuality: DefaultJPEGQuality,
		Logger:      logger,
	}
}

// Export encodes img in format f and delivers it.
func (n *Negotiator) Export(ctx context.Context, img image.Image, f Format) (*Receipt, error) {
	start := time.Now()
	a, err := Encode(img, f, n.JPEGQuality)
	if err != nil {
		observability.Pipeline().OnExportComplete(ctx, string(f), "", "", time.Since(start), err)
		return nil, err
	}
	observability.Pipeline().OnExportStart(ctx, string(f), a.Size())

	r, err := n.Deliver(ctx, a)
	var strategy, outcome string
	if r != nil {
		strategy, outcome = r.Strategy, r.Outcome.String()
	}
	observability.Pipeline().OnExportComplete(ctx, string(f), strategy, outcome, time.Since(start), err)
	return r, err
}

// Deliver offers an encoded artifact to each strategy in turn.
func (n *Negotiator) Deliver(ctx context.Context, a *Artifact) (*Receipt, error) {
	var last error
	for _, s := range n.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := s.Deliver(ctx, a)
		r.Strategy = s.Name()
		r.Format = a.Format
		r.Size = a.Size()

		switch r.Outcome {
		case Delivered:
			n.Logger.Debug("delivered", "strategy", r.Strategy, "location", r.Location)
			return &r, nil
		case Cancelled:
			n.Logger.Debug("delivery cancelled", "strategy", r.Strategy)
			return &r, nil
		case Failed:
			n.Logger.Warn("delivery failed, trying next", "strategy", r.Strategy, "error", err)
			last = err
		default:
			n.Logger.Debug("delivery declined", "strategy", r.Strategy)
		}
	}
	if last != nil {
		return nil, errors.Wrap(errors.ErrCodeDeliveryFailure, last, "the collage could not be delivered")
	}
	return nil, errors.New(errors.ErrCodeDeliveryFailure, "no way to deliver the collage is available")
}

package export

import (
	"context"

	"github.com/matzehuels/collage/pkg/errors"
)

// ShareName is the file name of shared artifacts.
const ShareName = "collage"

// Sharer is a native share capability.
type Sharer interface {
	// Accepts reports whether this payload can be shared.
	Accepts(mediaType string, size int) bool

	// Share hands the named payload to the share target and returns a
	// location for it. A USER_CANCELLED error means the user dismissed
	// the share.
	Share(ctx context.Context, name, mediaType string, data []byte) (string, error)
}

// ShareStrategy delivers through a [Sharer].
type ShareStrategy struct {
	Sharer Sharer

	// Confirm, if set, asks the user before sharing. Answering no is a
	// cancellation.
	Confirm func(ctx context.Context, name string) (bool, error)
}

// Name implements Strategy.
func (s *ShareStrategy) Name() string { return "share" }

// Deliver declines when there is no share capability or the capability
// does not accept the payload.
func (s *ShareStrategy) Deliver(ctx context.Context, a *Artifact) (Receipt, error) {
	if s.Sharer == nil || !s.Sharer.Accepts(a.MediaType(), a.Size()) {
		return Receipt{Outcome: Declined}, nil
	}

	name := ShareName + "." + a.Format.Extension()
	if s.Confirm != nil {
		ok, err := s.Confirm(ctx, name)
		if err != nil {
			return Receipt{Outcome: Failed}, err
		}
		if !ok {
			return Receipt{Outcome: Cancelled, Name: name}, nil
		}
	}

	loc, err := s.Sharer.Share(ctx, name, a.MediaType(), a.Data)
	switch {
	case errors.Is(err, errors.ErrCodeUserCancelled):
		return Receipt{Outcome: Cancelled, Name: name}, nil
	case err != nil:
		return Receipt{Outcome: Failed, Name: name}, err
	}
	return Receipt{Outcome: Delivered, Name: name, Location: loc}, nil
}

// Package session keeps per-client collage state for the HTTP surface.
//
// A session owns one [slots.Store] and nothing else. Sessions live in memory
// only and expire after a period of inactivity; every successful Get extends
// the deadline.
//
//	store := session.NewMemoryStore(session.DefaultTTL)
//	sess, _ := store.Create(ctx, layout.Grid)
//	...
//	sess, err := store.Get(ctx, id)
//	if errors.Is(err, session.ErrNotFound) {
//	    // unknown or expired
//	}
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/collage/pkg/layout"
	"github.com/matzehuels/collage/pkg/slots"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// DefaultTTL is the default idle lifetime of a session.
const DefaultTTL = 2 * time.Hour

// Session is one client's collage in progress.
type Session struct {
	ID        string
	Slots     *slots.Store
	CreatedAt time.Time
}

// Store is the interface for session storage backends.
type Store interface {
	// Create starts a new session with an empty slot store.
	Create(ctx context.Context, kind layout.Kind) (*Session, error)

	// Get returns a live session and extends its lifetime.
	// Returns ErrNotFound for unknown or expired IDs.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired sessions and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)
}

// GenerateID creates a random session ID.
func GenerateID() string {
	return uuid.NewString()
}

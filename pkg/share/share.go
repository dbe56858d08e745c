// Package share hosts exported collages behind links.
//
// A [Store] keeps artifacts in a [cache.Cache] (memory for a single
// process, Redis when several servers hand out links) under two
// namespaces: shares, reachable at <base>/shares/<id> until their TTL
// runs out, and downloads, staged at <base>/downloads/<id> until the
// export negotiator releases them.
package share

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/collage/pkg/cache"
	"github.com/matzehuels/collage/pkg/errors"
	"github.com/matzehuels/collage/pkg/export"
)

// Kind selects the namespace of an item.
type Kind string

const (
	KindShare    Kind = "shares"
	KindDownload Kind = "downloads"
)

// Item is a stored artifact.
type Item struct {
	Name        string    `json:"name"`
	MediaType   string    `json:"media_type"`
	Disposition string    `json:"disposition,omitempty"`
	Data        []byte    `json:"data"`
	CreatedAt   time.Time `json:"created_at"`
}

// Options configures a Store.
type Options struct {
	// BaseURL prefixes returned links. Empty yields root-relative links.
	BaseURL string

	// TTL is the lifetime of shares. Zero uses cache.TTLShare.
	TTL time.Duration

	// MaxBytes refuses larger payloads. Zero means no limit.
	MaxBytes int64

	// Keyer builds cache keys. Nil uses cache.DefaultKeyer.
	Keyer cache.Keyer
}

// Store is a cache-backed share target.
type Store struct {
	cache cache.Cache
	opts  Options
	now   func() time.Time
}

// NewStore creates a store over c.
func NewStore(c cache.Cache, opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = cache.TTLShare
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Store{cache: c, opts: opts, now: time.Now}
}

// Accepts reports whether a payload of this type and size can be shared.
func (s *Store) Accepts(mediaType string, size int) bool {
	if !strings.HasPrefix(mediaType, "image/") {
		return false
	}
	return s.opts.MaxBytes <= 0 || int64(size) <= s.opts.MaxBytes
}

// Share stores the payload and returns its link.
func (s *Store) Share(ctx context.Context, name, mediaType string, data []byte) (string, error) {
	id, err := s.put(ctx, KindShare, Item{Name: name, MediaType: mediaType, Data: data}, s.opts.TTL)
	if err != nil {
		return "", err
	}
	return s.Link(KindShare, id), nil
}

// Open returns a stored item. Unknown and expired ids are NOT_FOUND.
func (s *Store) Open(ctx context.Context, kind Kind, id string) (*Item, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errors.New(errors.ErrCodeNotFound, "%s %q not found", strings.TrimSuffix(string(kind), "s"), id)
	}
	data, ok, err := s.cache.Get(ctx, s.key(kind, id))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", kind, err)
	}
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "%s %q not found", strings.TrimSuffix(string(kind), "s"), id)
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "corrupt %s entry", kind)
	}
	return &item, nil
}

// Delete removes an item.
func (s *Store) Delete(ctx context.Context, kind Kind, id string) error {
	return s.cache.Delete(ctx, s.key(kind, id))
}

// Link returns the public location of an item.
func (s *Store) Link(kind Kind, id string) string {
	return s.opts.BaseURL + "/" + string(kind) + "/" + id
}

// Downloads returns a download target staging into this store. Staged
// downloads expire after ttl even if never released.
func (s *Store) Downloads(ttl time.Duration) *Downloads {
	return &Downloads{store: s, ttl: ttl}
}

func (s *Store) put(ctx context.Context, kind Kind, item Item, ttl time.Duration) (string, error) {
	item.CreatedAt = s.now().UTC()
	data, err := json.Marshal(item)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := s.cache.Set(ctx, s.key(kind, id), data, ttl); err != nil {
		return "", fmt.Errorf("store %s: %w", kind, err)
	}
	return id, nil
}

func (s *Store) key(kind Kind, id string) string {
	if kind == KindDownload {
		return s.opts.Keyer.DownloadKey(id)
	}
	return s.opts.Keyer.ShareKey(id)
}

// Downloads adapts a Store to export.Target.
type Downloads struct {
	store *Store
	ttl   time.Duration
}

// Put stages d and returns its download link.
func (d *Downloads) Put(ctx context.Context, dl export.Download) (export.Reference, error) {
	id, err := d.store.put(ctx, KindDownload, Item{
		Name:        dl.Name,
		MediaType:   dl.MediaType,
		Disposition: dl.Disposition,
		Data:        dl.Data,
	}, d.ttl)
	if err != nil {
		return export.Reference{}, err
	}
	return export.Reference{ID: id, Location: d.store.Link(KindDownload, id)}, nil
}

// Release removes a staged download.
func (d *Downloads) Release(ctx context.Context, id string) error {
	return d.store.Delete(ctx, KindDownload, id)
}

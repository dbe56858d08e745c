package cache

// ScopedKeyer wraps a Keyer with a prefix so deployments sharing one Redis
// instance do not see each other's keys.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "collage:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// SourceKey generates a prefixed key for a normalized source.
func (k *ScopedKeyer) SourceKey(contentHash, target string) string {
	return k.prefix + k.inner.SourceKey(contentHash, target)
}

// ShareKey generates a prefixed key for a shared artifact.
func (k *ScopedKeyer) ShareKey(id string) string {
	return k.prefix + k.inner.ShareKey(id)
}

// DownloadKey generates a prefixed key for a staged download.
func (k *ScopedKeyer) DownloadKey(id string) string {
	return k.prefix + k.inner.DownloadKey(id)
}

package slots

import (
	"bytes"
	"encoding/base64"
	"io"
	"strings"

	"github.com/matzehuels/collage/pkg/errors"
)

// Source is an immutable handle to encoded pixel data. It is replaced
// wholesale on state transitions and never mutated in place; callers must
// not modify the slice returned by Bytes.
type Source struct {
	mediaType string
	data      []byte
}

// NewSource wraps data without copying it. The caller hands over ownership.
func NewSource(mediaType string, data []byte) *Source {
	return &Source{mediaType: mediaType, data: data}
}

// MediaType returns the encoding of the data, such as "image/png".
func (s *Source) MediaType() string { return s.mediaType }

// Bytes returns the encoded data.
func (s *Source) Bytes() []byte { return s.data }

// Len returns the size of the encoded data in bytes.
func (s *Source) Len() int { return len(s.data) }

// Reader returns a fresh reader over the encoded data.
func (s *Source) Reader() io.Reader { return bytes.NewReader(s.data) }

// DataURI returns the source as a base64 data URI.
func (s *Source) DataURI() string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(s.mediaType) + base64.StdEncoding.EncodedLen(len(s.data)))
	b.WriteString("data:")
	b.WriteString(s.mediaType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(s.data))
	return b.String()
}

// ParseDataURI decodes a base64 data URI produced by [Source.DataURI].
func ParseDataURI(uri string) (*Source, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidInput, "data URI has no payload")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode data URI")
	}
	return NewSource(mediaType, data), nil
}

package ingest

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/matzehuels/collage/pkg/errors"
)

// File is a file-like input from a chooser, a drop or the file system.
type File struct {
	// Name is the base name the user sees.
	Name string

	// MediaType is the declared type, possibly empty.
	MediaType string

	// Size is the length in bytes, or -1 when unknown.
	Size int64

	open func() (io.ReadCloser, error)
}

// Open returns a reader over the file contents.
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, errors.New(errors.ErrCodeInternal, "file %q has no content", f.Name)
	}
	return f.open()
}

// FromBytes wraps in-memory content, such as a multipart upload.
func FromBytes(name, mediaType string, data []byte) File {
	return File{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromPath describes a file on disk. The media type comes from the
// extension, or from sniffing the first bytes when the extension is unknown.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "cannot read %s", path)
	}
	if info.IsDir() {
		return File{}, errors.New(errors.ErrCodeInvalidInput, "%s is a directory", path)
	}

	name := filepath.Base(path)
	f := File{
		Name:      name,
		MediaType: MediaTypeFor(name, ""),
		Size:      info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
	if f.MediaType == "" {
		f.MediaType = sniff(f)
	}
	return f, nil
}

// sniff detects the content type from the first 512 bytes.
func sniff(f File) string {
	rc, err := f.Open()
	if err != nil {
		return ""
	}
	defer rc.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(rc, head)
	if n == 0 {
		return ""
	}
	mt := CanonicalMediaType(http.DetectContentType(head[:n]))
	if mt == "application/octet-stream" || strings.HasPrefix(mt, "text/plain") {
		return ""
	}
	return mt
}

// Validate reports whether f is acceptable input. A file is accepted when
// its extension is on the allow-list, its declared type is a known image
// type, or its declared type is any image/* type. Validation never changes
// pipeline state.
func Validate(f File, maxBytes int64) error {
	if err := errors.ValidateFilename(f.Name); err != nil {
		return err
	}

	_, extOK := byExtension[Extension(f.Name)]
	mt := CanonicalMediaType(f.MediaType)
	_, typeOK := byMediaType[mt]
	if !extOK && !typeOK && !strings.HasPrefix(mt, "image/") {
		return errors.New(errors.ErrCodeInvalidInput, "%s is not a supported image file", f.Name)
	}

	if maxBytes > 0 && f.Size > maxBytes {
		return errors.New(errors.ErrCodeInvalidInput, "%s is %s, larger than the %s limit",
			f.Name, humanize.IBytes(uint64(f.Size)), humanize.IBytes(uint64(maxBytes)))
	}
	return nil
}

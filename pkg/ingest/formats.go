package ingest

import (
	"mime"
	"path/filepath"
	"strings"
)

// Route is how a file becomes a renderable source.
type Route int

const (
	// RouteDirect reads the bytes as they are; the compositor decodes them.
	RouteDirect Route = iota

	// RouteReencode decodes the file and re-encodes it as PNG.
	RouteReencode

	// RouteUnsupported marks formats this runtime is known to be unable to
	// decode. They go straight to failure handling.
	RouteUnsupported
)

func (r Route) String() string {
	switch r {
	case RouteDirect:
		return "direct"
	case RouteReencode:
		return "reencode"
	case RouteUnsupported:
		return "unsupported"
	}
	return "unknown"
}

// Format describes one accepted file format.
type Format struct {
	Name       string
	MediaType  string
	Extensions []string
	family     family
}

type family int

const (
	familyDirect family = iota // decodable by the compositor
	familyConvert              // needs re-encoding
	familyHEIC                 // HEIC/HEIF: re-encoding only when enabled
)

// formats is the exhaustive extension allow-list.
var formats = []Format{
	{"JPEG", "image/jpeg", []string{".jpg", ".jpeg", ".jfif", ".pjpeg", ".pjp"}, familyDirect},
	{"PNG", "image/png", []string{".png"}, familyDirect},
	{"GIF", "image/gif", []string{".gif"}, familyDirect},
	{"WebP", "image/webp", []string{".webp"}, familyDirect},
	{"BMP", "image/bmp", []string{".bmp"}, familyDirect},
	{"TIFF", "image/tiff", []string{".tiff", ".tif"}, familyConvert},
	{"SVG", "image/svg+xml", []string{".svg"}, familyConvert},
	{"ICO", "image/x-icon", []string{".ico"}, familyConvert},
	{"AVIF", "image/avif", []string{".avif"}, familyConvert},
	{"HEIC", "image/heic", []string{".heic"}, familyHEIC},
	{"HEIF", "image/heif", []string{".heif"}, familyHEIC},
}

// mediaTypeAliases maps the declared types browsers and cameras send to
// the canonical type in formats.
var mediaTypeAliases = map[string]string{
	"image/jpg":                "image/jpeg",
	"image/pjpeg":              "image/jpeg",
	"image/tif":                "image/tiff",
	"image/ico":                "image/x-icon",
	"image/vnd.microsoft.icon": "image/x-icon",
	"image/heic-sequence":      "image/heic",
	"image/heif-sequence":      "image/heif",
}

var (
	byExtension = make(map[string]*Format)
	byMediaType = make(map[string]*Format)
)

func init() {
	for i := range formats {
		f := &formats[i]
		byMediaType[f.MediaType] = f
		for _, ext := range f.Extensions {
			byExtension[ext] = f
		}
	}
}

// Formats returns the accepted formats in display order.
func Formats() []Format {
	out := make([]Format, len(formats))
	copy(out, formats)
	return out
}

// Route returns how files of this format are normalized.
func (f Format) Route(heicDecode bool) Route {
	switch f.family {
	case familyDirect:
		return RouteDirect
	case familyHEIC:
		if !heicDecode {
			return RouteUnsupported
		}
	}
	return RouteReencode
}

// Extension returns the lower-cased extension of name, including the dot.
func Extension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// CanonicalMediaType lower-cases mt, strips parameters and resolves
// aliases such as image/jpg.
func CanonicalMediaType(mt string) string {
	mt = strings.TrimSpace(mt)
	if mt == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	} else {
		mt = strings.ToLower(mt)
	}
	if alias, ok := mediaTypeAliases[mt]; ok {
		return alias
	}
	return mt
}

// MediaTypeFor returns the media type for a file, preferring a recognized
// declared type over the extension. It returns "" when neither is known.
func MediaTypeFor(name, declared string) string {
	mt := CanonicalMediaType(declared)
	if _, ok := byMediaType[mt]; ok {
		return mt
	}
	if f, ok := byExtension[Extension(name)]; ok {
		return f.MediaType
	}
	if strings.HasPrefix(mt, "image/") {
		return mt
	}
	return ""
}

// Classify returns the normalization route for a file. Extension and
// declared type are both consulted and the more conservative route wins, so
// a renamed HEIC file is still treated as HEIC. Image types outside the
// allow-list are re-encoded: if the runtime can decode them, they work.
func Classify(name, mediaType string, heicDecode bool) Route {
	byExt := byExtension[Extension(name)]
	byType := byMediaType[CanonicalMediaType(mediaType)]
	if byExt == nil && byType == nil {
		return RouteReencode
	}

	route := RouteDirect
	for _, f := range []*Format{byExt, byType} {
		if f == nil {
			continue
		}
		if r := f.Route(heicDecode); r > route {
			route = r
		}
	}
	return route
}

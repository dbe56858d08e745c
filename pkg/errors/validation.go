package errors

import (
	"strings"
	"unicode"
)

// MaxFilenameLength is the longest file name accepted from an input surface.
const MaxFilenameLength = 255

// ValidateFilename validates an uploaded or dropped file name for safety.
// Names end up in log lines, cache keys and download headers, so the rules
// are conservative:
//   - No empty names
//   - No control characters or null bytes
//   - No path separators (a name is a basename, not a path)
//   - Maximum length of 255 bytes
func ValidateFilename(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "file name cannot be empty")
	}

	if len(name) > MaxFilenameLength {
		return New(ErrCodeInvalidInput, "file name too long (max %d characters)", MaxFilenameLength)
	}

	for _, r := range name {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "file name contains invalid control characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidInput, "file name cannot contain path separators")
	}

	if name == "." || name == ".." {
		return New(ErrCodeInvalidInput, "file name %q is not allowed", name)
	}

	return nil
}

// ValidateSlotIndex checks that index addresses one of count slots.
func ValidateSlotIndex(index, count int) error {
	if index < 0 || index >= count {
		return New(ErrCodeInvalidIndex, "slot index %d out of range [0, %d)", index, count)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

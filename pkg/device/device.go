// Package device describes the capabilities of the client a collage is
// built for.
package device

import "regexp"

var (
	handheldPattern = regexp.MustCompile(`(?i)Android|webOS|iPhone|iPad|iPod|BlackBerry|IEMobile|Opera Mini`)
	iosPattern      = regexp.MustCompile(`iPad|iPhone|iPod`)
)

// Profile is what the pipeline needs to know about a client.
type Profile struct {
	// Handheld clients open downloads inline instead of saving them.
	Handheld bool `json:"handheld"`

	// IOS clients get a longer stagger between batch loads.
	IOS bool `json:"ios"`
}

// Desktop is the profile of a local terminal session.
var Desktop = Profile{}

// Detect derives a profile from a User-Agent header.
func Detect(userAgent string) Profile {
	return Profile{
		Handheld: handheldPattern.MatchString(userAgent),
		IOS:      iosPattern.MatchString(userAgent),
	}
}

// Disposition returns the Content-Disposition type for downloads.
func (p Profile) Disposition() string {
	if p.Handheld {
		return "inline"
	}
	return "attachment"
}

package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/collage/pkg/device"
)

// Download is an artifact staged for download.
type Download struct {
	Name        string `json:"name"`
	MediaType   string `json:"media_type"`
	Disposition string `json:"disposition"`
	Data        []byte `json:"data"`
}

// Reference locates a staged download.
type Reference struct {
	// ID is handed back to Release. Empty means there is nothing to release.
	ID       string
	Location string

	// Name is the file name actually used, when the target picked its own.
	Name string
}

// Target stages downloads and releases them.
type Target interface {
	Put(ctx context.Context, d Download) (Reference, error)
	Release(ctx context.Context, id string) error
}

// DownloadName returns the download file name for an export at t.
func DownloadName(f Format, t time.Time) string {
	return fmt.Sprintf("collage_%d.%s", t.UnixMilli(), f.Extension())
}

// DownloadStrategy stages the artifact on a [Target] and releases the
// reference after CleanupDelay.
type DownloadStrategy struct {
	Target       Target
	CleanupDelay time.Duration
	Profile      device.Profile
	Logger       *log.Logger

	now func() time.Time
}

// Name implements Strategy.
func (s *DownloadStrategy) Name() string { return "download" }

// Deliver stages the download. The reference is released asynchronously so
// the transfer can begin first.
func (s *DownloadStrategy) Deliver(ctx context.Context, a *Artifact) (Receipt, error) {
	if s.Target == nil {
		return Receipt{Outcome: Declined}, nil
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}

	d := Download{
		Name:        DownloadName(a.Format, now()),
		MediaType:   a.MediaType(),
		Disposition: s.Profile.Disposition(),
		Data:        a.Data,
	}
	ref, err := s.Target.Put(ctx, d)
	if err != nil {
		return Receipt{Outcome: Failed, Name: d.Name}, err
	}

	if ref.Name != "" {
		d.Name = ref.Name
	}

	if s.CleanupDelay > 0 && ref.ID != "" {
		time.AfterFunc(s.CleanupDelay, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.Target.Release(ctx, ref.ID); err != nil && s.Logger != nil {
				s.Logger.Debug("release download", "id", ref.ID, "error", err)
			}
		})
	}

	return Receipt{
		Outcome:     Delivered,
		Name:        d.Name,
		Location:    ref.Location,
		Disposition: d.Disposition,
	}, nil
}

// DirTarget writes downloads into a directory. The written file is the
// delivered artifact and stays where it is, so there is nothing to release.
type DirTarget struct {
	Dir string
}

// Put writes d into the directory through a temporary file.
func (t DirTarget) Put(ctx context.Context, d Download) (Reference, error) {
	if err := ctx.Err(); err != nil {
		return Reference{}, err
	}
	dir := t.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Reference{}, fmt.Errorf("create download dir: %w", err)
	}

	path := filepath.Join(dir, d.Name)
	tmp := path + ".part"
	if err := os.WriteFile(tmp, d.Data, 0o644); err != nil {
		os.Remove(tmp)
		return Reference{}, fmt.Errorf("write download: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return Reference{}, fmt.Errorf("write download: %w", err)
	}
	return Reference{Location: path, Name: d.Name}, nil
}

// Release implements Target. Files on disk belong to the user.
func (t DirTarget) Release(ctx context.Context, id string) error {
	return nil
}

// FileTarget writes a download to a fixed path instead of a generated name.
type FileTarget struct {
	Path string
}

// Put writes d to Path. The reference names Path's base name.
func (t FileTarget) Put(ctx context.Context, d Download) (Reference, error) {
	return DirTarget{Dir: filepath.Dir(t.Path)}.Put(ctx, Download{
		Name:      filepath.Base(t.Path),
		MediaType: d.MediaType,
		Data:      d.Data,
	})
}

// Release implements Target; like DirTarget there is nothing to release.
func (t FileTarget) Release(ctx context.Context, id string) error {
	return nil
}

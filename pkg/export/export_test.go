package export

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/collage/pkg/device"
	"github.com/matzehuels/collage/pkg/errors"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.Set(x, y, color.RGBA{200, 10, 10, 255})
		}
	}
	return img
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", Lossless, false},
		{"png", Lossless, false},
		{"lossless", Lossless, false},
		{"JPEG", Lossy, false},
		{"jpg", Lossy, false},
		{"lossy", Lossy, false},
		{"gif", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if tt.wantErr && !errors.Is(err, errors.ErrCodeInvalidFormat) {
				t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeInvalidFormat)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		format Format
		name   string
		ext    string
	}{
		{Lossless, "png", "png"},
		{Lossy, "jpeg", "jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Encode(testImage(), tt.format, 0)
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			img, format, err := image.Decode(bytes.NewReader(a.Data))
			if err != nil {
				t.Fatalf("decode artifact: %v", err)
			}
			if format != tt.name {
				t.Errorf("encoded as %q, want %q", format, tt.name)
			}
			if img.Bounds().Dx() != 4 {
				t.Errorf("width = %d, want 4", img.Bounds().Dx())
			}
			if tt.format.Extension() != tt.ext {
				t.Errorf("Extension() = %q, want %q", tt.format.Extension(), tt.ext)
			}
		})
	}

	if _, err := Encode(image.NewRGBA(image.Rectangle{}), Lossless, 0); !errors.Is(err, errors.ErrCodeDeliveryFailure) {
		t.Errorf("Encode(empty) error = %v, want %v", err, errors.ErrCodeDeliveryFailure)
	}
}

// fakeStrategy returns a fixed outcome and counts calls.
type fakeStrategy struct {
	name    string
	outcome Outcome
	err     error
	calls   int
}

func (f *fakeStrategy) Name() string { return f.name }

func (f *fakeStrategy) Deliver(ctx context.Context, a *Artifact) (Receipt, error) {
	f.calls++
	return Receipt{Outcome: f.outcome, Location: f.name + "://x"}, f.err
}

func quietLogger() *log.Logger { return log.New(io.Discard) }

func TestNegotiatorChain(t *testing.T) {
	boom := fmt.Errorf("boom")
	tests := []struct {
		name         string
		first        *fakeStrategy
		second       *fakeStrategy
		wantStrategy string
		wantOutcome  Outcome
		wantErr      bool
		secondCalled bool
	}{
		{"first delivers", &fakeStrategy{name: "share", outcome: Delivered}, &fakeStrategy{name: "download", outcome: Delivered}, "share", Delivered, false, false},
		{"cancel is silent", &fakeStrategy{name: "share", outcome: Cancelled}, &fakeStrategy{name: "download", outcome: Delivered}, "share", Cancelled, false, false},
		{"decline falls through", &fakeStrategy{name: "share", outcome: Declined}, &fakeStrategy{name: "download", outcome: Delivered}, "download", Delivered, false, true},
		{"failure falls through", &fakeStrategy{name: "share", outcome: Failed, err: boom}, &fakeStrategy{name: "download", outcome: Delivered}, "download", Delivered, false, true},
		{"all fail", &fakeStrategy{name: "share", outcome: Failed, err: boom}, &fakeStrategy{name: "download", outcome: Failed, err: boom}, "", 0, true, true},
		{"none available", &fakeStrategy{name: "share", outcome: Declined}, &fakeStrategy{name: "download", outcome: Declined}, "", 0, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewNegotiator(quietLogger(), tt.first, tt.second)
			r, err := n.Export(context.Background(), testImage(), Lossless)

			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeDeliveryFailure) {
					t.Fatalf("Export() error = %v, want %v", err, errors.ErrCodeDeliveryFailure)
				}
				if r != nil {
					t.Errorf("Export() receipt = %+v, want nil", r)
				}
			} else {
				if err != nil {
					t.Fatalf("Export() error: %v", err)
				}
				if r.Strategy != tt.wantStrategy || r.Outcome != tt.wantOutcome {
					t.Errorf("receipt = %s/%v, want %s/%v", r.Strategy, r.Outcome, tt.wantStrategy, tt.wantOutcome)
				}
				if r.Size == 0 || r.Format != Lossless {
					t.Errorf("receipt format/size = %v/%d", r.Format, r.Size)
				}
			}
			if got := tt.second.calls > 0; got != tt.secondCalled {
				t.Errorf("second strategy called = %v, want %v", got, tt.secondCalled)
			}
		})
	}
}

// fakeSharer records shares.
type fakeSharer struct {
	accept bool
	err    error
	names  []string
}

func (f *fakeSharer) Accepts(string, int) bool { return f.accept }

func (f *fakeSharer) Share(ctx context.Context, name, mediaType string, data []byte) (string, error) {
	f.names = append(f.names, name)
	return "https://example.com/shares/1", f.err
}

func TestShareStrategy(t *testing.T) {
	a := &Artifact{Format: Lossy, Data: []byte("jpeg")}
	yes := func(context.Context, string) (bool, error) { return true, nil }
	no := func(context.Context, string) (bool, error) { return false, nil }

	tests := []struct {
		name    string
		s       *ShareStrategy
		want    Outcome
		wantErr bool
	}{
		{"no capability", &ShareStrategy{}, Declined, false},
		{"payload refused", &ShareStrategy{Sharer: &fakeSharer{}}, Declined, false},
		{"shared", &ShareStrategy{Sharer: &fakeSharer{accept: true}, Confirm: yes}, Delivered, false},
		{"user says no", &ShareStrategy{Sharer: &fakeSharer{accept: true}, Confirm: no}, Cancelled, false},
		{"dismissed", &ShareStrategy{Sharer: &fakeSharer{accept: true, err: errors.New(errors.ErrCodeUserCancelled, "dismissed")}}, Cancelled, false},
		{"errors", &ShareStrategy{Sharer: &fakeSharer{accept: true, err: fmt.Errorf("offline")}}, Failed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.s.Deliver(context.Background(), a)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Deliver() error = %v, wantErr %v", err, tt.wantErr)
			}
			if r.Outcome != tt.want {
				t.Errorf("Deliver() outcome = %v, want %v", r.Outcome, tt.want)
			}
		})
	}

	sharer := &fakeSharer{accept: true}
	(&ShareStrategy{Sharer: sharer}).Deliver(context.Background(), a)
	if len(sharer.names) != 1 || sharer.names[0] != "collage.jpg" {
		t.Errorf("shared names = %v, want [collage.jpg]", sharer.names)
	}
}

// memTarget keeps downloads in memory.
type memTarget struct {
	mu       sync.Mutex
	puts     []Download
	released chan string
	err      error
}

func (m *memTarget) Put(ctx context.Context, d Download) (Reference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return Reference{}, m.err
	}
	m.puts = append(m.puts, d)
	return Reference{ID: "ref1", Location: "/downloads/ref1"}, nil
}

func (m *memTarget) Release(ctx context.Context, id string) error {
	m.released <- id
	return nil
}

func TestDownloadStrategy(t *testing.T) {
	stamp := time.UnixMilli(1700000000123)
	target := &memTarget{released: make(chan string, 1)}
	s := &DownloadStrategy{
		Target:       target,
		CleanupDelay: 10 * time.Millisecond,
		Profile:      device.Profile{Handheld: true},
		now:          func() time.Time { return stamp },
	}

	r, err := s.Deliver(context.Background(), &Artifact{Format: Lossless, Data: []byte("png")})
	if err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if r.Outcome != Delivered || r.Location != "/downloads/ref1" {
		t.Errorf("receipt = %+v", r)
	}
	if r.Name != "collage_1700000000123.png" {
		t.Errorf("Name = %q, want collage_1700000000123.png", r.Name)
	}
	if r.Disposition != "inline" || target.puts[0].Disposition != "inline" {
		t.Errorf("Disposition = %q, want inline on handheld", r.Disposition)
	}

	select {
	case id := <-target.released:
		if id != "ref1" {
			t.Errorf("released %q, want ref1", id)
		}
	case <-time.After(time.Second):
		t.Error("download reference never released")
	}
}

func TestDownloadStrategyErrors(t *testing.T) {
	r, err := (&DownloadStrategy{}).Deliver(context.Background(), &Artifact{Format: Lossless})
	if err != nil || r.Outcome != Declined {
		t.Errorf("no target: %v/%v, want declined", r.Outcome, err)
	}

	s := &DownloadStrategy{Target: &memTarget{err: fmt.Errorf("disk full")}}
	r, err = s.Deliver(context.Background(), &Artifact{Format: Lossless})
	if err == nil || r.Outcome != Failed {
		t.Errorf("failing target: %v/%v, want failed", r.Outcome, err)
	}
}

func TestDirTarget(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	target := DirTarget{Dir: dir}

	ref, err := target.Put(context.Background(), Download{Name: "collage_1.png", Data: []byte("png")})
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if want := filepath.Join(dir, "collage_1.png"); ref.Location != want {
		t.Errorf("Location = %q, want %q", ref.Location, want)
	}
	data, err := os.ReadFile(ref.Location)
	if err != nil || string(data) != "png" {
		t.Errorf("file = %q, %v", data, err)
	}
	if ref.ID != "" || ref.Name != "collage_1.png" {
		t.Errorf("ref = %+v, want no release id and name collage_1.png", ref)
	}
	if err := target.Release(context.Background(), ref.ID); err != nil {
		t.Errorf("Release() error: %v", err)
	}
	if _, err := os.Stat(ref.Location); err != nil {
		t.Errorf("Release() removed the delivered file: %v", err)
	}
}

func TestFileTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mine.jpg")
	ref, err := FileTarget{Path: path}.Put(context.Background(), Download{Name: "collage_1.jpg", Data: []byte("jpg")})
	if err != nil {
		t.Fatalf("Put() error: %v", err)
	}
	if ref.Location != path {
		t.Errorf("Location = %q, want %q", ref.Location, path)
	}

	// The receipt carries the name that was written, not the generated one.
	s := &DownloadStrategy{Target: FileTarget{Path: path}, CleanupDelay: time.Millisecond}
	r, err := s.Deliver(context.Background(), &Artifact{Format: Lossy, Data: []byte("jpg")})
	if err != nil {
		t.Fatalf("Deliver() error: %v", err)
	}
	if r.Name != "mine.jpg" || r.Location != path {
		t.Errorf("receipt = %q at %q, want mine.jpg at %q", r.Name, r.Location, path)
	}
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "*"))
	if len(matches) != 1 {
		t.Errorf("dir holds %v, want only mine.jpg", matches)
	}
}

func TestDownloadName(t *testing.T) {
	if got := DownloadName(Lossy, time.UnixMilli(42)); got != "collage_42.jpg" {
		t.Errorf("DownloadName() = %q, want collage_42.jpg", got)
	}
}

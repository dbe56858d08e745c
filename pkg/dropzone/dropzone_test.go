package dropzone

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestMatch(t *testing.T) {
	w, err := New(t.TempDir(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer w.fs.Close()

	tests := []struct {
		name string
		want bool
	}{
		{"a.png", true},
		{"IMG_0001.JPG", true},
		{"scan.tif", true},
		{"photo.heic", true},
		{"/some/dir/logo.svg", true},
		{"notes.txt", false},
		{"archive.png.zip", false},
		{"png", false},
	}
	for _, tt := range tests {
		if got := w.Match(tt.name); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCustomPattern(t *testing.T) {
	w, err := New(t.TempDir(), Options{Pattern: "holiday_*.JPG"})
	if err != nil {
		t.Fatal(err)
	}
	defer w.fs.Close()

	if !w.Match("Holiday_1.jpg") || w.Match("work_1.jpg") {
		t.Error("custom pattern not applied case-insensitively")
	}
}

func TestNewErrors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	os.WriteFile(file, nil, 0o644)

	if _, err := New(filepath.Join(dir, "missing"), Options{}); err == nil {
		t.Error("New(missing) error = nil")
	}
	if _, err := New(file, Options{}); err == nil {
		t.Error("New(file) error = nil")
	}
	if _, err := New(dir, Options{Pattern: "[unclosed"}); err == nil {
		t.Error("New(bad pattern) error = nil")
	}
}

func TestDefaultPattern(t *testing.T) {
	p := DefaultPattern()
	for _, ext := range []string{"jpg", "png", "heic", "svg"} {
		if !strings.Contains(p, ext) {
			t.Errorf("DefaultPattern() = %q, missing %s", p, ext)
		}
	}
}

func TestRunGroupsDrop(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, Options{Quiet: 150 * time.Millisecond, Logger: log.New(io.Discard)})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	drops := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(ctx context.Context, paths []string) { drops <- paths })
	}()

	for _, name := range []string{"a.png", "notes.txt", "b.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case got := <-drops:
		if len(got) != 2 || filepath.Base(got[0]) != "a.png" || filepath.Base(got[1]) != "b.jpg" {
			t.Errorf("drop = %v, want [a.png b.jpg]", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no drop delivered")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

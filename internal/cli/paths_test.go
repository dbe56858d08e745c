package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/collage/pkg/config"
)

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	os.Unsetenv("XDG_CACHE_HOME")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".cache", appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestCacheDirXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/custom-cache")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if want := filepath.Join("/tmp/custom-cache", appName); dir != want {
		t.Errorf("cacheDir() with XDG_CACHE_HOME = %q, want %q", dir, want)
	}
}

func TestSourceCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/custom-cache")

	cfg := config.Defaults()
	if dir, _ := sourceCacheDir(cfg); dir != filepath.Join("/tmp/custom-cache", appName) {
		t.Errorf("sourceCacheDir(default) = %q", dir)
	}
	cfg.Cache.Dir = "/var/cache/photos"
	if dir, _ := sourceCacheDir(cfg); dir != "/var/cache/photos" {
		t.Errorf("sourceCacheDir(configured) = %q", dir)
	}
}

func TestNewCacheDisabled(t *testing.T) {
	cfg := config.Defaults()
	cfg.Cache.Disabled = true
	c, err := newCache(cfg, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(t.Context(), "k"); ok {
		t.Error("disabled cache returned a hit")
	}

	cfg.Cache.Disabled = false
	cfg.Cache.Dir = t.TempDir()
	c, err = newCache(cfg, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Set(t.Context(), "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := c.Get(t.Context(), "k"); !ok || string(v) != "v" {
		t.Errorf("file cache Get() = %q, %v", v, ok)
	}
}

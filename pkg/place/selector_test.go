package place

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"afniplace/internal/models"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func TestStaticSelectorDefaults(t *testing.T) {
	sel := &StaticSelector{Inputs: []string{"/data/a/epi+orig.HEAD", "/data/b/epi+orig.HEAD"}, ParScan: "ParScan", Dmap: "Dmap"}
	s, err := Select(sel)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if s.OutputDir != "/data/a" {
		t.Errorf("Expected output dir /data/a, got %s", s.OutputDir)
	}

	if _, err := Select(&StaticSelector{ParScan: "ParScan", Dmap: "Dmap"}); err == nil {
		t.Error("Expected error for empty input list")
	}
	if _, err := Select(&StaticSelector{Inputs: []string{"a+orig.HEAD"}, ParScan: "ParScan"}); err == nil {
		t.Error("Expected error for missing Dmap")
	}
}

func TestSelectionValidate(t *testing.T) {
	dir := t.TempDir()
	good := &Selection{
		Inputs:    []string{touch(t, filepath.Join(dir, "epi+orig.HEAD"))},
		ParScan:   touch(t, filepath.Join(dir, "ParScan_run1")),
		Dmap:      touch(t, filepath.Join(dir, "Dmap_run1")),
		OutputDir: dir,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("Expected valid selection, got %v", err)
	}

	bad := &Selection{
		Inputs:    []string{touch(t, filepath.Join(dir, "epi+orig.BRIK")), filepath.Join(dir, "gone+orig.HEAD")},
		ParScan:   touch(t, filepath.Join(dir, "params.txt")),
		Dmap:      filepath.Join(dir, "Dmap_missing"),
		OutputDir: good.ParScan,
	}
	err := bad.Validate()
	if err == nil {
		t.Fatal("Expected validation errors")
	}
	if !errors.Is(err, models.ErrNotFound) || !errors.Is(err, models.ErrParse) {
		t.Errorf("Expected both not found and parse errors, got %v", err)
	}
}

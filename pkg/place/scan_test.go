package place

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"afniplace/internal/models"
)

func TestParseScanParams(t *testing.T) {
	p, err := ParseScanParams(strings.NewReader("64 64 28\n120 2 9 9 9\n"), "ParScan")
	if err != nil {
		t.Fatalf("Failed to parse scan params: %v", err)
	}
	want := models.ScanParams{ReadCount: 64, PhaseCount: 64, SliceCount: 28, Repetitions: 120, Expansion: 2}
	if p != want {
		t.Errorf("Expected %+v, got %+v", want, p)
	}
	if p.DmapPhaseCount() != 128 {
		t.Errorf("Expected dmap phase count 128, got %d", p.DmapPhaseCount())
	}
}

func TestParseScanParamsErrors(t *testing.T) {
	tests := map[string]string{
		"too few":        "64 64 28 120",
		"empty":          "",
		"not an integer": "64 64 x 120 2",
		"zero expansion": "64 64 28 120 0",
		"zero read":      "0 64 28 120 1",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScanParams(strings.NewReader(body), "ParScan")
			if !errors.Is(err, models.ErrParse) {
				t.Errorf("Expected parse error, got %v", err)
			}
		})
	}
}

func TestLoadScanParams(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ParScan")
	if err := os.WriteFile(path, []byte("4 6 2 3 1"), 0644); err != nil {
		t.Fatalf("Failed to write ParScan: %v", err)
	}
	p, err := LoadScanParams(path)
	if err != nil {
		t.Fatalf("Failed to load scan params: %v", err)
	}
	if p.Dims() != [3]int{4, 6, 2} {
		t.Errorf("Expected dims 4x6x2, got %v", p.Dims())
	}

	if _, err := LoadScanParams(filepath.Join(dir, "missing")); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found error, got %v", err)
	}
}

// Package place runs PLACE correction over a batch of AFNI datasets: it reads
// the scan parameters and displacement map, builds the unwarp operator once
// and applies it to every timepoint of every selected dataset.
package place

import (
	"io"
	"os"
	"strconv"
	"strings"

	"afniplace/internal/models"
)

// ParseScanParams reads the first five integer tokens of a ParScan file:
// read, phase and slice counts, repetitions and expansion factor. Any
// further tokens are ignored.
func ParseScanParams(r io.Reader, path string) (models.ScanParams, error) {
	var p models.ScanParams

	raw, err := io.ReadAll(r)
	if err != nil {
		return p, models.NotFound(path, err)
	}
	fields := strings.Fields(string(raw))
	if len(fields) < 5 {
		return p, models.ParseErrorf(path, "", "expected 5 values (xres, yres, zres, reps, expansion), found %d", len(fields))
	}

	vals := make([]int, 5)
	for i, f := range fields[:5] {
		v, err := strconv.Atoi(f)
		if err != nil {
			return p, models.ParseErrorf(path, "", "value %d is not an integer: %q", i+1, f)
		}
		vals[i] = v
	}
	p = models.ScanParams{
		ReadCount:   vals[0],
		PhaseCount:  vals[1],
		SliceCount:  vals[2],
		Repetitions: vals[3],
		Expansion:   vals[4],
	}

	if p.ReadCount <= 0 || p.PhaseCount <= 0 || p.SliceCount <= 0 {
		return p, models.ParseErrorf(path, "", "non-positive geometry %s", p)
	}
	if p.Expansion <= 0 {
		return p, models.ParseErrorf(path, "", "expansion factor must be positive, got %d", p.Expansion)
	}
	return p, nil
}

// LoadScanParams opens and parses a ParScan file
func LoadScanParams(path string) (models.ScanParams, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.ScanParams{}, models.NotFound(path, err)
	}
	defer f.Close()
	return ParseScanParams(f, path)
}

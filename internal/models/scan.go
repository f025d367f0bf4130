package models

import "fmt"

// ScanParams holds the acquisition geometry read from a ParScan file
type ScanParams struct {
	// ReadCount is the number of read-direction points (x)
	ReadCount int

	// PhaseCount is the number of phase-encode points in the volume (y)
	PhaseCount int

	// SliceCount is the number of slices (z)
	SliceCount int

	// Repetitions is the number of acquired timepoints
	Repetitions int

	// Expansion is the ratio of displacement-map to volume phase resolution
	Expansion int
}

// Dims returns the spatial dimensions a dataset must have to be corrected
// with these parameters
func (p ScanParams) Dims() [3]int {
	return [3]int{p.ReadCount, p.PhaseCount, p.SliceCount}
}

// DmapPhaseCount is the phase extent of the displacement map
func (p ScanParams) DmapPhaseCount() int {
	return p.PhaseCount * p.Expansion
}

func (p ScanParams) String() string {
	return fmt.Sprintf("(xres %d, yres %d, zres %d, reps %d, expansion %d)",
		p.ReadCount, p.PhaseCount, p.SliceCount, p.Repetitions, p.Expansion)
}

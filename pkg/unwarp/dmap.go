// Package unwarp builds and applies the sparse PLACE unwarping operator that
// moves phase-encode displaced voxels back to their origin.
package unwarp

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"afniplace/internal/models"
)

// DisplacementMap is a (read, phase, slice) grid of phase-axis displacements.
// Data is stored read-fastest, matching the on-disk layout.
type DisplacementMap struct {
	Read, Phase, Slice int
	Data               []int16
}

// NewDisplacementMap wraps data without copying
func NewDisplacementMap(read, phase, slice int, data []int16) (*DisplacementMap, error) {
	if read <= 0 || phase <= 0 || slice <= 0 {
		return nil, fmt.Errorf("invalid displacement map shape %dx%dx%d", read, phase, slice)
	}
	if len(data) != read*phase*slice {
		return nil, fmt.Errorf("displacement map holds %d values, shape %dx%dx%d needs %d",
			len(data), read, phase, slice, read*phase*slice)
	}
	return &DisplacementMap{Read: read, Phase: phase, Slice: slice, Data: data}, nil
}

// At returns the displacement at read r, phase p, slice s
func (d *DisplacementMap) At(r, p, s int) int16 {
	return d.Data[r+p*d.Read+s*d.Read*d.Phase]
}

// ReadDisplacementMap decodes native-order int16 values and shapes them as
// (read, phase, slice)
func ReadDisplacementMap(r io.Reader, read, phase, slice int) (*DisplacementMap, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("displacement map has odd length %d", len(raw))
	}
	data := make([]int16, len(raw)/2)
	for i := range data {
		data[i] = int16(binary.NativeEndian.Uint16(raw[2*i:]))
	}
	return NewDisplacementMap(read, phase, slice, data)
}

// LoadDisplacementMap reads a Dmap file shaped by the scan geometry:
// (read, phase*expansion, slice)
func LoadDisplacementMap(path string, scan models.ScanParams) (*DisplacementMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NotFound(path, err)
	}
	defer f.Close()

	dm, err := ReadDisplacementMap(f, scan.ReadCount, scan.DmapPhaseCount(), scan.SliceCount)
	if err != nil {
		return nil, &models.Error{Kind: models.KindParse, Path: path, Detail: "invalid displacement map", Err: err}
	}
	return dm, nil
}

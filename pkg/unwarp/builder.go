package unwarp

import (
	"fmt"
	"math"

	"afniplace/internal/models"
)

// Crop selects the (read, phase) rectangle the operator covers. Starts are
// 1-based; PhaseVolCount is in volume (not displacement-map) phase points.
type Crop struct {
	ReadStart     int
	PhaseStart    int
	ReadCount     int
	PhaseVolCount int
}

// Builder constructs unwarp operators from displacement maps
type Builder struct {
	// Expansion is the displacement-map to volume phase resolution ratio
	Expansion float64

	// Crop restricts the operator; nil covers the full map
	Crop *Crop
}

// Build is shorthand for a full-map Builder
func Build(dmap *DisplacementMap, expansion float64) (*Operator, error) {
	b := &Builder{Expansion: expansion}
	return b.Build(dmap)
}

func isWhole(f float64) bool {
	return f == math.Trunc(f) && !math.IsInf(f, 0)
}

// Build converts the displacement map into absolute phase origins and folds
// them into a sparse operator.
//
// For every sample (p, r, s) the origin floor(p+1 - dmap) is wrapped by one
// period into [1, nPhaseDmap], re-origined to the crop and clamped to it.
// The sample contributes 1 at row ceil(absolute/expansion)-1, column
// floor(k/expansion), where k is its phase-fastest flat index; duplicate
// (row, column) pairs sum, and the result is divided by expansion.
func (b *Builder) Build(dmap *DisplacementMap) (*Operator, error) {
	e := b.Expansion
	if !(e > 0) || math.IsInf(e, 0) {
		return nil, fmt.Errorf("expansion factor must be positive, got %v", e)
	}

	nRead, nPhaseDmap, nSlice := dmap.Read, dmap.Phase, dmap.Slice
	phaseVol := float64(nPhaseDmap) / e
	if !isWhole(phaseVol) {
		return nil, fmt.Errorf("displacement map phase extent %d is not a multiple of expansion %v", nPhaseDmap, e)
	}

	crop := Crop{ReadStart: 1, PhaseStart: 1, ReadCount: nRead, PhaseVolCount: int(phaseVol)}
	if b.Crop != nil {
		crop = *b.Crop
	}

	x1 := crop.ReadStart
	x2 := x1 + crop.ReadCount - 1
	y1 := float64(crop.PhaseStart-1)*e + 1
	y2 := float64(crop.PhaseStart+crop.PhaseVolCount-1) * e
	if x1 < 1 || crop.ReadCount <= 0 || x2 > nRead {
		return nil, fmt.Errorf("read crop [%d,%d] outside 1..%d", x1, x2, nRead)
	}
	if crop.PhaseStart < 1 || crop.PhaseVolCount <= 0 || y2 > float64(nPhaseDmap) || !isWhole(y1) || !isWhole(y2) {
		return nil, fmt.Errorf("phase crop [%v,%v] outside 1..%d", y1, y2, nPhaseDmap)
	}

	cRead := crop.ReadCount
	cPhaseVol := crop.PhaseVolCount
	cPhaseDmap := int(y2 - y1 + 1)
	n := cRead * nSlice * cPhaseVol
	padded := cRead * nSlice * cPhaseDmap

	period := float64(nPhaseDmap)
	limit := float64(cPhaseDmap)
	shift := y1 - 1

	rows := make([]int, padded)
	cols := make([]int, padded)
	for s := 0; s < nSlice; s++ {
		for r := 0; r < cRead; r++ {
			col := r + s*cRead
			rd := r + x1 - 1
			for p := 0; p < cPhaseDmap; p++ {
				pd := p + int(shift)
				origin := math.Floor(float64(pd+1) - float64(dmap.At(rd, pd, s)))
				if origin > period {
					origin -= period
				}
				if origin < 1 {
					origin += period
				}
				if origin < 1 || origin > period {
					return nil, models.ParseErrorf("", "", "displacement %d at (read %d, phase %d, slice %d) exceeds one phase period",
						dmap.At(rd, pd, s), rd, pd, s)
				}

				origin -= shift
				if origin < 1 {
					origin = 1
				} else if origin > limit {
					origin = limit
				}

				k := p + col*cPhaseDmap
				abs := origin + float64(col*cPhaseDmap)
				rows[k] = int(math.Ceil(abs/e)) - 1
				cols[k] = int(math.Floor(float64(k) / e))
				if rows[k] < 0 || rows[k] >= n || cols[k] >= n {
					return nil, fmt.Errorf("operator index (%d,%d) outside %d", rows[k], cols[k], n)
				}
			}
		}
	}

	op := newOperator(n, rows, cols, e)
	op.nRead, op.nPhase, op.nSlice = cRead, cPhaseVol, nSlice
	return op, nil
}

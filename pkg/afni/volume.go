package afni

import (
	"fmt"
	"math"

	"afniplace/internal/models"
)

// Volume is a 4-D (x, y, z, t) voxel array.
//
// Real and Imag are stored in the .BRIK element order: x varies fastest,
// then y, then z, then t. Imag is only allocated for complex data. All
// element types are held as float64, which represents uint8, int16 and
// float32 values exactly.
type Volume struct {
	NX, NY, NZ, NT int

	DType DType

	// BrickTypes is the per-timepoint element type
	BrickTypes []DType

	Real []float64
	Imag []float64
}

// NewVolume allocates a zeroed volume of a single element type
func NewVolume(nx, ny, nz, nt int, dtype DType) *Volume {
	n := nx * ny * nz * nt
	v := &Volume{NX: nx, NY: ny, NZ: nz, NT: nt, DType: dtype, Real: make([]float64, n)}
	v.BrickTypes = make([]DType, nt)
	for i := range v.BrickTypes {
		v.BrickTypes[i] = dtype
	}
	if dtype.IsComplex() {
		v.Imag = make([]float64, n)
	}
	return v
}

// Index returns the flat offset of (x, y, z, t)
func (v *Volume) Index(x, y, z, t int) int {
	return x + y*v.NX + z*v.NX*v.NY + t*v.NX*v.NY*v.NZ
}

// BrickLen is the number of voxels in one timepoint
func (v *Volume) BrickLen() int {
	return v.NX * v.NY * v.NZ
}

// Len is the total number of voxels
func (v *Volume) Len() int {
	return v.BrickLen() * v.NT
}

// Dims returns the spatial grid
func (v *Volume) Dims() [3]int {
	return [3]int{v.NX, v.NY, v.NZ}
}

// ByteSize is the number of bytes the volume occupies on disk
func (v *Volume) ByteSize() int {
	total := 0
	for _, d := range v.BrickTypes {
		total += d.Size() * v.BrickLen()
	}
	return total
}

// Brick returns the real and imaginary voxels of timepoint t. The slices
// alias the volume.
func (v *Volume) Brick(t int) (re, im []float64) {
	n := v.BrickLen()
	re = v.Real[t*n : (t+1)*n]
	if v.Imag != nil {
		im = v.Imag[t*n : (t+1)*n]
	}
	return re, im
}

// Crop returns a new volume restricted to x < nx and y < ny
func (v *Volume) Crop(nx, ny int) (*Volume, error) {
	if nx <= 0 || ny <= 0 || nx > v.NX || ny > v.NY {
		return nil, fmt.Errorf("crop %dx%d outside volume %dx%d", nx, ny, v.NX, v.NY)
	}
	out := &Volume{NX: nx, NY: ny, NZ: v.NZ, NT: v.NT, DType: v.DType}
	out.BrickTypes = append([]DType(nil), v.BrickTypes...)
	out.Real = make([]float64, out.Len())
	if v.Imag != nil {
		out.Imag = make([]float64, out.Len())
	}
	for t := 0; t < v.NT; t++ {
		for z := 0; z < v.NZ; z++ {
			for y := 0; y < ny; y++ {
				src := v.Index(0, y, z, t)
				dst := out.Index(0, y, z, t)
				copy(out.Real[dst:dst+nx], v.Real[src:src+nx])
				if v.Imag != nil {
					copy(out.Imag[dst:dst+nx], v.Imag[src:src+nx])
				}
			}
		}
	}
	return out, nil
}

// Cast rounds a value to what the element type can hold: integers are
// truncated toward zero and clamped to range, float32 is rounded to single
// precision.
func (d DType) Cast(f float64) float64 {
	switch d {
	case Uint8:
		return clamp(math.Trunc(f), 0, math.MaxUint8)
	case Int16:
		return clamp(math.Trunc(f), math.MinInt16, math.MaxInt16)
	case Float32:
		return float64(float32(f))
	}
	return f
}

func clamp(f, lo, hi float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

// Decode interprets raw .BRIK bytes. brickTypes gives the element type of
// each of the nt sub-bricks; order is the recorded byte order.
func Decode(raw []byte, brickTypes []DType, order ByteOrder, dims [3]int) (*Volume, error) {
	nt := len(brickTypes)
	v := &Volume{NX: dims[0], NY: dims[1], NZ: dims[2], NT: nt}
	v.BrickTypes = append([]DType(nil), brickTypes...)
	v.DType = MultipleTypes
	if nt > 0 {
		v.DType = brickTypes[0]
		for _, d := range brickTypes[1:] {
			if d != v.DType {
				v.DType = MultipleTypes
				break
			}
		}
	}

	if want := v.ByteSize(); len(raw) != want {
		return nil, models.ParseErrorf("", "", "BRIK holds %d bytes, header describes %d", len(raw), want)
	}

	n := v.BrickLen()
	v.Real = make([]float64, v.Len())
	for _, d := range brickTypes {
		if d.IsComplex() {
			v.Imag = make([]float64, v.Len())
			break
		}
	}

	bo := order.Binary()
	off := 0
	for t, d := range brickTypes {
		base := t * n
		size := d.Size()
		for i := 0; i < n; i++ {
			b := raw[off : off+size]
			switch d {
			case Uint8:
				v.Real[base+i] = float64(b[0])
			case Int16:
				v.Real[base+i] = float64(int16(bo.Uint16(b)))
			case Float32:
				v.Real[base+i] = float64(math.Float32frombits(bo.Uint32(b)))
			case Complex128:
				v.Real[base+i] = math.Float64frombits(bo.Uint64(b[:8]))
				v.Imag[base+i] = math.Float64frombits(bo.Uint64(b[8:]))
			default:
				return nil, models.ParseErrorf("", "BRICK_TYPES", "cannot decode %s", d)
			}
			off += size
		}
	}
	return v, nil
}

// Encode flattens the volume into .BRIK bytes in the given byte order,
// casting each value to its sub-brick's element type.
func Encode(v *Volume, order ByteOrder) ([]byte, error) {
	if len(v.BrickTypes) != v.NT {
		return nil, fmt.Errorf("volume has %d sub-brick types for %d timepoints", len(v.BrickTypes), v.NT)
	}
	if len(v.Real) != v.Len() {
		return nil, fmt.Errorf("volume holds %d voxels, dimensions describe %d", len(v.Real), v.Len())
	}

	out := make([]byte, v.ByteSize())
	bo := order.Binary()
	n := v.BrickLen()
	off := 0
	for t, d := range v.BrickTypes {
		base := t * n
		for i := 0; i < n; i++ {
			f := d.Cast(v.Real[base+i])
			switch d {
			case Uint8:
				out[off] = uint8(f)
			case Int16:
				bo.PutUint16(out[off:], uint16(int16(f)))
			case Float32:
				bo.PutUint32(out[off:], math.Float32bits(float32(f)))
			case Complex128:
				var im float64
				if v.Imag != nil {
					im = v.Imag[base+i]
				}
				bo.PutUint64(out[off:], math.Float64bits(f))
				bo.PutUint64(out[off+8:], math.Float64bits(im))
			default:
				return nil, fmt.Errorf("cannot encode %s", d)
			}
			off += d.Size()
		}
	}
	return out, nil
}

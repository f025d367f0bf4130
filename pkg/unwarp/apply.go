package unwarp

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"afniplace/internal/models"
)

// Apply unwarps one (x, y, z) brick stored x-fastest and returns a new
// brick in the same layout. x is the read axis and y the phase axis; the
// brick is transposed to (phase, read, slice) for the product and back.
func (o *Operator) Apply(src []float64, nx, ny, nz int) ([]float64, error) {
	if got, want := [3]int{nx, ny, nz}, [3]int{o.nRead, o.nPhase, o.nSlice}; got != want {
		return nil, models.GeometryMismatch("", got, want)
	}
	if len(src) != o.n {
		return nil, fmt.Errorf("brick holds %d voxels, expected %d", len(src), o.n)
	}

	in := mat.NewVecDense(o.n, nil)
	for z := 0; z < nz; z++ {
		for x := 0; x < nx; x++ {
			for y := 0; y < ny; y++ {
				in.SetVec(y+x*ny+z*nx*ny, src[x+y*nx+z*nx*ny])
			}
		}
	}

	res := mat.NewVecDense(o.n, nil)
	o.MulVecTo(res, in)

	out := make([]float64, o.n)
	for z := 0; z < nz; z++ {
		for x := 0; x < nx; x++ {
			for y := 0; y < ny; y++ {
				out[x+y*nx+z*nx*ny] = res.AtVec(y + x*ny + z*nx*ny)
			}
		}
	}
	return out, nil
}

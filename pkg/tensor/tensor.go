// Package tensor builds per-voxel structure tensors from a 3D scalar volume
// and eigen-decomposes them into ordered eigenvalues and the primary
// orientation eigenvector.
//
// The structure tensor at a voxel is the outer product of the intensity
// gradient, computed at scale Sigma, averaged over a neighbourhood at scale
// Rho. Its eigenvector for the smallest eigenvalue estimates the local fiber
// long axis: intensity varies least along the fiber, so the gradient
// covariance is weakest in that direction.
package tensor

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"

	"cardiofiber/internal/models"
)

// Builder computes structure-tensor eigenvalue and eigenvector fields.
type Builder struct {
	// Sigma is the gradient (inner) smoothing scale in voxels
	Sigma float64

	// Rho is the tensor averaging (outer) smoothing scale in voxels
	Rho float64

	// Workers bounds the number of goroutines used for the per-voxel
	// eigen-decomposition. Zero means all available cores.
	Workers int

	// Analytic selects the closed-form symmetric 3x3 solver instead of the
	// gonum reference path. Both produce the same ordering and the same
	// primary axis; the analytic path only avoids the per-voxel
	// factorization overhead.
	Analytic bool
}

// NewBuilder creates a builder with the given smoothing scales
func NewBuilder(sigma, rho float64) *Builder {
	return &Builder{Sigma: sigma, Rho: rho}
}

// Compute builds the structure tensor of the volume and eigen-decomposes it
// at every voxel. It returns the eigenvalues in ascending order and the unit
// eigenvector of the smallest eigenvalue, both with the volume's shape.
func (b *Builder) Compute(vol *models.Volume) (*models.EigenField, *models.VectorField, error) {
	if b.Sigma <= 0 || b.Rho <= 0 {
		return nil, nil, fmt.Errorf("smoothing scales must be positive, got sigma=%g rho=%g", b.Sigma, b.Rho)
	}
	if vol.NZ == 0 || vol.NY == 0 || vol.NX == 0 {
		return nil, nil, fmt.Errorf("cannot compute structure tensor of an empty volume")
	}

	// Gradients at scale sigma: derivative-of-Gaussian along the gradient
	// axis, plain Gaussian along the two others.
	smooth := gaussianKernel(b.Sigma, 0)
	deriv := gaussianKernel(b.Sigma, 1)

	iz := convolveSeparable(vol, deriv, smooth, smooth)
	iy := convolveSeparable(vol, smooth, deriv, smooth)
	ix := convolveSeparable(vol, smooth, smooth, deriv)

	// Six unique tensor products, each averaged at scale rho
	n := vol.NZ * vol.NY * vol.NX
	products := [6]*models.Volume{}
	for i := range products {
		products[i] = models.NewVolume(vol.NZ, vol.NY, vol.NX)
	}
	for i := 0; i < n; i++ {
		gz := iz.Data[i]
		gy := iy.Data[i]
		gx := ix.Data[i]
		products[0].Data[i] = gz * gz
		products[1].Data[i] = gz * gy
		products[2].Data[i] = gz * gx
		products[3].Data[i] = gy * gy
		products[4].Data[i] = gy * gx
		products[5].Data[i] = gx * gx
	}

	avg := gaussianKernel(b.Rho, 0)
	for i := range products {
		products[i] = convolveSeparable(products[i], avg, avg, avg)
	}

	val := models.NewEigenField(vol.NZ, vol.NY, vol.NX)
	vec := models.NewVectorField(vol.NZ, vol.NY, vol.NX)

	// Eigen-decomposition is independent per voxel; fan out over Z bands
	workers := b.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > vol.NZ {
		workers = vol.NZ
	}

	plane := vol.NY * vol.NX
	bandSize := (vol.NZ + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		startZ := w * bandSize
		endZ := startZ + bandSize
		if endZ > vol.NZ {
			endZ = vol.NZ
		}
		if startZ >= endZ {
			continue
		}

		wg.Add(1)
		go func(startZ, endZ int) {
			defer wg.Done()

			solve := b.solver()
			for i := startZ * plane; i < endZ*plane; i++ {
				l, v := solve(
					float64(products[0].Data[i]), float64(products[1].Data[i]),
					float64(products[2].Data[i]), float64(products[3].Data[i]),
					float64(products[4].Data[i]), float64(products[5].Data[i]),
				)
				val.Val[0][i] = float32(l[0])
				val.Val[1][i] = float32(l[1])
				val.Val[2][i] = float32(l[2])
				vec.Comp[0][i] = float32(v[0])
				vec.Comp[1][i] = float32(v[1])
				vec.Comp[2][i] = float32(v[2])
			}
		}(startZ, endZ)
	}
	wg.Wait()

	return val, vec, nil
}

// eigenSolver decomposes one symmetric tensor given its six unique entries
// (zz, zy, zx, yy, yx, xx) into ascending eigenvalues and the unit
// eigenvector of the smallest one.
type eigenSolver func(zz, zy, zx, yy, yx, xx float64) ([3]float64, models.Point3)

func (b *Builder) solver() eigenSolver {
	if b.Analytic {
		return solveAnalytic
	}
	return newGonumSolver()
}

// newGonumSolver returns the reference eigen-decomposition path. The solver
// keeps its factorization workspace between voxels, so each worker gets its
// own instance.
func newGonumSolver() eigenSolver {
	sym := mat.NewSymDense(3, nil)
	var es mat.EigenSym
	var evec mat.Dense

	return func(zz, zy, zx, yy, yx, xx float64) ([3]float64, models.Point3) {
		sym.SetSym(0, 0, zz)
		sym.SetSym(0, 1, zy)
		sym.SetSym(0, 2, zx)
		sym.SetSym(1, 1, yy)
		sym.SetSym(1, 2, yx)
		sym.SetSym(2, 2, xx)

		if !es.Factorize(sym, true) {
			nan := math.NaN()
			return [3]float64{nan, nan, nan}, models.Point3{nan, nan, nan}
		}

		// gonum reports eigenvalues in ascending order
		var l [3]float64
		es.Values(l[:])
		es.VectorsTo(&evec)

		v := models.Point3{evec.At(0, 0), evec.At(1, 0), evec.At(2, 0)}
		return l, v.Normalize()
	}
}

// solveAnalytic is the accelerated closed-form path: eigenvalues via the
// trigonometric solution of the characteristic polynomial, eigenvector via
// row cross products. Results match the reference path up to floating
// rounding and the arbitrary overall eigenvector sign.
func solveAnalytic(zz, zy, zx, yy, yx, xx float64) ([3]float64, models.Point3) {
	// Shift by the mean trace to improve conditioning
	q := (zz + yy + xx) / 3
	azz, ayy, axx := zz-q, yy-q, xx-q

	p2 := azz*azz + ayy*ayy + axx*axx + 2*(zy*zy+zx*zx+yx*yx)
	if p2 <= 0 {
		// Isotropic tensor: triple eigenvalue, any unit axis qualifies
		return [3]float64{q, q, q}, models.Point3{1, 0, 0}
	}
	p := math.Sqrt(p2 / 6)

	// det(A - qI) / p^3, clamped into the arccos domain
	db := (azz*(ayy*axx-yx*yx) - zy*(zy*axx-yx*zx) + zx*(zy*yx-ayy*zx)) / (p * p * p)
	r := db / 2
	if r < -1 {
		r = -1
	} else if r > 1 {
		r = 1
	}

	phi := math.Acos(r) / 3
	l2 := q + 2*p*math.Cos(phi)             // largest
	l0 := q + 2*p*math.Cos(phi+2*math.Pi/3) // smallest
	l1 := 3*q - l0 - l2

	v := smallestEigenvector(zz, zy, zx, yy, yx, xx, l0)
	return [3]float64{l0, l1, l2}, v
}

// smallestEigenvector finds a unit vector in the null space of (A - lambda I)
// by crossing the two most independent rows.
func smallestEigenvector(zz, zy, zx, yy, yx, xx, lambda float64) models.Point3 {
	r0 := models.Point3{zz - lambda, zy, zx}
	r1 := models.Point3{zy, yy - lambda, yx}
	r2 := models.Point3{zx, yx, xx - lambda}

	c01 := cross(r0, r1)
	c02 := cross(r0, r2)
	c12 := cross(r1, r2)

	best := c01
	if c02.Dot(c02) > best.Dot(best) {
		best = c02
	}
	if c12.Dot(c12) > best.Dot(best) {
		best = c12
	}

	if best.Dot(best) == 0 {
		// Degenerate pencil; fall back to a fixed axis
		return models.Point3{1, 0, 0}
	}
	return best.Normalize()
}

func cross(a, b models.Point3) models.Point3 {
	return models.Point3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

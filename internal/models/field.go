package models

import "math"

// VectorField holds one 3-component vector per voxel, component-major:
// Comp[0] is the Z component plane, Comp[1] the Y component, Comp[2] the X
// component. Each component plane is laid out like Volume.Data. NaN in any
// component marks the voxel as invalid.
type VectorField struct {
	Comp [3][]float32

	// NZ, NY, NX are the field dimensions in voxels
	NZ, NY, NX int
}

// NewVectorField allocates a zero-filled vector field
func NewVectorField(nz, ny, nx int) *VectorField {
	f := &VectorField{NZ: nz, NY: ny, NX: nx}
	for c := 0; c < 3; c++ {
		f.Comp[c] = make([]float32, nz*ny*nx)
	}
	return f
}

// Idx returns the flat per-component index of voxel (z, y, x)
func (f *VectorField) Idx(z, y, x int) int {
	return z*f.NY*f.NX + y*f.NX + x
}

// Vector returns the vector at voxel (z, y, x) as (vz, vy, vx)
func (f *VectorField) Vector(z, y, x int) Point3 {
	i := f.Idx(z, y, x)
	return Point3{float64(f.Comp[0][i]), float64(f.Comp[1][i]), float64(f.Comp[2][i])}
}

// SetVector stores a vector at voxel (z, y, x)
func (f *VectorField) SetVector(z, y, x int, v Point3) {
	i := f.Idx(z, y, x)
	f.Comp[0][i] = float32(v[0])
	f.Comp[1][i] = float32(v[1])
	f.Comp[2][i] = float32(v[2])
}

// IsNaNAt reports whether any component of the vector at flat index i is NaN
func (f *VectorField) IsNaNAt(i int) bool {
	return math.IsNaN(float64(f.Comp[0][i])) ||
		math.IsNaN(float64(f.Comp[1][i])) ||
		math.IsNaN(float64(f.Comp[2][i]))
}

// SubZ returns a new field containing slices [start, end)
func (f *VectorField) SubZ(start, end int) *VectorField {
	n := f.NY * f.NX
	out := &VectorField{NZ: end - start, NY: f.NY, NX: f.NX}
	for c := 0; c < 3; c++ {
		out.Comp[c] = make([]float32, (end-start)*n)
		copy(out.Comp[c], f.Comp[c][start*n:end*n])
	}
	return out
}

// Normalize scales every vector in place to unit length. Voxels with zero
// magnitude or NaN components are left as they are; NaN propagates into the
// normalized components on its own.
func (f *VectorField) Normalize() {
	for i := range f.Comp[0] {
		vz := float64(f.Comp[0][i])
		vy := float64(f.Comp[1][i])
		vx := float64(f.Comp[2][i])
		n := math.Sqrt(vz*vz + vy*vy + vx*vx)
		if n == 0 {
			continue
		}
		f.Comp[0][i] = float32(vz / n)
		f.Comp[1][i] = float32(vy / n)
		f.Comp[2][i] = float32(vx / n)
	}
}

// AlignZSign flips every vector whose Z component is positive, so the field
// points consistently along one Z direction. Fiber orientation has no
// intrinsic sign; a consistent convention keeps downstream angle maps and
// streamline steps comparable across voxels.
func (f *VectorField) AlignZSign() {
	for i := range f.Comp[0] {
		if f.Comp[0][i] > 0 {
			f.Comp[0][i] = -f.Comp[0][i]
			f.Comp[1][i] = -f.Comp[1][i]
			f.Comp[2][i] = -f.Comp[2][i]
		}
	}
}

// EigenField holds the three per-voxel eigenvalues of the structure tensor
// in ascending order: Val[0] <= Val[1] <= Val[2] at every voxel. Layout
// matches VectorField.
type EigenField struct {
	Val [3][]float32

	// NZ, NY, NX are the field dimensions in voxels
	NZ, NY, NX int
}

// NewEigenField allocates a zero-filled eigenvalue field
func NewEigenField(nz, ny, nx int) *EigenField {
	e := &EigenField{NZ: nz, NY: ny, NX: nx}
	for c := 0; c < 3; c++ {
		e.Val[c] = make([]float32, nz*ny*nx)
	}
	return e
}

// Idx returns the flat per-eigenvalue index of voxel (z, y, x)
func (e *EigenField) Idx(z, y, x int) int {
	return z*e.NY*e.NX + y*e.NX + x
}

// SubZ returns a new field containing slices [start, end)
func (e *EigenField) SubZ(start, end int) *EigenField {
	n := e.NY * e.NX
	out := &EigenField{NZ: end - start, NY: e.NY, NX: e.NX}
	for c := 0; c < 3; c++ {
		out.Val[c] = make([]float32, (end-start)*n)
		copy(out.Val[c], e.Val[c][start*n:end*n])
	}
	return out
}

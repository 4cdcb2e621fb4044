package models

import "math"

// Volume represents a 3D scalar volume with axes ordered (Z, Y, X).
type Volume struct {
	// Data is the voxel data as a 1D array in row-major order,
	// indexed as z*NY*NX + y*NX + x.
	Data []float32

	// NZ, NY, NX are the volume dimensions in voxels
	NZ, NY, NX int
}

// NewVolume allocates a zero-filled volume with the given dimensions
func NewVolume(nz, ny, nx int) *Volume {
	return &Volume{
		Data: make([]float32, nz*ny*nx),
		NZ:   nz,
		NY:   ny,
		NX:   nx,
	}
}

// Idx returns the flat index of voxel (z, y, x)
func (v *Volume) Idx(z, y, x int) int {
	return z*v.NY*v.NX + y*v.NX + x
}

// At returns the intensity at voxel (z, y, x)
func (v *Volume) At(z, y, x int) float32 {
	return v.Data[v.Idx(z, y, x)]
}

// Set stores an intensity at voxel (z, y, x)
func (v *Volume) Set(z, y, x int, value float32) {
	v.Data[v.Idx(z, y, x)] = value
}

// SliceData returns the data of the z-th slice as a (NY*NX)-length view
func (v *Volume) SliceData(z int) []float32 {
	n := v.NY * v.NX
	return v.Data[z*n : (z+1)*n]
}

// SubZ returns a new volume containing slices [start, end).
// The returned data is a copy; the receiver is not modified.
func (v *Volume) SubZ(start, end int) *Volume {
	n := v.NY * v.NX
	out := &Volume{
		Data: make([]float32, (end-start)*n),
		NZ:   end - start,
		NY:   v.NY,
		NX:   v.NX,
	}
	copy(out.Data, v.Data[start*n:end*n])
	return out
}

// Clone returns a deep copy of the volume
func (v *Volume) Clone() *Volume {
	out := &Volume{
		Data: make([]float32, len(v.Data)),
		NZ:   v.NZ,
		NY:   v.NY,
		NX:   v.NX,
	}
	copy(out.Data, v.Data)
	return out
}

// Point3 is a 3D point or direction in (Z, Y, X) component order.
// Configuration landmark points arrive as (X, Y, Z) and are converted
// to this internal order when loaded.
type Point3 [3]float64

// Z returns the first component
func (p Point3) Z() float64 { return p[0] }

// Y returns the second component
func (p Point3) Y() float64 { return p[1] }

// X returns the third component
func (p Point3) X() float64 { return p[2] }

// Sub returns p - q component-wise
func (p Point3) Sub(q Point3) Point3 {
	return Point3{p[0] - q[0], p[1] - q[1], p[2] - q[2]}
}

// Scale returns p with every component multiplied by s
func (p Point3) Scale(s float64) Point3 {
	return Point3{p[0] * s, p[1] * s, p[2] * s}
}

// Dot returns the dot product of p and q
func (p Point3) Dot(q Point3) float64 {
	return p[0]*q[0] + p[1]*q[1] + p[2]*q[2]
}

// Norm returns the Euclidean length of p
func (p Point3) Norm() float64 {
	return math.Sqrt(p.Dot(p))
}

// Normalize returns p scaled to unit length. A zero vector is
// returned unchanged.
func (p Point3) Normalize() Point3 {
	n := p.Norm()
	if n == 0 {
		return p
	}
	return p.Scale(1 / n)
}

// Round returns p with every component rounded to the nearest integer
func (p Point3) Round() Point3 {
	return Point3{math.Round(p[0]), math.Round(p[1]), math.Round(p[2])}
}

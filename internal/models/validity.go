package models

// Validity is a per-voxel bitmap marking which voxels carry meaningful
// values. It travels alongside the numeric volumes instead of encoding
// invalidity into the values themselves; sentinel values appear only where a
// file format requires them.
type Validity struct {
	Bits []bool

	// NZ, NY, NX are the bitmap dimensions in voxels
	NZ, NY, NX int
}

// AllValid returns a bitmap with every voxel marked valid
func AllValid(nz, ny, nx int) *Validity {
	v := &Validity{Bits: make([]bool, nz*ny*nx), NZ: nz, NY: ny, NX: nx}
	for i := range v.Bits {
		v.Bits[i] = true
	}
	return v
}

// FromMask marks voxels valid where the aligned mask is nonzero
func FromMask(m *Volume) *Validity {
	v := &Validity{Bits: make([]bool, len(m.Data)), NZ: m.NZ, NY: m.NY, NX: m.NX}
	for i, val := range m.Data {
		v.Bits[i] = val != 0
	}
	return v
}

// SubZ returns a new bitmap covering slices [start, end)
func (v *Validity) SubZ(start, end int) *Validity {
	n := v.NY * v.NX
	out := &Validity{Bits: make([]bool, (end-start)*n), NZ: end - start, NY: v.NY, NX: v.NX}
	copy(out.Bits, v.Bits[start*n:end*n])
	return out
}

// Slice returns the bitmap of the z-th slice as a view
func (v *Validity) Slice(z int) []bool {
	n := v.NY * v.NX
	return v.Bits[z*n : (z+1)*n]
}

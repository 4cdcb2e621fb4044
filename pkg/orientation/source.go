package orientation

import (
	"encoding/binary"
	"fmt"
	"os"

	"cardiofiber/internal/models"
)

// VolumeSource provides windowed access to a 3D volume. Generic image-stack
// readers are external collaborators; the pipeline only depends on this
// interface.
type VolumeSource interface {
	// NumSlices returns the Z extent of the volume
	NumSlices() int

	// Shape returns the full (Z, Y, X) dimensions
	Shape() (nz, ny, nx int)

	// ReadRange loads slices [start, end) as float32
	ReadRange(start, end int) (*models.Volume, error)
}

// MemorySource serves a volume already held in memory, mainly for tests and
// diagnostic runs.
type MemorySource struct {
	vol *models.Volume
}

// NewMemorySource wraps an in-memory volume
func NewMemorySource(vol *models.Volume) *MemorySource {
	return &MemorySource{vol: vol}
}

// NumSlices returns the Z extent
func (m *MemorySource) NumSlices() int { return m.vol.NZ }

// Shape returns the full dimensions
func (m *MemorySource) Shape() (int, int, int) { return m.vol.NZ, m.vol.NY, m.vol.NX }

// ReadRange copies slices [start, end) out of the wrapped volume
func (m *MemorySource) ReadRange(start, end int) (*models.Volume, error) {
	if start < 0 || end > m.vol.NZ || start >= end {
		return nil, fmt.Errorf("slice range [%d,%d) outside volume of %d slices", start, end, m.vol.NZ)
	}
	return m.vol.SubZ(start, end), nil
}

// RawFileSource reads a raw little-endian float32 volume file with known
// dimensions, seeking directly to the requested slice window.
type RawFileSource struct {
	path       string
	nz, ny, nx int
}

// NewRawFileSource describes a raw volume file
func NewRawFileSource(path string, nz, ny, nx int) *RawFileSource {
	return &RawFileSource{path: path, nz: nz, ny: ny, nx: nx}
}

// NumSlices returns the Z extent
func (r *RawFileSource) NumSlices() int { return r.nz }

// Shape returns the full dimensions
func (r *RawFileSource) Shape() (int, int, int) { return r.nz, r.ny, r.nx }

// ReadRange loads slices [start, end) from the file
func (r *RawFileSource) ReadRange(start, end int) (*models.Volume, error) {
	if start < 0 || end > r.nz || start >= end {
		return nil, fmt.Errorf("slice range [%d,%d) outside volume of %d slices", start, end, r.nz)
	}

	file, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open volume file: %w", err)
	}
	defer file.Close()

	plane := int64(r.ny) * int64(r.nx)
	if _, err := file.Seek(int64(start)*plane*4, 0); err != nil {
		return nil, fmt.Errorf("failed to seek to slice %d: %w", start, err)
	}

	vol := models.NewVolume(end-start, r.ny, r.nx)
	if err := binary.Read(file, binary.LittleEndian, vol.Data); err != nil {
		return nil, fmt.Errorf("failed to read slices [%d,%d): %w", start, end, err)
	}
	return vol, nil
}

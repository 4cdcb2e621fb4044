// Package artifact manages the per-slice output files of the orientation
// pipeline: helix-angle (HA), intrusion-angle (IA) and fractional-anisotropy
// (FA) images plus optional raw eigenvector slices. One file set exists per
// Z index; a complete set marks the slice as done for resumable runs.
package artifact

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"

	"cardiofiber/internal/models"
)

// Angle map kinds, doubling as subdirectory names
const (
	KindHelix      = "HA"
	KindIntrusion  = "IA"
	KindAnisotropy = "FA"
)

// Store locates and encodes per-slice artifacts under a base directory.
type Store struct {
	// Dir is the base output directory
	Dir string

	// Format is the angle image extension, e.g. "tif"
	Format string

	// Type selects the encoding depth, "8bit" or "16bit"
	Type string
}

// NewStore creates an artifact store rooted at dir
func NewStore(dir, format, imgType string) *Store {
	if format == "" {
		format = "tif"
	}
	if imgType == "" {
		imgType = "8bit"
	}
	return &Store{Dir: dir, Format: format, Type: imgType}
}

// AnglePath returns the path of one angle image
func (s *Store) AnglePath(kind string, index int) string {
	return filepath.Join(s.Dir, kind, fmt.Sprintf("%s_%06d.%s", kind, index, s.Format))
}

// VectorPath returns the path of one raw eigenvector slice
func (s *Store) VectorPath(index int) string {
	return filepath.Join(s.Dir, "eigen_vec", fmt.Sprintf("eigen_vec_%06d.npy", index))
}

// Exists reports whether the slice at index already has a complete artifact
// set: all three angle images, plus the vector slice when withVectors is set.
func (s *Store) Exists(index int, withVectors bool) bool {
	for _, kind := range []string{KindHelix, KindIntrusion, KindAnisotropy} {
		if _, err := os.Stat(s.AnglePath(kind, index)); err != nil {
			return false
		}
	}
	if withVectors {
		if _, err := os.Stat(s.VectorPath(index)); err != nil {
			return false
		}
	}
	return true
}

// WriteSliceSet writes the three angle images of one slice. Each image is
// encoded into a temporary file first and all three are renamed into place
// only after every encode succeeded, so an interrupted run never leaves a
// partial set behind.
func (s *Store) WriteSliceSet(index int, helix, intrusion, fa []float32, ny, nx int) error {
	type pending struct {
		tmp, final string
	}

	images := []struct {
		kind string
		data []float32
	}{
		{KindHelix, helix},
		{KindIntrusion, intrusion},
		{KindAnisotropy, fa},
	}

	var staged []pending
	cleanup := func() {
		for _, p := range staged {
			os.Remove(p.tmp)
		}
	}

	for _, img := range images {
		final := s.AnglePath(img.kind, index)
		if err := os.MkdirAll(filepath.Dir(final), 0755); err != nil {
			cleanup()
			return fmt.Errorf("failed to create %s directory: %v", img.kind, err)
		}

		tmp := final + ".tmp"
		if err := s.encodeAngleFile(tmp, img.kind, img.data, ny, nx); err != nil {
			cleanup()
			return fmt.Errorf("failed to encode %s slice %06d: %v", img.kind, index, err)
		}
		staged = append(staged, pending{tmp: tmp, final: final})
	}

	for _, p := range staged {
		if err := os.Rename(p.tmp, p.final); err != nil {
			cleanup()
			return fmt.Errorf("failed to finalize artifact %s: %v", p.final, err)
		}
	}

	return nil
}

// WriteVectorSlice writes one raw vector-field slice with shape (3, ny, nx)
func (s *Store) WriteVectorSlice(index int, comp [3][]float32, ny, nx int) error {
	path := s.VectorPath(index)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create eigen_vec directory: %v", err)
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create vector slice file: %v", err)
	}

	data := make([]float32, 0, 3*ny*nx)
	for c := 0; c < 3; c++ {
		data = append(data, comp[c]...)
	}

	if err := writeNPY(file, []int{3, ny, nx}, data); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write vector slice %06d: %v", index, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close vector slice file: %v", err)
	}

	return os.Rename(tmp, path)
}

// ReadVectorSlice reads one raw vector-field slice back as its three
// component planes and in-plane dimensions
func (s *Store) ReadVectorSlice(index int) ([3][]float32, int, int, error) {
	var comp [3][]float32

	file, err := os.Open(s.VectorPath(index))
	if err != nil {
		return comp, 0, 0, err
	}
	defer file.Close()

	shape, data, err := readNPY(file)
	if err != nil {
		return comp, 0, 0, fmt.Errorf("failed to read vector slice %06d: %v", index, err)
	}
	if len(shape) != 3 || shape[0] != 3 {
		return comp, 0, 0, fmt.Errorf("vector slice %06d has shape %v, want (3, ny, nx)", index, shape)
	}

	ny, nx := shape[1], shape[2]
	plane := ny * nx
	for c := 0; c < 3; c++ {
		comp[c] = data[c*plane : (c+1)*plane]
	}
	return comp, ny, nx, nil
}

// ReadAngleImage decodes one angle image back into degrees (HA/IA) or the
// unit interval (FA)
func (s *Store) ReadAngleImage(kind string, index int) ([]float32, int, int, error) {
	file, err := os.Open(s.AnglePath(kind, index))
	if err != nil {
		return nil, 0, 0, err
	}
	defer file.Close()

	img, err := tiff.Decode(file)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode %s slice %06d: %v", kind, index, err)
	}

	bounds := img.Bounds()
	nx, ny := bounds.Dx(), bounds.Dy()
	out := make([]float32, ny*nx)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			out[y*nx+x] = decodeAngle(kind, float64(r)/65535)
		}
	}
	return out, ny, nx, nil
}

// encodeAngleFile maps angle values into the configured bit depth and
// encodes them as a grayscale TIFF
func (s *Store) encodeAngleFile(path, kind string, data []float32, ny, nx int) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	var img image.Image
	if s.Type == "16bit" {
		gray := image.NewGray16(image.Rect(0, 0, nx, ny))
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				v := encodeAngle(kind, data[y*nx+x])
				gray.SetGray16(x, y, color.Gray16{Y: uint16(v*65535 + 0.5)})
			}
		}
		img = gray
	} else {
		gray := image.NewGray(image.Rect(0, 0, nx, ny))
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				v := encodeAngle(kind, data[y*nx+x])
				gray.SetGray(x, y, color.Gray{Y: uint8(v*255 + 0.5)})
			}
		}
		img = gray
	}

	return tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
}

// encodeAngle maps a value into [0, 1] for grayscale encoding. HA and IA
// span [-90, 90] degrees, FA spans [0, 1]. NaN encodes to 0.
func encodeAngle(kind string, v float32) float64 {
	f := float64(v)
	if math.IsNaN(f) {
		return 0
	}
	if kind == KindAnisotropy {
		return clamp01(f)
	}
	return clamp01((f + 90) / 180)
}

// decodeAngle reverses encodeAngle for a normalized grayscale value
func decodeAngle(kind string, norm float64) float32 {
	if kind == KindAnisotropy {
		return float32(norm)
	}
	return float32(norm*180 - 90)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// LoadVectorVolume assembles the vector field for slices [start, end) from
// the per-slice artifacts. It fails when no vector artifacts exist at all,
// which means the orientation pipeline has not been run with vector output
// enabled.
func (s *Store) LoadVectorVolume(start, end int) (*models.VectorField, error) {
	if end <= start {
		return nil, fmt.Errorf("empty slice range [%d,%d)", start, end)
	}

	var field *models.VectorField
	for z := start; z < end; z++ {
		comp, ny, nx, err := s.ReadVectorSlice(z)
		if err != nil {
			return nil, fmt.Errorf("missing eigenvector slice %06d in %s: %v "+
				"(enable vector output and run the orientation step first)",
				z, filepath.Join(s.Dir, "eigen_vec"), err)
		}

		if field == nil {
			field = models.NewVectorField(end-start, ny, nx)
		} else if ny != field.NY || nx != field.NX {
			return nil, fmt.Errorf("vector slice %06d has shape %dx%d, want %dx%d",
				z, ny, nx, field.NY, field.NX)
		}

		plane := ny * nx
		for c := 0; c < 3; c++ {
			copy(field.Comp[c][(z-start)*plane:(z-start+1)*plane], comp[c])
		}
	}
	return field, nil
}

// LoadAngleVolume assembles one angle map volume for slices [start, end)
func (s *Store) LoadAngleVolume(kind string, start, end int) (*models.Volume, error) {
	if end <= start {
		return nil, fmt.Errorf("empty slice range [%d,%d)", start, end)
	}

	var vol *models.Volume
	for z := start; z < end; z++ {
		data, ny, nx, err := s.ReadAngleImage(kind, z)
		if err != nil {
			return nil, fmt.Errorf("missing %s slice %06d: %v", kind, z, err)
		}

		if vol == nil {
			vol = models.NewVolume(end-start, ny, nx)
		} else if ny != vol.NY || nx != vol.NX {
			return nil, fmt.Errorf("%s slice %06d has shape %dx%d, want %dx%d",
				kind, z, ny, nx, vol.NY, vol.NX)
		}
		copy(vol.SliceData(z-start), data)
	}
	return vol, nil
}

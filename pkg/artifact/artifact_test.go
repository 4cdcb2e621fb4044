package artifact

import (
	"math"
	"os"
	"testing"
)

// TestWriteSliceSetRoundTrip verifies the 8-bit angle encoding: values come
// back within one quantization step of what was written
func TestWriteSliceSetRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), "tif", "8bit")

	ny, nx := 2, 3
	helix := []float32{-90, -45, 0, 30, 60, 90}
	intrusion := []float32{-10, -5, 0, 5, 10, 15}
	fa := []float32{0, 0.2, 0.4, 0.6, 0.8, 1}

	if err := store.WriteSliceSet(7, helix, intrusion, fa, ny, nx); err != nil {
		t.Fatalf("WriteSliceSet failed: %v", err)
	}

	// One 8-bit step spans 180/255 degrees for angles, 1/255 for FA
	angleTol := 180.0/255/2 + 1e-6
	faTol := 1.0/255/2 + 1e-6

	checks := []struct {
		kind string
		data []float32
		tol  float64
	}{
		{KindHelix, helix, angleTol},
		{KindIntrusion, intrusion, angleTol},
		{KindAnisotropy, fa, faTol},
	}
	for _, c := range checks {
		got, gotNY, gotNX, err := store.ReadAngleImage(c.kind, 7)
		if err != nil {
			t.Fatalf("ReadAngleImage(%s) failed: %v", c.kind, err)
		}
		if gotNY != ny || gotNX != nx {
			t.Fatalf("%s image shape %dx%d, want %dx%d", c.kind, gotNY, gotNX, ny, nx)
		}
		for i := range c.data {
			if diff := math.Abs(float64(got[i] - c.data[i])); diff > c.tol {
				t.Errorf("%s pixel %d: wrote %f, read %f (diff %f)", c.kind, i, c.data[i], got[i], diff)
			}
		}
	}
}

// TestWriteSliceSet16Bit verifies the finer quantization of the 16-bit path
func TestWriteSliceSet16Bit(t *testing.T) {
	store := NewStore(t.TempDir(), "tif", "16bit")

	helix := []float32{-33.3, 71.2}
	zero := []float32{0, 0}
	if err := store.WriteSliceSet(0, helix, zero, zero, 1, 2); err != nil {
		t.Fatalf("WriteSliceSet failed: %v", err)
	}

	got, _, _, err := store.ReadAngleImage(KindHelix, 0)
	if err != nil {
		t.Fatalf("ReadAngleImage failed: %v", err)
	}
	for i := range helix {
		if diff := math.Abs(float64(got[i] - helix[i])); diff > 0.002 {
			t.Errorf("Pixel %d: wrote %f, read %f", i, helix[i], got[i])
		}
	}
}

// TestEncodeAngleNaN verifies that invalid voxels encode to the background
// value instead of poisoning the image
func TestEncodeAngleNaN(t *testing.T) {
	nan := float32(math.NaN())

	if got := encodeAngle(KindHelix, nan); got != 0 {
		t.Errorf("NaN helix angle encoded to %f, want 0", got)
	}
	if got := encodeAngle(KindAnisotropy, nan); got != 0 {
		t.Errorf("NaN anisotropy encoded to %f, want 0", got)
	}

	// Out-of-range values clamp instead of wrapping
	if got := encodeAngle(KindHelix, 200); got != 1 {
		t.Errorf("Helix angle 200 encoded to %f, want 1", got)
	}
	if got := encodeAngle(KindAnisotropy, 1.5); got != 1 {
		t.Errorf("Anisotropy 1.5 encoded to %f, want 1", got)
	}
}

// TestExists verifies slice-set completeness detection drives resumption
func TestExists(t *testing.T) {
	store := NewStore(t.TempDir(), "tif", "8bit")

	if store.Exists(3, false) {
		t.Error("Exists reported a complete set before anything was written")
	}

	data := []float32{0, 0, 0, 0}
	if err := store.WriteSliceSet(3, data, data, data, 2, 2); err != nil {
		t.Fatalf("WriteSliceSet failed: %v", err)
	}

	if !store.Exists(3, false) {
		t.Error("Exists missed a complete angle set")
	}
	if store.Exists(3, true) {
		t.Error("Exists ignored the missing vector slice")
	}

	var comp [3][]float32
	for c := range comp {
		comp[c] = data
	}
	if err := store.WriteVectorSlice(3, comp, 2, 2); err != nil {
		t.Fatalf("WriteVectorSlice failed: %v", err)
	}
	if !store.Exists(3, true) {
		t.Error("Exists missed a complete set with vectors")
	}

	// A missing member invalidates the whole set
	if err := os.Remove(store.AnglePath(KindIntrusion, 3)); err != nil {
		t.Fatal(err)
	}
	if store.Exists(3, false) {
		t.Error("Exists reported a set with a missing angle image")
	}
}

// TestVectorSliceRoundTrip verifies the raw eigenvector slices survive a
// write/read cycle exactly
func TestVectorSliceRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), "tif", "8bit")

	ny, nx := 2, 2
	comp := [3][]float32{
		{0.1, -0.2, 0.3, float32(math.NaN())},
		{1, 2, 3, 4},
		{-1, -2, -3, -4},
	}

	if err := store.WriteVectorSlice(12, comp, ny, nx); err != nil {
		t.Fatalf("WriteVectorSlice failed: %v", err)
	}

	got, gotNY, gotNX, err := store.ReadVectorSlice(12)
	if err != nil {
		t.Fatalf("ReadVectorSlice failed: %v", err)
	}
	if gotNY != ny || gotNX != nx {
		t.Fatalf("Shape %dx%d, want %dx%d", gotNY, gotNX, ny, nx)
	}

	for c := 0; c < 3; c++ {
		for i := range comp[c] {
			want := comp[c][i]
			if math.IsNaN(float64(want)) {
				if !math.IsNaN(float64(got[c][i])) {
					t.Errorf("Component %d value %d: NaN not preserved", c, i)
				}
				continue
			}
			if got[c][i] != want {
				t.Errorf("Component %d value %d: wrote %f, read %f", c, i, want, got[c][i])
			}
		}
	}
}

// TestLoadVectorVolume verifies multi-slice assembly and the diagnostic for
// a missing prerequisite run
func TestLoadVectorVolume(t *testing.T) {
	store := NewStore(t.TempDir(), "tif", "8bit")

	for z := 2; z < 5; z++ {
		comp := [3][]float32{
			{float32(z)},
			{float32(z * 10)},
			{float32(z * 100)},
		}
		if err := store.WriteVectorSlice(z, comp, 1, 1); err != nil {
			t.Fatalf("WriteVectorSlice(%d) failed: %v", z, err)
		}
	}

	field, err := store.LoadVectorVolume(2, 5)
	if err != nil {
		t.Fatalf("LoadVectorVolume failed: %v", err)
	}
	if field.NZ != 3 || field.NY != 1 || field.NX != 1 {
		t.Fatalf("Unexpected field shape %dx%dx%d", field.NZ, field.NY, field.NX)
	}
	for z := 0; z < 3; z++ {
		if field.Comp[0][z] != float32(z+2) {
			t.Errorf("Slice %d Z component = %f, want %d", z, field.Comp[0][z], z+2)
		}
	}

	// A gap in the artifact range is an error with guidance
	if _, err := store.LoadVectorVolume(0, 5); err == nil {
		t.Error("Expected error for missing slices")
	}
	if _, err := store.LoadVectorVolume(5, 5); err == nil {
		t.Error("Expected error for an empty range")
	}
}

// TestLoadAngleVolume verifies angle maps reassemble with the original shape
func TestLoadAngleVolume(t *testing.T) {
	store := NewStore(t.TempDir(), "tif", "8bit")

	data := []float32{10, 20, 30, 40}
	for z := 0; z < 2; z++ {
		if err := store.WriteSliceSet(z, data, data, []float32{0, 0, 0, 0}, 2, 2); err != nil {
			t.Fatalf("WriteSliceSet(%d) failed: %v", z, err)
		}
	}

	vol, err := store.LoadAngleVolume(KindHelix, 0, 2)
	if err != nil {
		t.Fatalf("LoadAngleVolume failed: %v", err)
	}
	if vol.NZ != 2 || vol.NY != 2 || vol.NX != 2 {
		t.Fatalf("Unexpected volume shape %dx%dx%d", vol.NZ, vol.NY, vol.NX)
	}
	if diff := math.Abs(float64(vol.At(1, 0, 1) - 20)); diff > 0.4 {
		t.Errorf("Reassembled angle %f, want about 20", vol.At(1, 0, 1))
	}
}

// TestWriteSliceSetAtomic verifies no temporary files linger after a
// successful write
func TestWriteSliceSetAtomic(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, "tif", "8bit")

	data := []float32{0}
	if err := store.WriteSliceSet(0, data, data, data, 1, 1); err != nil {
		t.Fatalf("WriteSliceSet failed: %v", err)
	}

	for _, kind := range []string{KindHelix, KindIntrusion, KindAnisotropy} {
		if _, err := os.Stat(store.AnglePath(kind, 0) + ".tmp"); !os.IsNotExist(err) {
			t.Errorf("Temporary file left behind for %s", kind)
		}
	}
}

// Package mask maps a segmentation mask, possibly defined on a coarser Z
// grid than the working volume, onto the volume's index space and
// resolution.
package mask

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"cardiofiber/internal/models"
)

// Align resamples the native-resolution mask onto the [startPadded, endPadded)
// Z window of the working volume with dimensions (nz, ny, nx), where
// nz = endPadded - startPadded. The mask is upsampled along Z by nearest
// replication with the given binning factor and resized in-plane with
// bilinear interpolation.
//
// A shape mismatch after alignment is a fatal configuration error: the mask
// simply does not describe this volume.
func Align(m *models.Volume, binning float64, startPadded, endPadded, nz, ny, nx int) (*models.Volume, error) {
	if binning <= 0 {
		return nil, fmt.Errorf("binning factor must be positive, got %g", binning)
	}
	if endPadded-startPadded != nz {
		return nil, fmt.Errorf("window [%d,%d) does not span %d slices", startPadded, endPadded, nz)
	}

	// Source slice window in mask index space, clamped into [0, NMask)
	maskStart := int(float64(startPadded)/binning) - 1
	if maskStart < 0 {
		maskStart = 0
	}
	maskEnd := int(float64(endPadded)/binning) + 1
	if maskEnd > m.NZ {
		maskEnd = m.NZ
	}
	if maskStart >= maskEnd {
		return nil, fmt.Errorf("mask window [%d,%d) is empty for volume window [%d,%d)",
			maskStart, maskEnd, startPadded, endPadded)
	}

	window := m.SubZ(maskStart, maskEnd)

	// Nearest-replication zoom along Z
	zoomed := zoomNearestZ(window, binning)

	// Destination crop aligning the zoomed mask with the padded volume
	// window, clamped into the zoomed extent
	cropStart := int(math.Abs(float64(maskStart)*binning - float64(startPadded)))
	if cropStart < 0 {
		cropStart = 0
	}
	cropEnd := cropStart + nz
	if cropEnd > zoomed.NZ {
		cropEnd = zoomed.NZ
	}
	if cropStart >= cropEnd {
		return nil, fmt.Errorf("aligned mask crop [%d,%d) is empty", cropStart, cropEnd)
	}
	zoomed = zoomed.SubZ(cropStart, cropEnd)

	// Bilinear in-plane resize of every slice to the volume's Y,X extent
	out := models.NewVolume(zoomed.NZ, ny, nx)
	for z := 0; z < zoomed.NZ; z++ {
		resizeSliceBilinear(zoomed, z, out)
	}

	if out.NZ != nz || out.NY != ny || out.NX != nx {
		return nil, fmt.Errorf("mask shape %dx%dx%d does not match volume shape %dx%dx%d",
			out.NZ, out.NY, out.NX, nz, ny, nx)
	}

	return out, nil
}

// zoomNearestZ repeats each source slice so the Z extent grows by the given
// factor, matching an order-0 zoom: output slice i reads source slice
// floor(i/factor).
func zoomNearestZ(m *models.Volume, factor float64) *models.Volume {
	outNZ := int(float64(m.NZ) * factor)
	if outNZ < 1 {
		outNZ = 1
	}

	out := models.NewVolume(outNZ, m.NY, m.NX)
	for z := 0; z < outNZ; z++ {
		src := int(float64(z) / factor)
		if src >= m.NZ {
			src = m.NZ - 1
		}
		copy(out.SliceData(z), m.SliceData(src))
	}
	return out
}

// resizeSliceBilinear scales slice z of src into the same slice of dst,
// which may have a different in-plane extent. The mask is carried through
// an 8-bit grayscale image, so resampled values land in [0, 1] with zero
// exactly where every contributing sample was zero.
func resizeSliceBilinear(src *models.Volume, z int, dst *models.Volume) {
	gray := image.NewGray(image.Rect(0, 0, src.NX, src.NY))
	for y := 0; y < src.NY; y++ {
		for x := 0; x < src.NX; x++ {
			v := src.At(z, y, x)
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			gray.SetGray(x, y, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}

	scaled := image.NewGray(image.Rect(0, 0, dst.NX, dst.NY))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), gray, gray.Bounds(), draw.Src, nil)

	for y := 0; y < dst.NY; y++ {
		for x := 0; x < dst.NX; x++ {
			dst.Set(z, y, x, float32(scaled.GrayAt(x, y).Y)/255)
		}
	}
}

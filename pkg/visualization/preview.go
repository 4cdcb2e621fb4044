// Package visualization renders in-memory previews of orientation results.
// The pipeline's diagnostic mode uses it instead of writing artifacts, so a
// configuration can be sanity-checked on a few slices without touching the
// output directory.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/stat"

	"cardiofiber/internal/models"
)

// Preview composes the diagnostic view of one processed slice: the raw
// intensity image and its helix-angle, intrusion-angle and fractional-
// anisotropy maps in a 2x2 panel grid.
type Preview struct {
	// Index is the global slice index the preview belongs to
	Index int

	// ny, nx are the panel dimensions
	ny, nx int

	intensity []float32
	helix     []float32
	intrusion []float32
	fa        []float32
}

// NewPreview collects the four panels of one slice
func NewPreview(index int, intensity, helix, intrusion, fa []float32, ny, nx int) *Preview {
	return &Preview{
		Index:     index,
		ny:        ny,
		nx:        nx,
		intensity: intensity,
		helix:     helix,
		intrusion: intrusion,
		fa:        fa,
	}
}

// PanelStats summarizes the valid pixels of one preview panel
type PanelStats struct {
	// Mean and StdDev of the valid pixel values
	Mean, StdDev float64

	// Valid is the number of non-NaN pixels
	Valid int
}

// Stats computes per-panel summaries of the angle and anisotropy maps,
// ignoring NaN pixels. An all-NaN panel reports NaN mean and zero count.
func (p *Preview) Stats() (helix, intrusion, fa PanelStats) {
	return panelStats(p.helix), panelStats(p.intrusion), panelStats(p.fa)
}

func panelStats(data []float32) PanelStats {
	valid := make([]float64, 0, len(data))
	for _, v := range data {
		f := float64(v)
		if !math.IsNaN(f) {
			valid = append(valid, f)
		}
	}
	if len(valid) == 0 {
		return PanelStats{Mean: math.NaN(), StdDev: math.NaN()}
	}
	mean, std := stat.MeanStdDev(valid, nil)
	return PanelStats{Mean: mean, StdDev: std, Valid: len(valid)}
}

// Render draws the 2x2 panel grid. Intensity is normalized to its own
// maximum, angles span [-90, 90] degrees, FA spans [0, 1]; NaN renders
// black.
func (p *Preview) Render() image.Image {
	img := image.NewGray(image.Rect(0, 0, 2*p.nx, 2*p.ny))

	maxIntensity := float32(0)
	for _, v := range p.intensity {
		if !math.IsNaN(float64(v)) && v > maxIntensity {
			maxIntensity = v
		}
	}
	if maxIntensity == 0 {
		maxIntensity = 1
	}

	drawPanel(img, p.intensity, 0, 0, p.ny, p.nx, func(v float32) float64 {
		return float64(v / maxIntensity)
	})
	drawPanel(img, p.helix, 0, p.nx, p.ny, p.nx, angleToUnit)
	drawPanel(img, p.intrusion, p.ny, 0, p.ny, p.nx, angleToUnit)
	drawPanel(img, p.fa, p.ny, p.nx, p.ny, p.nx, func(v float32) float64 {
		return float64(v)
	})

	return img
}

// drawPanel writes one normalized panel at an offset into the grid image
func drawPanel(img *image.Gray, data []float32, offY, offX, ny, nx int, norm func(float32) float64) {
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			v := norm(data[y*nx+x])
			if math.IsNaN(v) {
				v = 0
			} else if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			img.SetGray(offX+x, offY+y, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}
}

func angleToUnit(v float32) float64 {
	return (float64(v) + 90) / 180
}

// ExtractSlice extracts a grayscale 2D slice from a volume along the
// specified axis, normalizing intensities into the slice's own range.
func ExtractSlice(vol *models.Volume, axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var width, height int
	var at func(a, b int) float32

	switch axis {
	case "x", "X":
		if position >= vol.NX {
			return nil, fmt.Errorf("position %d exceeds width %d", position, vol.NX)
		}
		width, height = vol.NZ, vol.NY
		at = func(a, b int) float32 { return vol.At(a, b, position) }
	case "y", "Y":
		if position >= vol.NY {
			return nil, fmt.Errorf("position %d exceeds height %d", position, vol.NY)
		}
		width, height = vol.NX, vol.NZ
		at = func(a, b int) float32 { return vol.At(b, position, a) }
	case "z", "Z":
		if position >= vol.NZ {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, vol.NZ)
		}
		width, height = vol.NX, vol.NY
		at = func(a, b int) float32 { return vol.At(position, b, a) }
	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for b := 0; b < height; b++ {
		for a := 0; a < width; a++ {
			v := at(a, b)
			if math.IsNaN(float64(v)) {
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	scale := float32(1)
	if hi > lo {
		scale = hi - lo
	}

	img := image.NewGray16(image.Rect(0, 0, width, height))
	for b := 0; b < height; b++ {
		for a := 0; a < width; a++ {
			v := at(a, b)
			if math.IsNaN(float64(v)) {
				continue
			}
			value := uint16(math.Max(0, math.Min(65535, float64((v-lo)/scale)*65535)))
			img.SetGray16(a, b, color.Gray16{Y: value})
		}
	}
	return img, nil
}

package tensor

import (
	"math"
	"sync"

	"cardiofiber/internal/models"
)

// gaussianKernel samples a Gaussian (order 0) or its first derivative
// (order 1) at integer offsets. The radius follows the common 4-sigma
// truncation; the order-0 kernel is normalized to unit sum and the order-1
// kernel is the exact derivative of that normalized Gaussian.
func gaussianKernel(sigma float64, order int) []float64 {
	radius := int(4*sigma + 0.5)
	if radius < 1 {
		radius = 1
	}

	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		g := math.Exp(-float64(i*i) / (2 * sigma * sigma))
		kernel[i+radius] = g
		sum += g
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	if order == 1 {
		for i := -radius; i <= radius; i++ {
			kernel[i+radius] *= -float64(i) / (sigma * sigma)
		}
	}

	return kernel
}

// reflect maps an out-of-range index into [0, n) by mirroring at the
// boundaries without repeating the edge sample.
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// convolveSeparable applies one 1D kernel per axis, in Z, Y, X order.
// Boundaries are mirrored. The input volume is not modified.
func convolveSeparable(vol *models.Volume, kz, ky, kx []float64) *models.Volume {
	out := convolveAxis(vol, kz, 0)
	out = convolveAxis(out, ky, 1)
	out = convolveAxis(out, kx, 2)
	return out
}

// convolveAxis correlates the volume with a 1D kernel along one axis
// (0 = Z, 1 = Y, 2 = X), processing Z slabs in parallel.
func convolveAxis(vol *models.Volume, kernel []float64, axis int) *models.Volume {
	out := models.NewVolume(vol.NZ, vol.NY, vol.NX)
	radius := len(kernel) / 2

	var wg sync.WaitGroup
	for z := 0; z < vol.NZ; z++ {
		wg.Add(1)
		go func(z int) {
			defer wg.Done()
			for y := 0; y < vol.NY; y++ {
				for x := 0; x < vol.NX; x++ {
					acc := 0.0
					for k := -radius; k <= radius; k++ {
						var sz, sy, sx int
						switch axis {
						case 0:
							sz, sy, sx = reflect(z+k, vol.NZ), y, x
						case 1:
							sz, sy, sx = z, reflect(y+k, vol.NY), x
						default:
							sz, sy, sx = z, y, reflect(x+k, vol.NX)
						}
						acc += kernel[k+radius] * float64(vol.At(sz, sy, sx))
					}
					out.Set(z, y, x, float32(acc))
				}
			}
		}(z)
	}
	wg.Wait()

	return out
}

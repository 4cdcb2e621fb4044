// Package orientation derives anatomically meaningful angle maps from a
// structure-tensor vector field and orchestrates their per-slice computation
// across a volume.
package orientation

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"cardiofiber/internal/models"
)

// FractionalAnisotropy measures the spread of an eigenvalue triplet:
// 0 for an isotropic tensor, 1 for a maximally anisotropic one.
// A degenerate all-zero triplet yields NaN, which downstream encoding
// treats as invalid rather than raising.
func FractionalAnisotropy(l0, l1, l2 float64) float64 {
	mean := (l0 + l1 + l2) / 3
	num := (l0-mean)*(l0-mean) + (l1-mean)*(l1-mean) + (l2-mean)*(l2-mean)
	den := l0*l0 + l1*l1 + l2*l2
	if den == 0 {
		return math.NaN()
	}
	fa := math.Sqrt(1.5 * num / den)
	if fa > 1 {
		fa = 1
	}
	return fa
}

// FractionalAnisotropySlice computes the FA image of one slice from its
// three eigenvalue planes
func FractionalAnisotropySlice(val [3][]float32) []float32 {
	out := make([]float32, len(val[0]))
	for i := range out {
		out[i] = float32(FractionalAnisotropy(
			float64(val[0][i]), float64(val[1][i]), float64(val[2][i])))
	}
	return out
}

// AngleBetween returns the angle in degrees between two vectors. Magnitudes
// are floored and the cosine is clamped into [-1, 1], so near-parallel and
// near-zero inputs stay in the arccos domain instead of producing NaN.
func AngleBetween(a, b models.Point3) float64 {
	const epsilon = 1e-10

	na := a.Norm()
	nb := b.Norm()
	if na < epsilon {
		na = epsilon
	}
	if nb < epsilon {
		nb = epsilon
	}

	cos := a.Dot(b) / (na * nb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi
}

// RotationToAxis builds the minimal rotation carrying the given axis onto
// the positive Z direction, using the Rodrigues form. Applying it to the
// vector field normalizes for the heart's tilted long axis, so the angle
// computation afterwards is purely local-geometric.
//
// The axis is given in (Z, Y, X) component order; the returned matrix acts
// on (X, Y, Z) column vectors.
func RotationToAxis(axis models.Point3) *mat.Dense {
	a := axis.Normalize()
	// Work in XYZ space
	ax, ay, az := a.X(), a.Y(), a.Z()

	// v = a x ez, c = a . ez
	vx, vy, vz := ay, -ax, 0.0
	c := az

	identity := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	if 1+c < 1e-12 {
		// Axis is anti-parallel to Z: rotate half a turn about X
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, -1, 0, 0, 0, -1})
	}

	skew := mat.NewDense(3, 3, []float64{
		0, -vz, vy,
		vz, 0, -vx,
		-vy, vx, 0,
	})

	var skew2 mat.Dense
	skew2.Mul(skew, skew)
	skew2.Scale(1/(1+c), &skew2)

	var r mat.Dense
	r.Add(identity, skew)
	r.Add(&r, &skew2)
	return &r
}

// RotateVectorsToAxis rotates every vector of a slice so the new Z axis
// equals the given center axis. Component planes are in (Z, Y, X) order;
// NaN vectors pass through unchanged by arithmetic propagation.
func RotateVectorsToAxis(comp [3][]float32, axis models.Point3) [3][]float32 {
	r := RotationToAxis(axis)
	r00, r01, r02 := r.At(0, 0), r.At(0, 1), r.At(0, 2)
	r10, r11, r12 := r.At(1, 0), r.At(1, 1), r.At(1, 2)
	r20, r21, r22 := r.At(2, 0), r.At(2, 1), r.At(2, 2)

	var out [3][]float32
	for c := 0; c < 3; c++ {
		out[c] = make([]float32, len(comp[c]))
	}

	for i := range comp[0] {
		vz := float64(comp[0][i])
		vy := float64(comp[1][i])
		vx := float64(comp[2][i])

		ox := r00*vx + r01*vy + r02*vz
		oy := r10*vx + r11*vy + r12*vz
		oz := r20*vx + r21*vy + r22*vz

		out[0][i] = float32(oz)
		out[1][i] = float32(oy)
		out[2][i] = float32(ox)
	}
	return out
}

// HelixTransverseAngles derives the helix and transverse (intrusion) angle
// images of one slice from its rotated vector field and the slice's center
// point. At every pixel the in-plane components are projected onto the
// radial and circumferential directions around the center; the helix angle
// is the inclination of the longitudinal component against the
// circumferential direction and the transverse angle the inclination of the
// radial component. Vectors with a negative circumferential component are
// flipped first, keeping both angles in (-90, 90].
func HelixTransverseAngles(comp [3][]float32, ny, nx int, center models.Point3) (helix, transverse []float32) {
	helix = make([]float32, ny*nx)
	transverse = make([]float32, ny*nx)

	cy := center.Y()
	cx := center.X()

	for y := 0; y < ny; y++ {
		dy := float64(y) - cy
		for x := 0; x < nx; x++ {
			dx := float64(x) - cx
			theta := math.Atan2(dy, dx)
			sin, cos := math.Sincos(theta)

			i := y*nx + x
			vz := float64(comp[0][i])
			vy := float64(comp[1][i])
			vx := float64(comp[2][i])

			// Radial and circumferential projections of the in-plane part
			vr := vx*cos + vy*sin
			vc := -vx*sin + vy*cos
			if vc < 0 {
				vr, vc, vz = -vr, -vc, -vz
			}

			helix[i] = float32(math.Atan(vz/vc) * 180 / math.Pi)
			transverse[i] = float32(math.Atan(vr/vc) * 180 / math.Pi)
		}
	}
	return helix, transverse
}

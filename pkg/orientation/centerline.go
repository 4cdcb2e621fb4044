package orientation

import "cardiofiber/internal/models"

// InterpolatePoints builds the center line: one 3D point per global slice
// index, linearly interpolated from the mitral valve landmark to the apex
// landmark. Both points and the result are in (Z, Y, X) order.
func InterpolatePoints(mitralValve, apex models.Point3, numSlices int) []models.Point3 {
	points := make([]models.Point3, numSlices)
	if numSlices == 1 {
		points[0] = mitralValve
		return points
	}

	step := apex.Sub(mitralValve).Scale(1 / float64(numSlices-1))
	for i := range points {
		points[i] = models.Point3{
			mitralValve[0] + step[0]*float64(i),
			mitralValve[1] + step[1]*float64(i),
			mitralValve[2] + step[2]*float64(i),
		}
	}
	return points
}

// CenterVector returns the unit direction from the apex to the mitral
// valve, negated when flip is set. It is the fixed reference axis of the
// whole volume.
func CenterVector(mitralValve, apex models.Point3, flip bool) models.Point3 {
	v := mitralValve.Sub(apex).Normalize()
	if flip {
		v = v.Scale(-1)
	}
	return v
}

// PointFromXYZ converts a configuration landmark given as (X, Y, Z) into
// the internal (Z, Y, X) order
func PointFromXYZ(p [3]float64) models.Point3 {
	return models.Point3{p[2], p[1], p[0]}
}

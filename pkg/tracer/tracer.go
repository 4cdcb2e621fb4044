// Package tracer grows discrete fiber streamlines by following a
// structure-tensor vector field stepwise from randomly seeded points.
//
// Streamlines are mutually independent: each one is traced from its own
// seed against the shared read-only field and carries no state of any
// other. Stopping conditions (out of bounds, NaN direction, angle threshold
// exceeded) are normal control flow, terminating one streamline without
// affecting the rest.
package tracer

import (
	"fmt"
	"math"
	"math/rand"

	"cardiofiber/internal/models"
	"cardiofiber/pkg/orientation"
)

// Params control seeding and growth of streamlines
type Params struct {
	// NumSeeds is the number of initial points sampled uniformly without
	// replacement from the valid voxel domain
	NumSeeds int

	// NumSteps bounds the number of growth steps per streamline
	NumSteps int

	// SegmentLength is the step length in voxels along the local vector
	SegmentLength float64

	// AngleThreshold stops growth when consecutive step directions deviate
	// by more than this many degrees
	AngleThreshold float64

	// MinPoints discards traced polylines with fewer points
	MinPoints int

	// Seed initializes the random source; a fixed value makes seeding
	// reproducible
	Seed int64
}

// Streamline is one traced polyline with its per-point attributes. Points
// are in (Z, Y, X) voxel coordinates until PrepareExport converts them.
type Streamline struct {
	Points []models.Point3

	// Helix holds the helix angle sampled at each point, degrees
	Helix []float64

	// ZAngle holds the angle between the local vector and the global Z
	// axis at each point, degrees
	ZAngle []float64
}

// Tracer follows a vector field from seeded points. The field must be unit
// length with the Z-sign convention already applied; NaN components mark
// invalid voxels and bound the seed domain.
type Tracer struct {
	field  *models.VectorField
	params Params
	rng    *rand.Rand
}

// New creates a tracer over the given field
func New(field *models.VectorField, params Params) *Tracer {
	return &Tracer{
		field:  field,
		params: params,
		rng:    rand.New(rand.NewSource(params.Seed)),
	}
}

// Trace seeds and grows all streamlines, discarding those shorter than the
// minimum point count. It fails when the field has fewer valid voxels than
// requested seeds.
func (t *Tracer) Trace() ([]*Streamline, error) {
	seeds, err := t.sampleSeeds()
	if err != nil {
		return nil, err
	}

	var lines []*Streamline
	for _, seed := range seeds {
		points := t.traceFrom(seed)
		if len(points) >= t.params.MinPoints {
			lines = append(lines, &Streamline{Points: points})
		}
	}
	return lines, nil
}

// sampleSeeds picks NumSeeds voxel coordinates uniformly without
// replacement from voxels whose vector has no NaN component
func (t *Tracer) sampleSeeds() ([][3]int, error) {
	var valid []int
	for i := range t.field.Comp[0] {
		if !t.field.IsNaNAt(i) {
			valid = append(valid, i)
		}
	}

	if len(valid) < t.params.NumSeeds {
		return nil, fmt.Errorf("only %d valid voxels in the mask but %d seed points requested; "+
			"reduce the seed count or check the mask volume", len(valid), t.params.NumSeeds)
	}

	t.rng.Shuffle(len(valid), func(i, j int) {
		valid[i], valid[j] = valid[j], valid[i]
	})

	plane := t.field.NY * t.field.NX
	seeds := make([][3]int, t.params.NumSeeds)
	for i, flat := range valid[:t.params.NumSeeds] {
		seeds[i] = [3]int{flat / plane, (flat % plane) / t.field.NX, flat % t.field.NX}
	}
	return seeds, nil
}

// traceFrom grows one polyline from a seed voxel. Each step reads the
// vector at the rounded current position, stops on NaN, on a direction
// change beyond the angle threshold or on leaving the volume, and otherwise
// advances by vector times segment length, recording the floating-point
// position.
func (t *Tracer) traceFrom(seed [3]int) []models.Point3 {
	current := models.Point3{float64(seed[0]), float64(seed[1]), float64(seed[2])}
	points := []models.Point3{current}

	var prevDir models.Point3
	hasPrev := false

	for step := 0; step < t.params.NumSteps; step++ {
		rounded := current.Round()
		z, y, x := int(rounded[0]), int(rounded[1]), int(rounded[2])
		if !t.inBounds(z, y, x) {
			break
		}

		dir := t.field.Vector(z, y, x).Scale(t.params.SegmentLength)
		if math.IsNaN(dir[0]) || math.IsNaN(dir[1]) || math.IsNaN(dir[2]) {
			break
		}
		if hasPrev && orientation.AngleBetween(prevDir, dir) > t.params.AngleThreshold {
			break
		}

		next := models.Point3{current[0] + dir[0], current[1] + dir[1], current[2] + dir[2]}
		nextRounded := next.Round()
		if !t.inBounds(int(nextRounded[0]), int(nextRounded[1]), int(nextRounded[2])) {
			break
		}

		points = append(points, next)
		current = next
		prevDir = dir
		hasPrev = true
	}

	return points
}

func (t *Tracer) inBounds(z, y, x int) bool {
	return z >= 0 && z < t.field.NZ && y >= 0 && y < t.field.NY && x >= 0 && x < t.field.NX
}

// ComputeAttributes fills the per-point helix angle and z-angle of every
// streamline, in point order. The helix angle is sampled from the HA volume
// at the point's integer coordinates; the z-angle is the angle between the
// local vector and the global Z axis.
func (t *Tracer) ComputeAttributes(lines []*Streamline, haVolume *models.Volume) {
	for _, line := range lines {
		line.Helix = make([]float64, len(line.Points))
		line.ZAngle = make([]float64, len(line.Points))

		for i, pt := range line.Points {
			z, y, x := int(pt[0]), int(pt[1]), int(pt[2])
			line.Helix[i] = float64(haVolume.At(z, y, x))

			v := t.field.Vector(z, y, x)
			norm := v.Norm()
			if norm == 0 {
				line.ZAngle[i] = math.NaN()
				continue
			}
			line.ZAngle[i] = math.Acos(math.Abs(v[0])/norm) * 180 / math.Pi
		}
	}
}

// OffsetZ shifts every point's Z coordinate by the window start index,
// converting window-local coordinates into global slice indices
func OffsetZ(lines []*Streamline, start int) {
	for _, line := range lines {
		for i := range line.Points {
			line.Points[i][0] += float64(start)
		}
	}
}

// ScalePoints multiplies every coordinate of every point by the given
// factor, typically the physical voxel size times any upstream binning
func ScalePoints(lines []*Streamline, factor float64) {
	for _, line := range lines {
		for i := range line.Points {
			line.Points[i] = line.Points[i].Scale(factor)
		}
	}
}

// ReorderToXYZ converts every point from the internal (Z, Y, X) order to
// the (X, Y, Z) order expected by the graph export
func ReorderToXYZ(lines []*Streamline) {
	for _, line := range lines {
		for i, pt := range line.Points {
			line.Points[i] = models.Point3{pt[2], pt[1], pt[0]}
		}
	}
}

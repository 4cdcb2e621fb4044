// Package amira serializes traced streamlines to the AmiraMesh
// HxSpatialGraph ASCII format: two vertices per streamline (its endpoints),
// one edge per streamline, and the full point list with per-point thickness,
// helix-angle and z-angle attributes.
package amira

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"cardiofiber/pkg/tracer"
)

// Write emits the spatial graph for the given streamlines. The output is a
// pure function of its input: same streamlines, same bytes.
func Write(w io.Writer, lines []*tracer.Streamline) error {
	bw := bufio.NewWriter(w)

	numPoints := 0
	for _, line := range lines {
		numPoints += len(line.Points)
	}

	fmt.Fprintf(bw, "# AmiraMesh 3D ASCII 3.0\n\n\n")
	fmt.Fprintf(bw, "define VERTEX %d\n", len(lines)*2)
	fmt.Fprintf(bw, "define EDGE %d\n", len(lines))
	fmt.Fprintf(bw, "define POINT %d\n", numPoints)
	fmt.Fprintf(bw, "\nParameters {\n    ContentType \"HxSpatialGraph\"\n}\n\n")
	fmt.Fprintf(bw, "VERTEX { float[3] VertexCoordinates } @1\n")
	fmt.Fprintf(bw, "EDGE { int[2] EdgeConnectivity } @2\n")
	fmt.Fprintf(bw, "EDGE { int NumEdgePoints } @3\n")
	fmt.Fprintf(bw, "POINT { float[3] EdgePointCoordinates } @4\n")
	fmt.Fprintf(bw, "POINT { float thickness } @5\n")
	fmt.Fprintf(bw, "POINT { float HA_angle } @6\n")
	fmt.Fprintf(bw, "POINT { float z_angle } @7\n")
	fmt.Fprintf(bw, "\n# Data section follows\n")

	// Vertex coordinates: first and last point of each streamline
	fmt.Fprintf(bw, "@1\n")
	for _, line := range lines {
		if len(line.Points) < 2 {
			continue
		}
		first := line.Points[0]
		last := line.Points[len(line.Points)-1]
		fmt.Fprintf(bw, "%s %s %s\n", ftoa(first[0]), ftoa(first[1]), ftoa(first[2]))
		fmt.Fprintf(bw, "%s %s %s\n", ftoa(last[0]), ftoa(last[1]), ftoa(last[2]))
	}

	// Edge connectivity: streamline i joins vertices 2i and 2i+1
	fmt.Fprintf(bw, "\n@2\n")
	for i := range lines {
		fmt.Fprintf(bw, "%d %d\n", i*2, i*2+1)
	}

	// Points per edge
	fmt.Fprintf(bw, "\n@3\n")
	for _, line := range lines {
		fmt.Fprintf(bw, "%d\n", len(line.Points))
	}

	// Edge point coordinates
	fmt.Fprintf(bw, "\n@4\n")
	for _, line := range lines {
		for _, pt := range line.Points {
			fmt.Fprintf(bw, "%s %s %s\n", ftoa(pt[0]), ftoa(pt[1]), ftoa(pt[2]))
		}
	}

	// Constant point thickness
	fmt.Fprintf(bw, "\n@5\n")
	for _, line := range lines {
		for range line.Points {
			fmt.Fprintf(bw, "1.0\n")
		}
	}

	// Helix angles
	fmt.Fprintf(bw, "\n@6\n")
	for _, line := range lines {
		for _, angle := range line.Helix {
			fmt.Fprintf(bw, "%s\n", ftoa(angle))
		}
	}

	// Z-axis angles
	fmt.Fprintf(bw, "\n@7\n")
	for _, line := range lines {
		for _, angle := range line.ZAngle {
			fmt.Fprintf(bw, "%s\n", ftoa(angle))
		}
	}

	return bw.Flush()
}

// WriteFile writes the spatial graph to a file. Any write failure is
// surfaced to the caller; there is no retry.
func WriteFile(path string, lines []*tracer.Streamline) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}

	if err := Write(file, lines); err != nil {
		file.Close()
		return fmt.Errorf("failed to write graph file: %w", err)
	}
	return file.Close()
}

// ftoa formats a float with the shortest representation that round-trips
func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

package artifact

import (
	"bytes"
	"strings"
	"testing"
)

// TestNPYRoundTrip verifies exact value and shape preservation
func TestNPYRoundTrip(t *testing.T) {
	shape := []int{2, 3}
	data := []float32{1.5, -2.25, 0, 3.75, -0.125, 1e-20}

	var buf bytes.Buffer
	if err := writeNPY(&buf, shape, data); err != nil {
		t.Fatalf("writeNPY failed: %v", err)
	}

	gotShape, gotData, err := readNPY(&buf)
	if err != nil {
		t.Fatalf("readNPY failed: %v", err)
	}

	if len(gotShape) != 2 || gotShape[0] != 2 || gotShape[1] != 3 {
		t.Fatalf("Shape %v, want [2 3]", gotShape)
	}
	for i := range data {
		if gotData[i] != data[i] {
			t.Errorf("Value %d: wrote %g, read %g", i, data[i], gotData[i])
		}
	}
}

// TestNPYHeaderAlignment verifies the data section starts on the 64-byte
// boundary the format prescribes
func TestNPYHeaderAlignment(t *testing.T) {
	for _, shape := range [][]int{{1}, {3, 4, 5}, {100}} {
		n := 1
		for _, d := range shape {
			n *= d
		}

		var buf bytes.Buffer
		if err := writeNPY(&buf, shape, make([]float32, n)); err != nil {
			t.Fatalf("writeNPY failed for shape %v: %v", shape, err)
		}

		if offset := buf.Len() - 4*n; offset%64 != 0 {
			t.Errorf("Shape %v: data offset %d is not 64-byte aligned", shape, offset)
		}

		if !bytes.HasSuffix(buf.Bytes()[:buf.Len()-4*n], []byte("\n")) {
			t.Errorf("Shape %v: header does not end with a newline", shape)
		}
	}
}

// TestNPYOneDimensionalShape verifies the trailing comma convention for
// single-dimension tuples
func TestNPYOneDimensionalShape(t *testing.T) {
	var buf bytes.Buffer
	if err := writeNPY(&buf, []int{4}, make([]float32, 4)); err != nil {
		t.Fatalf("writeNPY failed: %v", err)
	}
	if !strings.Contains(buf.String(), "(4,)") {
		t.Error("One-dimensional shape missing the trailing comma")
	}

	shape, _, err := readNPY(&buf)
	if err != nil {
		t.Fatalf("readNPY failed: %v", err)
	}
	if len(shape) != 1 || shape[0] != 4 {
		t.Errorf("Shape %v, want [4]", shape)
	}
}

// TestNPYValidation verifies rejection of inconsistent or foreign input
func TestNPYValidation(t *testing.T) {
	var buf bytes.Buffer
	if err := writeNPY(&buf, []int{2, 2}, make([]float32, 3)); err == nil {
		t.Error("Expected error for shape/data mismatch")
	}

	if _, _, err := readNPY(bytes.NewReader([]byte("not an npy file"))); err == nil {
		t.Error("Expected error for a foreign file")
	}
}

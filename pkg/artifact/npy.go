package artifact

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Minimal NPY v1.0 support for little-endian float32 arrays in C order,
// enough to exchange vector-field slices with standard array tooling.

var npyMagic = []byte("\x93NUMPY")

// writeNPY writes data with the given shape as an NPY v1.0 file
func writeNPY(w io.Writer, shape []int, data []float32) error {
	dims := make([]string, len(shape))
	n := 1
	for i, d := range shape {
		dims[i] = strconv.Itoa(d)
		n *= d
	}
	if n != len(data) {
		return fmt.Errorf("shape %v does not match %d values", shape, len(data))
	}

	shapeStr := strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	header := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%s), }", shapeStr)

	// Pad so the data section starts on a 64-byte boundary, per the format
	total := len(npyMagic) + 4 + len(header) + 1
	pad := (64 - total%64) % 64
	header += strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)

	if err := binary.Write(bw, binary.LittleEndian, data); err != nil {
		return err
	}
	return bw.Flush()
}

// readNPY reads an NPY file written by writeNPY or compatible tooling
func readNPY(r io.Reader) ([]int, []float32, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, 8)
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, nil, err
	}
	if string(magic[:6]) != string(npyMagic) {
		return nil, nil, fmt.Errorf("not an NPY file")
	}

	var headerLen uint16
	if err := binary.Read(br, binary.LittleEndian, &headerLen); err != nil {
		return nil, nil, err
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(br, headerBytes); err != nil {
		return nil, nil, err
	}
	header := string(headerBytes)

	if !strings.Contains(header, "'<f4'") {
		return nil, nil, fmt.Errorf("unsupported dtype in header %q", header)
	}
	if strings.Contains(header, "'fortran_order': True") {
		return nil, nil, fmt.Errorf("fortran-order arrays are not supported")
	}

	shape, err := parseShape(header)
	if err != nil {
		return nil, nil, err
	}

	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)
	if err := binary.Read(br, binary.LittleEndian, data); err != nil {
		return nil, nil, err
	}
	return shape, data, nil
}

// parseShape extracts the shape tuple from an NPY header dictionary
func parseShape(header string) ([]int, error) {
	open := strings.Index(header, "(")
	end := strings.Index(header, ")")
	if open < 0 || end < open {
		return nil, fmt.Errorf("malformed shape in header %q", header)
	}

	var shape []int
	for _, tok := range strings.Split(header[open+1:end], ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		d, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("malformed shape dimension %q", tok)
		}
		shape = append(shape, d)
	}
	return shape, nil
}

package tractio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PointTransformer transforms a single point
type PointTransformer interface {
	Apply(p Point3D) Point3D
}

var _ PointTransformer = Affine{}

// Affine is a 4x4 homogeneous transformation matrix (row-major), e.g. an sform
type Affine [4][4]float64

// IdentityAffine returns the identity transform
func IdentityAffine() Affine {
	return Affine{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

// Apply transforms a point (the homogeneous coordinate is assumed to be 1)
func (a Affine) Apply(p Point3D) Point3D {
	var out Point3D
	for i := 0; i < 3; i++ {
		out[i] = a[i][0]*p[0] + a[i][1]*p[1] + a[i][2]*p[2] + a[i][3]
	}
	if w := a[3][0]*p[0] + a[3][1]*p[1] + a[3][2]*p[2] + a[3][3]; w != 1 && w != 0 {
		for i := 0; i < 3; i++ {
			out[i] /= w
		}
	}
	return out
}

// IsIdentity reports whether the affine is the identity transform
func (a Affine) IsIdentity() bool {
	return a == IdentityAffine()
}

// Transform returns a new StreamlineSet with every point transformed
//
// the receiver is not modified
func (s *StreamlineSet) Transform(t PointTransformer) *StreamlineSet {
	streamlines := make([]Polyline, len(s.Streamlines))
	arena := make([]Point3D, s.NumPoints())
	used := 0
	for i, sl := range s.Streamlines {
		out := arena[used : used+len(sl) : used+len(sl)]
		for j, p := range sl {
			out[j] = t.Apply(p)
		}
		streamlines[i] = out
		used += len(sl)
	}
	return s.derive(streamlines)
}

// ReadAffineFile reads a 4x4 affine from a .npy file or a whitespace separated text file
// (4 rows of 4 numbers, '#' comments allowed)
//
// an empty filename gives the identity transform
func ReadAffineFile(filename string) (Affine, error) {
	if filename == "" {
		return IdentityAffine(), nil
	}
	raw, err := os.ReadFile(filename)
	if err != nil {
		return Affine{}, err
	}
	if filepath.Ext(filename) == ".npy" {
		return parseAffineNpy(raw)
	}
	return ParseAffineText(raw)
}

func parseAffineNpy(raw []byte) (Affine, error) {
	arr, err := readNpyArray(bytes.NewReader(raw), "affine")
	if err != nil {
		return Affine{}, err
	}
	if len(arr.shape) != 2 || arr.shape[0] != 4 || arr.shape[1] != 4 {
		return Affine{}, fmt.Errorf("affine array shape %v is not 4x4", arr.shape)
	}
	var result Affine
	for i, v := range arr.values {
		result[i/4][i%4] = v
	}
	return result, nil
}

// ParseAffineText parses a 4x4 affine written as text (e.g. by numpy.savetxt)
func ParseAffineText(raw []byte) (Affine, error) {
	var result Affine
	row := 0
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ' ' || r == '\t' || r == ',' || r == '\r'
		})
		if len(fields) == 0 {
			continue
		}
		if row == 4 {
			return Affine{}, errors.New("affine has more than 4 rows")
		}
		if len(fields) != 4 {
			return Affine{}, fmt.Errorf("affine row %d has %d values (expected 4)", row, len(fields))
		}
		for col, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Affine{}, fmt.Errorf("affine row %d: invalid number %q", row, field)
			}
			result[row][col] = v
		}
		row++
	}
	if err := scanner.Err(); err != nil {
		return Affine{}, err
	}
	if row != 4 {
		return Affine{}, fmt.Errorf("affine has %d rows (expected 4)", row)
	}
	return result, nil
}

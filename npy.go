package tractio

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/h2non/filetype"
	"github.com/sbinet/npyio/npy"
)

// npyArray is a decoded numeric array, widened to float64 and held in C (row-major) order
type npyArray struct {
	shape     []int
	values    []float64
	precision int
}

func npyDecoder(raw []byte, _ *DecodeOptions) (*StreamlineSet, error) {
	arr, err := readNpyArray(bytes.NewReader(raw), "array")
	if err != nil {
		return nil, err
	}
	sl, err := arr.polyline(FormatNpy, "array")
	if err != nil {
		return nil, err
	}
	return &StreamlineSet{
		Format:      FormatNpy,
		Precision:   arr.precision,
		Streamlines: []Polyline{sl},
	}, nil
}

// npzDecoder decodes a (possibly compressed) .npz archive, one streamline per N×3 entry
//
// entries are decoded in archive order
func npzDecoder(raw []byte, options *DecodeOptions) (*StreamlineSet, error) {
	if !filetype.Is(raw, "zip") {
		return nil, decodeError(FormatNpz, ErrUnsupportedFormat, "archive", "not a zip archive")
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, decodeError(FormatNpz, ErrMalformedHeader, "archive", "%s", err.Error())
	}
	entries := make([]*zip.File, 0, len(zr.File))
	for _, f := range zr.File {
		if !f.FileInfo().IsDir() {
			entries = append(entries, f)
		}
	}
	result := &StreamlineSet{
		Format:      FormatNpz,
		Precision:   32,
		Streamlines: make([]Polyline, 0, len(entries)),
	}
	if len(entries) == 0 {
		options.logger().Info("npz archive has no entries - no streamlines decoded")
		return result, nil
	}
	for _, f := range entries {
		name := strings.TrimSuffix(f.Name, ".npy")
		construct := fmt.Sprintf("entry %q", name)
		arr, err := readNpzEntry(f, construct)
		if err != nil {
			return nil, err
		}
		sl, err := arr.polyline(FormatNpz, construct)
		if err != nil {
			return nil, err
		}
		result.Streamlines = append(result.Streamlines, sl)
		result.Precision = max(result.Precision, arr.precision)
	}
	return result, nil
}

func readNpzEntry(f *zip.File, construct string) (*npyArray, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, decodeError(FormatNpz, ErrMalformedRecord, construct, "%s", err.Error())
	}
	defer func() {
		_ = rc.Close()
	}()
	arr, err := readNpyArray(rc, construct)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Format = FormatNpz
		}
		return nil, err
	}
	return arr, nil
}

func readNpyArray(r io.Reader, construct string) (*npyArray, error) {
	nr, err := npy.NewReader(r)
	if err != nil {
		return nil, decodeError(FormatNpy, ErrMalformedHeader, construct, "%s", err.Error())
	}
	descr := nr.Header.Descr
	dtype := strings.TrimLeft(descr.Type, "<>|=")
	n := 1
	for _, d := range descr.Shape {
		n *= d
	}
	arr := &npyArray{
		shape:     descr.Shape,
		precision: 64,
	}
	if dtype == "f4" {
		arr.precision = 32
	}
	if arr.values, err = readNpyValues(nr, dtype); err != nil {
		return nil, wrapDecodeError(FormatNpy, construct, err)
	}
	if len(arr.values) != n {
		return nil, decodeError(FormatNpy, ErrTruncatedInput, construct,
			"shape %v needs %d values, got %d", descr.Shape, n, len(arr.values))
	}
	if descr.Fortran && len(descr.Shape) > 1 {
		arr.values = fortranToC(arr.values, descr.Shape)
	}
	return arr, nil
}

func readNpyValues(nr *npy.Reader, dtype string) ([]float64, error) {
	switch dtype {
	case "f8":
		var v []float64
		err := nr.Read(&v)
		return v, err
	case "f4":
		var v []float32
		err := nr.Read(&v)
		return widen(v), err
	case "i1":
		return readNpyInts[int8](nr)
	case "i2":
		return readNpyInts[int16](nr)
	case "i4":
		return readNpyInts[int32](nr)
	case "i8":
		return readNpyInts[int64](nr)
	case "u1":
		return readNpyInts[uint8](nr)
	case "u2":
		return readNpyInts[uint16](nr)
	case "u4":
		return readNpyInts[uint32](nr)
	case "u8":
		return readNpyInts[uint64](nr)
	case "O":
		return nil, fmt.Errorf("%w: object arrays (lists of arrays) are not supported", ErrUnsupportedFormat)
	}
	return nil, fmt.Errorf("%w: array dtype %q is not numeric", ErrUnsupportedDatatype, dtype)
}

func readNpyInts[T int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64](nr *npy.Reader) ([]float64, error) {
	var v []T
	if err := nr.Read(&v); err != nil {
		return nil, err
	}
	result := make([]float64, len(v))
	for i, x := range v {
		result[i] = float64(x)
	}
	return result, nil
}

// fortranToC reorders column-major values into row-major order
func fortranToC(values []float64, shape []int) []float64 {
	if len(shape) != 2 {
		return values
	}
	rows, cols := shape[0], shape[1]
	result := make([]float64, len(values))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			result[i*cols+j] = values[j*rows+i]
		}
	}
	return result
}

func (a *npyArray) polyline(format Format, construct string) (Polyline, error) {
	if len(a.shape) == 3 {
		return nil, decodeError(format, ErrUnsupportedFormat, construct,
			"array holds a stack of %d arrays - multi-streamline arrays are not supported", a.shape[0])
	}
	if len(a.shape) != 2 || a.shape[1] != 3 {
		return nil, decodeError(format, ErrMalformedHeader, construct,
			"array shape %v is not N×3", a.shape)
	}
	return triplets(a.values), nil
}

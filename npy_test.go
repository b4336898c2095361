package tractio

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"github.com/michielkleinnijenhuis/tractio/_test_data/tracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"strings"
	"testing"
)

// npyBytes builds a version 1.0 .npy file (little-endian data)
func npyBytes(descr string, fortran bool, shape []int, values any) []byte {
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = fmt.Sprint(d)
	}
	shapeStr := "(" + strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	shapeStr += ")"
	order := "False"
	if fortran {
		order = "True"
	}
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': %s, 'shape': %s, }", descr, order, shapeStr)
	// magic (6) + version (2) + header length (2) + dict + '\n' is padded to a multiple of 64
	if pad := (64 - (10+len(dict)+1)%64) % 64; pad > 0 {
		dict += strings.Repeat(" ", pad)
	}
	dict += "\n"
	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY\x01\x00")
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(dict)))
	buf.WriteString(dict)
	_ = binary.Write(&buf, binary.LittleEndian, values)
	return buf.Bytes()
}

type npzEntry struct {
	name string
	data []byte
}

func npzBytes(t *testing.T, entries ...npzEntry) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestNpyDecoder(t *testing.T) {
	t.Run("embedded", func(t *testing.T) {
		raw, err := tracts.ReadFile("single.npy")
		require.NoError(t, err)
		set, err := DecodeBytes(raw, ".npy", nil)
		require.NoError(t, err)
		assert.Equal(t, FormatNpy, set.Format)
		assert.Equal(t, 64, set.Precision)
		require.Equal(t, 1, set.Len())
		assert.Equal(t, Polyline{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}, {3, 3, 3}}, set.Streamlines[0])
	})
	t.Run("float32", func(t *testing.T) {
		raw := npyBytes("<f4", false, []int{2, 3}, []float32{1.5, 2, 3, 4, 5, 6})
		set, err := DecodeBytes(raw, ".npy", nil)
		require.NoError(t, err)
		assert.Equal(t, 32, set.Precision)
		assert.Equal(t, Polyline{{1.5, 2, 3}, {4, 5, 6}}, set.Streamlines[0])
	})
	t.Run("int32", func(t *testing.T) {
		raw := npyBytes("<i4", false, []int{1, 3}, []int32{-1, 2, 3})
		set, err := DecodeBytes(raw, ".npy", nil)
		require.NoError(t, err)
		assert.Equal(t, Polyline{{-1, 2, 3}}, set.Streamlines[0])
	})
	t.Run("fortran order", func(t *testing.T) {
		// column-major [[1, 2, 3], [4, 5, 6]]
		raw := npyBytes("<f8", true, []int{2, 3}, []float64{1, 4, 2, 5, 3, 6})
		set, err := DecodeBytes(raw, ".npy", nil)
		require.NoError(t, err)
		assert.Equal(t, Polyline{{1, 2, 3}, {4, 5, 6}}, set.Streamlines[0])
	})
}

func TestNpyDecoder_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		raw    []byte
		expect error
	}{
		{
			name:   "not N×3",
			raw:    npyBytes("<f8", false, []int{2, 2}, []float64{1, 2, 3, 4}),
			expect: ErrMalformedHeader,
		},
		{
			name:   "one dimensional",
			raw:    npyBytes("<f8", false, []int{3}, []float64{1, 2, 3}),
			expect: ErrMalformedHeader,
		},
		{
			name:   "stack of arrays",
			raw:    npyBytes("<f8", false, []int{2, 1, 3}, []float64{1, 2, 3, 4, 5, 6}),
			expect: ErrUnsupportedFormat,
		},
		{
			name:   "bool dtype",
			raw:    npyBytes("|b1", false, []int{1, 3}, []bool{true, false, true}),
			expect: ErrUnsupportedDatatype,
		},
		{
			name:   "not npy",
			raw:    []byte("definitely not numpy"),
			expect: ErrMalformedHeader,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeBytes(tc.raw, ".npy", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.expect)
		})
	}
	t.Run("short data", func(t *testing.T) {
		raw := npyBytes("<f8", false, []int{4, 3}, []float64{1, 2, 3, 4, 5})
		_, err := DecodeBytes(raw, ".npy", nil)
		require.Error(t, err)
	})
}

func TestNpzDecoder(t *testing.T) {
	t.Run("embedded", func(t *testing.T) {
		raw, err := tracts.ReadFile("three_lines.npz")
		require.NoError(t, err)
		set, err := DecodeBytes(raw, ".npz", nil)
		require.NoError(t, err)
		assert.Equal(t, FormatNpz, set.Format)
		assert.Equal(t, 64, set.Precision)
		require.Equal(t, 3, set.Len())
		assert.Equal(t, Polyline{{1, 2, 3}, {4, 5, 6}}, set.Streamlines[0])
		assert.Equal(t, Polyline{{7, 8, 9}}, set.Streamlines[1])
		assert.Equal(t, Polyline{{0, 0, 1}, {0, 0, 2}, {0, 0, 3}}, set.Streamlines[2])
	})
	t.Run("archive order", func(t *testing.T) {
		raw := npzBytes(t,
			npzEntry{"b.npy", npyBytes("<f4", false, []int{1, 3}, []float32{2, 2, 2})},
			npzEntry{"a.npy", npyBytes("<f4", false, []int{1, 3}, []float32{1, 1, 1})},
		)
		set, err := DecodeBytes(raw, ".npz", nil)
		require.NoError(t, err)
		assert.Equal(t, 32, set.Precision)
		require.Equal(t, 2, set.Len())
		assert.Equal(t, Polyline{{2, 2, 2}}, set.Streamlines[0])
		assert.Equal(t, Polyline{{1, 1, 1}}, set.Streamlines[1])
	})
	t.Run("empty archive", func(t *testing.T) {
		raw, err := tracts.ReadFile("empty.npz")
		require.NoError(t, err)
		var buf bytes.Buffer
		options := &DecodeOptions{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
		set, err := DecodeBytes(raw, ".npz", options)
		require.NoError(t, err)
		require.NotNil(t, set)
		assert.Equal(t, 0, set.Len())
		assert.Contains(t, buf.String(), "no entries")
	})
	t.Run("not a zip", func(t *testing.T) {
		_, err := DecodeBytes([]byte("plain text, no archive"), ".npz", nil)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})
	t.Run("stack entry", func(t *testing.T) {
		raw := npzBytes(t,
			npzEntry{"arr_0.npy", npyBytes("<f8", false, []int{1, 3}, []float64{1, 1, 1})},
			npzEntry{"tracts.npy", npyBytes("<f8", false, []int{2, 1, 3}, []float64{1, 2, 3, 4, 5, 6})},
		)
		_, err := DecodeBytes(raw, ".npz", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		assert.Contains(t, err.Error(), `entry "tracts"`)
	})
	t.Run("bad entry format", func(t *testing.T) {
		raw := npzBytes(t, npzEntry{"arr_0.npy", npyBytes("<f8", false, []int{2, 2}, []float64{1, 2, 3, 4})})
		_, err := DecodeBytes(raw, ".npz", nil)
		assert.ErrorIs(t, err, ErrMalformedHeader)
		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, FormatNpz, de.Format)
	})
}

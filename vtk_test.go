package tractio

import (
	"bytes"
	"github.com/michielkleinnijenhuis/tractio/_test_data/tracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"log/slog"
	"strings"
	"testing"
)

const vtkHeader = "# vtk DataFile Version 3.0\ntest\nASCII\nDATASET POLYDATA\n"

func TestVtkDecoder(t *testing.T) {
	t.Run("referenced points only", func(t *testing.T) {
		raw, err := tracts.ReadFile("scenario.vtk")
		require.NoError(t, err)
		set, err := DecodeBytes(raw, ".vtk", nil)
		require.NoError(t, err)
		assert.Equal(t, FormatVTK, set.Format)
		assert.Equal(t, 32, set.Precision)
		require.Equal(t, 1, set.Len())
		assert.Equal(t, Polyline{{0, 0, 0}, {1, 0, 0}}, set.Streamlines[0])
	})
	t.Run("two lines", func(t *testing.T) {
		raw, err := tracts.ReadFile("two_lines.vtk")
		require.NoError(t, err)
		set, err := DecodeBytes(raw, ".vtk", nil)
		require.NoError(t, err)
		assert.Equal(t, 64, set.Precision)
		require.Equal(t, 2, set.Len())
		assert.Equal(t, Polyline{{0.5, 0, 0}, {1.5, 0, 0}, {2.5, 0, 0}}, set.Streamlines[0])
		assert.Equal(t, Polyline{{0, 0.5, 0}, {0, 1.5, 0}}, set.Streamlines[1])
	})
	t.Run("index order preserved", func(t *testing.T) {
		raw := vtkHeader + "POINTS 3 double\n0 0 0 1 1 1 2 2 2\nLINES 1 4\n3 2 0 1\n"
		set, err := DecodeBytes([]byte(raw), ".vtk", nil)
		require.NoError(t, err)
		assert.Equal(t, Polyline{{2, 2, 2}, {0, 0, 0}, {1, 1, 1}}, set.Streamlines[0])
	})
	t.Run("empty entry", func(t *testing.T) {
		raw := vtkHeader + "POINTS 2 float\n0 0 0 1 1 1\nLINES 2 4\n0\n2 0 1\n"
		set, err := DecodeBytes([]byte(raw), ".vtk", nil)
		require.NoError(t, err)
		require.Equal(t, 2, set.Len())
		assert.Empty(t, set.Streamlines[0])
		assert.Len(t, set.Streamlines[1], 2)
	})
	t.Run("points span lines", func(t *testing.T) {
		raw := vtkHeader + "POINTS 2 float\n0 0 0\n1 1 1\nLINES 1 3\n\n2 0 1\n"
		set, err := DecodeBytes([]byte(raw), ".vtk", nil)
		require.NoError(t, err)
		assert.Equal(t, Polyline{{0, 0, 0}, {1, 1, 1}}, set.Streamlines[0])
	})
	t.Run("entries span lines", func(t *testing.T) {
		raw := vtkHeader + "POINTS 2 float\n0 0 0\n1 1 1\nLINES 1 3\n2\n0\n1\n"
		_, err := DecodeBytes([]byte(raw), ".vtk", nil)
		require.ErrorIs(t, err, ErrMalformedRecord)
		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "line 9", de.Construct)
	})
	t.Run("entry count disagrees with indices", func(t *testing.T) {
		raw := vtkHeader + "POINTS 3 float\n0 0 0 1 0 0 2 0 0\nLINES 2 7\n3 0 1\n2 1 2\n"
		set, err := DecodeBytes([]byte(raw), ".vtk", nil)
		assert.Nil(t, set)
		require.ErrorIs(t, err, ErrMalformedRecord)
		var de *DecodeError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "line 8", de.Construct)
		assert.Contains(t, err.Error(), "declares 3 vertices but lists 2")
	})
	t.Run("section cut short by keyword", func(t *testing.T) {
		raw := vtkHeader + "POINTS 3 float\n0 0 0\n1 0 0\nLINES 1 3\n2 0 1\n"
		_, err := DecodeBytes([]byte(raw), ".vtk", nil)
		require.ErrorIs(t, err, ErrTruncatedInput)
		assert.Contains(t, err.Error(), "after 2 of 3 points")

		raw = vtkHeader + "POINTS 2 float\n0 0 0 1 1 1\nLINES 2 6\n2 0 1\nPOINT_DATA 2\n"
		_, err = DecodeBytes([]byte(raw), ".vtk", nil)
		require.ErrorIs(t, err, ErrTruncatedInput)
		assert.Contains(t, err.Error(), "after 1 of 2 lines")
	})
	t.Run("trailing sections skipped", func(t *testing.T) {
		raw := vtkHeader + "POINTS 2 float\n0 0 0 1 1 1\nLINES 1 3\n2 0 1\n" +
			"POINT_DATA 2\nSCALARS fa float 1\nLOOKUP_TABLE default\n0.5 0.6\n"
		set, err := DecodeBytes([]byte(raw), ".vtk", nil)
		require.NoError(t, err)
		assert.Equal(t, 1, set.Len())
	})
	t.Run("crlf line endings", func(t *testing.T) {
		raw := strings.ReplaceAll(vtkHeader+"POINTS 2 float\n0 0 0 1 1 1\nLINES 1 3\n2 0 1\n", "\n", "\r\n")
		set, err := DecodeBytes([]byte(raw), ".vtk", nil)
		require.NoError(t, err)
		assert.Equal(t, 1, set.Len())
	})
	t.Run("size mismatch warns", func(t *testing.T) {
		var buf bytes.Buffer
		options := &DecodeOptions{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
		raw := vtkHeader + "POINTS 2 float\n0 0 0 1 1 1\nLINES 1 7\n2 0 1\n"
		set, err := DecodeBytes([]byte(raw), ".vtk", options)
		require.NoError(t, err)
		assert.Equal(t, 1, set.Len())
		assert.Contains(t, buf.String(), "LINES size")
	})
}

func TestVtkDecoder_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		raw    string
		expect error
	}{
		{
			name:   "binary",
			raw:    "# vtk DataFile Version 3.0\ntest\nBINARY\n",
			expect: ErrUnsupportedFormat,
		},
		{
			name:   "not polydata",
			raw:    "# vtk DataFile Version 3.0\ntest\nASCII\nDATASET UNSTRUCTURED_GRID\n",
			expect: ErrUnsupportedFormat,
		},
		{
			name:   "no points",
			raw:    vtkHeader + "LINES 1 3\n2 0 1\n",
			expect: ErrMalformedHeader,
		},
		{
			name:   "no lines",
			raw:    vtkHeader + "POINTS 2 float\n0 0 0 1 1 1\n",
			expect: ErrMalformedHeader,
		},
		{
			name:   "bad points count",
			raw:    vtkHeader + "POINTS x float\n",
			expect: ErrMalformedHeader,
		},
		{
			name:   "duplicate points",
			raw:    vtkHeader + "POINTS 1 float\n0 0 0\nPOINTS 1 float\n0 0 0\n",
			expect: ErrMalformedHeader,
		},
		{
			name:   "truncated points",
			raw:    vtkHeader + "POINTS 3 float\n0 0 0 1 1 1\n",
			expect: ErrTruncatedInput,
		},
		{
			name:   "truncated lines",
			raw:    vtkHeader + "POINTS 2 float\n0 0 0 1 1 1\nLINES 2 6\n2 0 1\n",
			expect: ErrTruncatedInput,
		},
		{
			name:   "points followed by lines keyword",
			raw:    vtkHeader + "POINTS 3 float\n0 0 0 1 1 1\nLINES 1 3\n2 0 1\n",
			expect: ErrTruncatedInput,
		},
		{
			name:   "lines followed by point data",
			raw:    vtkHeader + "POINTS 2 float\n0 0 0 1 1 1\nLINES 2 6\n2 0 1\nPOINT_DATA 2\n",
			expect: ErrTruncatedInput,
		},
		{
			name:   "entry too long",
			raw:    vtkHeader + "POINTS 2 float\n0 0 0 1 1 1\nLINES 1 3\n1 0 1\n",
			expect: ErrMalformedRecord,
		},
		{
			name:   "bad coordinate",
			raw:    vtkHeader + "POINTS 1 float\n0 zero 0\nLINES 0 0\n",
			expect: ErrMalformedRecord,
		},
		{
			name:   "index out of range",
			raw:    vtkHeader + "POINTS 2 float\n0 0 0 1 1 1\nLINES 1 3\n2 0 2\n",
			expect: ErrMalformedRecord,
		},
		{
			name:   "lines before points out of range",
			raw:    vtkHeader + "LINES 1 3\n2 0 5\nPOINTS 2 float\n0 0 0 1 1 1\n",
			expect: ErrMalformedRecord,
		},
		{
			name:   "fractional index",
			raw:    vtkHeader + "POINTS 2 float\n0 0 0 1 1 1\nLINES 1 3\n2 0 0.5\n",
			expect: ErrMalformedRecord,
		},
		{
			name:   "vtk5 offsets",
			raw:    vtkHeader + "POINTS 2 float\n0 0 0 1 1 1\nLINES 2 2\nOFFSETS vtktypeint64\n0 2\n",
			expect: ErrUnsupportedFormat,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeBytes([]byte(tc.raw), ".vtk", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.expect)
		})
	}
}

func TestVtkParser_States(t *testing.T) {
	p := newVtkParser(1024, nil)
	assert.Equal(t, vtkScanning, p.state)
	require.NoError(t, p.handle(strings.Fields("POINTS 2 float")))
	assert.Equal(t, vtkReadingPoints, p.state)
	require.NoError(t, p.handle(strings.Fields("0 0 0")))
	assert.Equal(t, vtkReadingPoints, p.state)
	require.NoError(t, p.handle(strings.Fields("1 1 1")))
	assert.Equal(t, vtkScanning, p.state)
	require.NoError(t, p.handle(strings.Fields("LINES 1 3")))
	assert.Equal(t, vtkReadingLines, p.state)
	require.NoError(t, p.handle(nil))
	assert.Equal(t, vtkReadingLines, p.state)
	require.NoError(t, p.handle(strings.Fields("2 0 1")))
	assert.Equal(t, vtkScanning, p.state)
	assert.Equal(t, "scanning", vtkScanning.String())
	assert.Equal(t, "POINTS", vtkReadingPoints.String())
	assert.Equal(t, "LINES", vtkReadingLines.String())

	set, err := p.finish()
	require.NoError(t, err)
	assert.Equal(t, Polyline{{0, 0, 0}, {1, 1, 1}}, set.Streamlines[0])
}

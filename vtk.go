package tractio

import (
	"bytes"
	"strconv"
	"strings"
)

type vtkState int

const (
	vtkScanning vtkState = iota
	vtkReadingPoints
	vtkReadingLines
)

func (s vtkState) String() string {
	switch s {
	case vtkReadingPoints:
		return "POINTS"
	case vtkReadingLines:
		return "LINES"
	default:
		return "scanning"
	}
}

// vtkParser scans an ASCII legacy VTK polydata file, building the point table (flat xyz values)
// and the index table (one index list per polyline)
type vtkParser struct {
	options   *DecodeOptions
	limit     int // input size, bounds allocations sized from declared counts
	state     vtkState
	line      int
	npoints   int // declared POINTS count, -1 until seen
	precision int
	points    []float64
	nlines    int // declared LINES count, -1 until seen
	linesSize int64
	lines     [][]int
}

func newVtkParser(size int, options *DecodeOptions) *vtkParser {
	return &vtkParser{
		options: options,
		limit:   size,
		npoints: -1,
		nlines:  -1,
	}
}

func vtkDecoder(raw []byte, options *DecodeOptions) (*StreamlineSet, error) {
	p := newVtkParser(len(raw), options)
	for len(raw) > 0 {
		var line []byte
		if i := bytes.IndexByte(raw, '\n'); i >= 0 {
			line, raw = raw[:i], raw[i+1:]
		} else {
			line, raw = raw, nil
		}
		p.line++
		if err := p.handle(strings.Fields(string(line))); err != nil {
			return nil, err
		}
	}
	return p.finish()
}

func (p *vtkParser) handle(tokens []string) error {
	switch p.state {
	case vtkReadingPoints:
		return p.readPoints(tokens)
	case vtkReadingLines:
		return p.readLines(tokens)
	default:
		return p.scan(tokens)
	}
}

func (p *vtkParser) fail(kind error, msg string, args ...any) error {
	return decodeError(FormatVTK, kind, lineConstruct(p.line), msg, args...)
}

func (p *vtkParser) scan(tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	switch tokens[0] {
	case "BINARY":
		return p.fail(ErrUnsupportedFormat, "binary VTK files are not supported")
	case "DATASET":
		if len(tokens) < 2 || tokens[1] != "POLYDATA" {
			return p.fail(ErrUnsupportedFormat, "dataset %q is not POLYDATA", strings.Join(tokens[1:], " "))
		}
	case "POINTS":
		if p.npoints >= 0 {
			return p.fail(ErrMalformedHeader, "duplicate POINTS section")
		}
		n, err := p.declaredCount(tokens)
		if err != nil {
			return err
		}
		p.npoints = n
		p.precision = 64
		if len(tokens) > 2 && tokens[2] == "float" {
			p.precision = 32
		}
		p.points = make([]float64, 0, min(n*3, p.limit/2))
		if n > 0 {
			p.state = vtkReadingPoints
		}
	case "LINES":
		if p.nlines >= 0 {
			return p.fail(ErrMalformedHeader, "duplicate LINES section")
		}
		n, err := p.declaredCount(tokens)
		if err != nil {
			return err
		}
		p.nlines = n
		p.linesSize = -1
		if len(tokens) > 2 {
			if size, err := strconv.ParseInt(tokens[2], 10, 64); err == nil {
				p.linesSize = size
			}
		}
		p.lines = make([][]int, 0, min(n, p.limit/2))
		if n > 0 {
			p.state = vtkReadingLines
		}
	}
	// anything else (header, POINT_DATA, SCALARS, COLOR_SCALARS, LOOKUP_TABLE & their data) is skipped
	return nil
}

func (p *vtkParser) declaredCount(tokens []string) (int, error) {
	if len(tokens) < 2 {
		return 0, p.fail(ErrMalformedHeader, "%s has no count", tokens[0])
	}
	n, err := strconv.Atoi(tokens[1])
	if err != nil || n < 0 {
		return 0, p.fail(ErrMalformedHeader, "%s count %q is not a non-negative integer", tokens[0], tokens[1])
	}
	return n, nil
}

// vtkKeywords start a new section or attribute block; met inside POINTS or LINES they mean the
// section ended before its declared count
var vtkKeywords = map[string]bool{
	"DATASET": true, "POINTS": true, "VERTICES": true, "LINES": true, "POLYGONS": true,
	"TRIANGLE_STRIPS": true, "POINT_DATA": true, "CELL_DATA": true, "SCALARS": true,
	"COLOR_SCALARS": true, "LOOKUP_TABLE": true, "VECTORS": true, "NORMALS": true,
	"TEXTURE_COORDINATES": true, "TENSORS": true, "FIELD": true, "METADATA": true,
}

func (p *vtkParser) readPoints(tokens []string) error {
	if len(tokens) > 0 && vtkKeywords[tokens[0]] {
		return p.fail(ErrTruncatedInput, "%s section ends at %s after %d of %d points", p.state, tokens[0], len(p.points)/3, p.npoints)
	}
	for i, token := range tokens {
		if len(p.points) == p.npoints*3 {
			return p.fail(ErrMalformedRecord, "unexpected token %q after %d points", strings.Join(tokens[i:], " "), p.npoints)
		}
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return p.fail(ErrMalformedRecord, "invalid point coordinate %q", token)
		}
		p.points = append(p.points, v)
	}
	if len(p.points) == p.npoints*3 {
		p.state = vtkScanning
	}
	return nil
}

// readLines takes one polyline entry per non-blank line: a vertex count followed by exactly that many indices
func (p *vtkParser) readLines(tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	if tokens[0] == "OFFSETS" || tokens[0] == "CONNECTIVITY" {
		return p.fail(ErrUnsupportedFormat, "VTK 5 OFFSETS/CONNECTIVITY layout is not supported")
	}
	if vtkKeywords[tokens[0]] {
		return p.fail(ErrTruncatedInput, "%s section ends at %s after %d of %d lines", p.state, tokens[0], len(p.lines), p.nlines)
	}
	count, err := strconv.ParseInt(tokens[0], 10, 64)
	if err != nil {
		return p.fail(ErrMalformedRecord, "invalid integer %q in LINES entry %d", tokens[0], len(p.lines))
	}
	if count < 0 {
		return p.fail(ErrMalformedRecord, "invalid vertex count %d in LINES entry %d", count, len(p.lines))
	}
	if count != int64(len(tokens)-1) {
		return p.fail(ErrMalformedRecord, "LINES entry %d declares %d vertices but lists %d", len(p.lines), count, len(tokens)-1)
	}
	entry := make([]int, 0, count)
	for _, token := range tokens[1:] {
		v, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return p.fail(ErrMalformedRecord, "invalid integer %q in LINES entry %d", token, len(p.lines))
		}
		if v < 0 || (p.npoints >= 0 && v >= int64(p.npoints)) {
			return p.fail(ErrMalformedRecord, "point index %d out of range in LINES entry %d", v, len(p.lines))
		}
		entry = append(entry, int(v))
	}
	p.lines = append(p.lines, entry)
	if len(p.lines) == p.nlines {
		p.state = vtkScanning
	}
	return nil
}

func (p *vtkParser) finish() (*StreamlineSet, error) {
	switch p.state {
	case vtkReadingPoints:
		return nil, p.fail(ErrTruncatedInput, "end of file in %s section after %d of %d points", p.state, len(p.points)/3, p.npoints)
	case vtkReadingLines:
		return nil, p.fail(ErrTruncatedInput, "end of file in %s section after %d of %d lines", p.state, len(p.lines), p.nlines)
	}
	if p.npoints < 0 {
		return nil, decodeError(FormatVTK, ErrMalformedHeader, "POINTS", "no POINTS section found")
	}
	if p.nlines < 0 {
		return nil, decodeError(FormatVTK, ErrMalformedHeader, "LINES", "no LINES section found")
	}
	if p.linesSize >= 0 {
		size := int64(len(p.lines))
		for _, entry := range p.lines {
			size += int64(len(entry))
		}
		if size != p.linesSize {
			p.options.logger().Warn("vtk LINES size does not match entries",
				"declared", p.linesSize, "actual", size)
		}
	}
	return p.expand()
}

// expand gathers the referenced points for each index list (preserving index order)
func (p *vtkParser) expand() (*StreamlineSet, error) {
	table := triplets(p.points)
	total := 0
	for _, entry := range p.lines {
		total += len(entry)
	}
	arena := make([]Point3D, total)
	result := &StreamlineSet{
		Format:      FormatVTK,
		Precision:   p.precision,
		Streamlines: make([]Polyline, len(p.lines)),
	}
	used := 0
	for i, entry := range p.lines {
		sl := arena[used : used+len(entry) : used+len(entry)]
		for j, idx := range entry {
			if idx >= len(table) {
				return nil, decodeError(FormatVTK, ErrMalformedRecord, "LINES entry "+strconv.Itoa(i),
					"point index %d out of range (%d points)", idx, len(table))
			}
			sl[j] = table[idx]
		}
		result.Streamlines[i] = sl
		used += len(entry)
	}
	return result, nil
}

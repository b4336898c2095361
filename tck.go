package tractio

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

// TckHeader represents the parsed ASCII header of an MRtrix .tck file
type TckHeader struct {
	// Magic is the first header line (normally "mrtrix tracks")
	Magic string
	// Fields holds every key: value pair (repeated keys are joined with "\n")
	Fields map[string]string
	// Datatype is the 'datatype' key, e.g. "Float32LE"
	Datatype string
	// Offset is the byte offset of the binary payload (third token of the 'file: . <offset>' line)
	Offset int64
	// Count is the 'count' key (-1 if absent)
	Count int
	// Size is the number of header bytes (up to and including the END line)
	Size int
}

// ByteOrder returns the byte order encoded in the datatype
func (h *TckHeader) ByteOrder() (binary.ByteOrder, error) {
	switch h.Datatype {
	case "Float32LE":
		return binary.LittleEndian, nil
	case "Float32BE":
		return binary.BigEndian, nil
	}
	return nil, decodeError(FormatTck, ErrUnsupportedDatatype, "header key 'datatype'",
		"datatype %q is not supported (only Float32LE and Float32BE)", h.Datatype)
}

// ParseTckHeader parses the header of an MRtrix .tck file
func ParseTckHeader(raw []byte) (*TckHeader, error) {
	hdr := &TckHeader{
		Fields: make(map[string]string),
		Offset: -1,
		Count:  -1,
	}
	found := false
	hasDatatype := false
	pos := 0
	for lineNo := 1; pos < len(raw) && !found; lineNo++ {
		end := bytes.IndexByte(raw[pos:], '\n')
		var line string
		if end < 0 {
			line = string(raw[pos:])
			pos = len(raw)
		} else {
			line = string(raw[pos : pos+end])
			pos += end + 1
		}
		line = strings.TrimRight(line, "\r")
		if line == "END" {
			found = true
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			if lineNo == 1 {
				hdr.Magic = line
			}
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if existing, ok := hdr.Fields[key]; ok {
			hdr.Fields[key] = existing + "\n" + value
		} else {
			hdr.Fields[key] = value
		}
		switch key {
		case "datatype":
			hdr.Datatype = value
			hasDatatype = true
		case "file":
			tokens := strings.Fields(value)
			if len(tokens) < 2 {
				return nil, decodeError(FormatTck, ErrMalformedHeader, lineConstruct(lineNo),
					"'file' entry %q has no byte offset", value)
			}
			offset, err := strconv.ParseInt(tokens[1], 10, 64)
			if err != nil || offset < 0 {
				return nil, decodeError(FormatTck, ErrMalformedHeader, lineConstruct(lineNo),
					"'file' offset %q is not a non-negative integer", tokens[1])
			}
			hdr.Offset = offset
		case "count":
			count, err := strconv.Atoi(value)
			if err != nil || count < 0 {
				return nil, decodeError(FormatTck, ErrMalformedHeader, lineConstruct(lineNo),
					"'count' %q is not a non-negative integer", value)
			}
			hdr.Count = count
		}
	}
	if !found {
		return nil, decodeError(FormatTck, ErrMalformedHeader, "header", "END marker not found")
	}
	hdr.Size = pos
	if !hasDatatype {
		return nil, decodeError(FormatTck, ErrMalformedHeader, "header key 'datatype'", "missing")
	}
	if hdr.Offset < 0 {
		return nil, decodeError(FormatTck, ErrMalformedHeader, "header key 'file'", "missing")
	}
	return hdr, nil
}

func tckDecoder(raw []byte, options *DecodeOptions) (*StreamlineSet, error) {
	hdr, err := ParseTckHeader(raw)
	if err != nil {
		return nil, err
	}
	order, err := hdr.ByteOrder()
	if err != nil {
		return nil, err
	}
	if hdr.Offset < int64(hdr.Size) {
		return nil, decodeError(FormatTck, ErrMalformedHeader, "header key 'file'",
			"payload offset %d is inside the header (%d bytes)", hdr.Offset, hdr.Size)
	}
	if hdr.Offset > int64(len(raw)) {
		return nil, decodeError(FormatTck, ErrTruncatedInput, "header key 'file'",
			"payload offset %d is past the end of the file (%d bytes)", hdr.Offset, len(raw))
	}
	streamlines, err := splitTckPayload(raw[hdr.Offset:], order)
	if err != nil {
		return nil, err
	}
	if hdr.Count >= 0 && hdr.Count != len(streamlines) {
		if options != nil && options.TckRequireCount {
			return nil, decodeError(FormatTck, ErrTruncatedInput, "header key 'count'",
				"header declares %d streamlines, payload holds %d", hdr.Count, len(streamlines))
		}
		options.logger().Warn("tck streamline count does not match header",
			"declared", hdr.Count, "decoded", len(streamlines))
	}
	return &StreamlineSet{
		Format:      FormatTck,
		Precision:   32,
		Streamlines: streamlines,
	}, nil
}

type tckTriplet int

const (
	tckPoint tckTriplet = iota
	tckBoundary
	tckTerminator
	tckInvalid
)

func classifyTckTriplet(x, y, z float32) tckTriplet {
	switch {
	case math32.IsNaN(x) && math32.IsNaN(y) && math32.IsNaN(z):
		return tckBoundary
	case math32.IsInf(x, 1) && math32.IsInf(y, 1) && math32.IsInf(z, 1):
		return tckTerminator
	case math32.IsNaN(x) || math32.IsNaN(y) || math32.IsNaN(z),
		math32.IsInf(x, 0) || math32.IsInf(y, 0) || math32.IsInf(z, 0):
		return tckInvalid
	}
	return tckPoint
}

// splitTckPayload splits the float32 triplet stream into streamlines
//
// an all-NaN triplet ends the current streamline, an all-+Inf triplet ends the data
func splitTckPayload(payload []byte, order binary.ByteOrder) ([]Polyline, error) {
	const tripletSize = 12
	points := make([]Point3D, 0, len(payload)/tripletSize)
	result := make([]Polyline, 0)
	start := 0
	for offset := 0; ; offset += tripletSize {
		if offset+tripletSize > len(payload) {
			return nil, decodeError(FormatTck, ErrTruncatedInput, "payload",
				"no end-of-data triplet after %d bytes", len(payload))
		}
		x := math.Float32frombits(order.Uint32(payload[offset : offset+4]))
		y := math.Float32frombits(order.Uint32(payload[offset+4 : offset+8]))
		z := math.Float32frombits(order.Uint32(payload[offset+8 : offset+12]))
		switch classifyTckTriplet(x, y, z) {
		case tckBoundary:
			result = append(result, points[start:len(points):len(points)])
			start = len(points)
		case tckTerminator:
			if len(points) > start {
				result = append(result, points[start:len(points):len(points)])
			}
			return result, nil
		case tckInvalid:
			return nil, decodeError(FormatTck, ErrMalformedRecord, "payload triplet "+strconv.Itoa(offset/tripletSize),
				"partial NaN/Inf triplet (%v, %v, %v)", x, y, z)
		default:
			points = append(points, Point3D{float64(x), float64(y), float64(z)})
		}
	}
}

package tractio

import (
	"encoding/binary"
	"math"
)

type caminoType struct {
	order binary.ByteOrder
	width int
}

var (
	caminoFloat32BE = caminoType{order: binary.BigEndian, width: 4}
	caminoFloat32LE = caminoType{order: binary.LittleEndian, width: 4}
	caminoFloat64BE = caminoType{order: binary.BigEndian, width: 8}
	caminoFloat64LE = caminoType{order: binary.LittleEndian, width: 8}
)

func (ct caminoType) values(raw []byte) []float64 {
	if ct.width == 4 {
		return widen(readFloat32s(raw, ct.order))
	}
	return readFloat64s(raw, ct.order)
}

// caminoDecoder returns a decoder for Camino streamline files of the given element type
//
// a Camino file is a flat concatenation of records:
//
//	[npoints, seed, x1, y1, z1, ... xN, yN, zN]
func caminoDecoder(ct caminoType) Decoder {
	return func(raw []byte, _ *DecodeOptions) (*StreamlineSet, error) {
		if len(raw)%ct.width != 0 {
			return nil, decodeError(FormatCamino, ErrTruncatedInput, "file length",
				"%d bytes is not a multiple of the %d byte element width", len(raw), ct.width)
		}
		values := ct.values(raw)
		// first pass validates the record framing and sizes the point arena...
		counts := make([]int, 0)
		total := 0
		for offset := 0; offset < len(values); {
			npoints, err := caminoRecordLength(values, offset, len(counts))
			if err != nil {
				return nil, err
			}
			counts = append(counts, npoints)
			total += npoints
			offset += 2 + npoints*3
		}
		// second pass slices the streamlines out of a single allocation...
		arena := make([]Point3D, total)
		result := &StreamlineSet{
			Format:      FormatCamino,
			Precision:   ct.width * 8,
			Streamlines: make([]Polyline, len(counts)),
		}
		offset, used := 0, 0
		for i, npoints := range counts {
			body := values[offset+2 : offset+2+npoints*3]
			sl := arena[used : used+npoints : used+npoints]
			for j := range sl {
				sl[j] = Point3D{body[j*3], body[j*3+1], body[j*3+2]}
			}
			result.Streamlines[i] = sl
			used += npoints
			offset += 2 + npoints*3
		}
		return result, nil
	}
}

func caminoRecordLength(values []float64, offset int, record int) (int, error) {
	construct := recordConstruct(record, offset)
	if offset+2 > len(values) {
		return 0, decodeError(FormatCamino, ErrTruncatedInput, construct,
			"record header needs 2 values, only %d remaining", len(values)-offset)
	}
	n := values[offset]
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 || n != math.Trunc(n) {
		return 0, decodeError(FormatCamino, ErrMalformedRecord, construct,
			"streamline length %v is not a non-negative integer", n)
	}
	remaining := len(values) - offset - 2
	if n > float64(remaining/3) {
		return 0, decodeError(FormatCamino, ErrTruncatedInput, construct,
			"streamline length %d needs %d values, only %d remaining", int64(n), int64(n)*3, remaining)
	}
	return int(n), nil
}

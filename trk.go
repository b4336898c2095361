package tractio

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

const trkHeaderSize = 1000

// TrkHeader represents the parsed TrackVis .trk header (1000 bytes)
type TrkHeader struct {
	ID               string
	Dim              [3]int16
	VoxelSize        [3]float32
	Origin           [3]float32
	NScalars         int
	ScalarNames      []string
	NProperties      int
	PropertyNames    []string
	VoxToRAS         [4][4]float32
	VoxelOrder       string
	ImageOrientation [6]float32
	Invert           [3]bool
	Swap             [3]bool
	// Count is the number of tracks (0 means not stored - read to the end of the file)
	Count   int
	Version int
	// ByteOrder is the byte order of the header & track data (detected from the header size field)
	ByteOrder binary.ByteOrder
}

// ParseTrkHeader parses a TrackVis .trk header
func ParseTrkHeader(raw []byte) (*TrkHeader, error) {
	if len(raw) < trkHeaderSize {
		return nil, decodeError(FormatTrk, ErrTruncatedInput, "header",
			"header needs %d bytes, got %d", trkHeaderSize, len(raw))
	}
	buf := raw[:trkHeaderSize]
	id := stringed(buf[0:6])
	if id != "TRACK" {
		return nil, decodeError(FormatTrk, ErrMalformedHeader, "header", "missing 'TRACK' signature")
	}
	var bo binary.ByteOrder
	switch {
	case binary.LittleEndian.Uint32(buf[996:1000]) == trkHeaderSize:
		bo = binary.LittleEndian
	case binary.BigEndian.Uint32(buf[996:1000]) == trkHeaderSize:
		bo = binary.BigEndian
	default:
		return nil, decodeError(FormatTrk, ErrMalformedHeader, "header", "header size field is not %d", trkHeaderSize)
	}
	f32 := func(at int) float32 {
		return math.Float32frombits(bo.Uint32(buf[at : at+4]))
	}
	hdr := &TrkHeader{
		ID:          id,
		NScalars:    int(int16(bo.Uint16(buf[36:38]))),
		NProperties: int(int16(bo.Uint16(buf[238:240]))),
		VoxelOrder:  stringed(buf[948:952]),
		Count:       int(int32(bo.Uint32(buf[988:992]))),
		Version:     int(int32(bo.Uint32(buf[992:996]))),
		ByteOrder:   bo,
	}
	for i := 0; i < 3; i++ {
		hdr.Dim[i] = int16(bo.Uint16(buf[6+i*2 : 8+i*2]))
		hdr.VoxelSize[i] = f32(12 + i*4)
		hdr.Origin[i] = f32(24 + i*4)
		hdr.Invert[i] = buf[982+i] != 0
		hdr.Swap[i] = buf[985+i] != 0
	}
	for i := 0; i < 16; i++ {
		hdr.VoxToRAS[i/4][i%4] = f32(440 + i*4)
	}
	for i := 0; i < 6; i++ {
		hdr.ImageOrientation[i] = f32(956 + i*4)
	}
	if hdr.NScalars < 0 || hdr.NScalars > 10 {
		return nil, decodeError(FormatTrk, ErrMalformedHeader, "header field 'n_scalars'", "invalid value %d", hdr.NScalars)
	}
	if hdr.NProperties < 0 || hdr.NProperties > 10 {
		return nil, decodeError(FormatTrk, ErrMalformedHeader, "header field 'n_properties'", "invalid value %d", hdr.NProperties)
	}
	if hdr.Count < 0 {
		return nil, decodeError(FormatTrk, ErrMalformedHeader, "header field 'n_count'", "invalid value %d", hdr.Count)
	}
	hdr.ScalarNames = trkNames(buf[38:238], hdr.NScalars)
	hdr.PropertyNames = trkNames(buf[240:440], hdr.NProperties)
	return hdr, nil
}

func trkNames(raw []byte, n int) []string {
	result := make([]string, 0, n)
	for i := 0; i < n; i++ {
		result = append(result, stringed(raw[i*20:(i+1)*20]))
	}
	return result
}

// trkDecoder decodes a TrackVis .trk file - each track is:
//
//	[m int32, m * (x, y, z, scalars...) float32, properties... float32]
func trkDecoder(raw []byte, options *DecodeOptions) (*StreamlineSet, error) {
	hdr, err := ParseTrkHeader(raw)
	if err != nil {
		return nil, err
	}
	body := raw[trkHeaderSize:]
	pointWidth := (3 + hdr.NScalars) * 4
	propsWidth := hdr.NProperties * 4
	result := &StreamlineSet{
		Format:      FormatTrk,
		Precision:   32,
		Streamlines: make([]Polyline, 0, min(hdr.Count, len(body)/4)),
	}
	offset := 0
	for i := 0; hdr.Count == 0 || i < hdr.Count; i++ {
		if hdr.Count == 0 && offset == len(body) {
			break
		}
		construct := "track " + strconv.Itoa(i)
		if offset+4 > len(body) {
			return nil, decodeError(FormatTrk, ErrTruncatedInput, construct,
				"missing point count at byte %d", trkHeaderSize+offset)
		}
		m := int(int32(hdr.ByteOrder.Uint32(body[offset : offset+4])))
		offset += 4
		if m < 0 {
			return nil, decodeError(FormatTrk, ErrMalformedRecord, construct, "negative point count %d", m)
		}
		if m > (len(body)-offset)/pointWidth || offset+m*pointWidth+propsWidth > len(body) {
			return nil, decodeError(FormatTrk, ErrTruncatedInput, construct,
				"%d points need %d bytes, only %d remaining", m, m*pointWidth+propsWidth, len(body)-offset)
		}
		sl := make(Polyline, m)
		for j := range sl {
			at := offset + j*pointWidth
			for k := 0; k < 3; k++ {
				v := math.Float32frombits(hdr.ByteOrder.Uint32(body[at+k*4 : at+k*4+4]))
				if math32.IsNaN(v) || math32.IsInf(v, 0) {
					return nil, decodeError(FormatTrk, ErrMalformedRecord, construct,
						"point %d has a non-finite coordinate", j)
				}
				sl[j][k] = float64(v)
			}
		}
		offset += m*pointWidth + propsWidth
		result.Streamlines = append(result.Streamlines, sl)
	}
	if offset < len(body) {
		options.logger().Warn("trk file has trailing data after the declared tracks",
			"tracks", hdr.Count, "bytes", len(body)-offset)
	}
	return result, nil
}

func stringed(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return strings.TrimRight(string(data), " ")
}

package tractio

import (
	"encoding/binary"
	"math"

	"github.com/minio/highwayhash"
)

// Point3D is a single streamline vertex (x, y, z)
//
// float32 sources are widened to float64 without loss
type Point3D [3]float64

func (p Point3D) X() float64 { return p[0] }
func (p Point3D) Y() float64 { return p[1] }
func (p Point3D) Z() float64 { return p[2] }

// Polyline is an ordered sequence of points - a single streamline
//
// an empty Polyline is a valid decode result
type Polyline []Point3D

// StreamlineSet represents all the streamlines decoded from one tract file
type StreamlineSet struct {
	// Format is the format the set was decoded from
	Format Format
	// Precision is the element width (in bits) of the source coordinates - 32 or 64
	Precision int
	// Streamlines in the order they appear in the source file
	Streamlines []Polyline
}

// Len returns the number of streamlines in the set
func (s *StreamlineSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Streamlines)
}

// NumPoints returns the total number of points across all streamlines
func (s *StreamlineSet) NumPoints() (n int) {
	if s == nil {
		return 0
	}
	for _, sl := range s.Streamlines {
		n += len(sl)
	}
	return n
}

// Bounds returns the axis aligned bounding box of all points
//
// ok is false when the set holds no points
func (s *StreamlineSet) Bounds() (min, max Point3D, ok bool) {
	if s == nil {
		return min, max, false
	}
	for _, sl := range s.Streamlines {
		for _, p := range sl {
			if !ok {
				min, max, ok = p, p, true
				continue
			}
			for i := 0; i < 3; i++ {
				min[i] = math.Min(min[i], p[i])
				max[i] = math.Max(max[i], p[i])
			}
		}
	}
	return min, max, ok
}

var fingerprintKey = []byte("tractio-streamline-fingerprint!!")

// Fingerprint returns a 64-bit HighwayHash of the streamline geometry
//
// two sets with the same streamlines (same order, same point values) have the same fingerprint
// regardless of the format they were decoded from
func (s *StreamlineSet) Fingerprint() (uint64, error) {
	hash, err := highwayhash.New64(fingerprintKey)
	if err != nil {
		return 0, err
	}
	var buf [8]byte
	if s != nil {
		for _, sl := range s.Streamlines {
			binary.LittleEndian.PutUint64(buf[:], uint64(len(sl)))
			_, _ = hash.Write(buf[:])
			for _, p := range sl {
				for _, v := range p {
					binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
					_, _ = hash.Write(buf[:])
				}
			}
		}
	}
	return hash.Sum64(), nil
}

func (s *StreamlineSet) derive(streamlines []Polyline) *StreamlineSet {
	return &StreamlineSet{
		Format:      s.Format,
		Precision:   s.Precision,
		Streamlines: streamlines,
	}
}

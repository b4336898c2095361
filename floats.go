package tractio

import (
	"encoding/binary"
	"math"
)

// readFloat32s decodes raw (a multiple of 4 bytes) into float32 values
func readFloat32s(raw []byte, order binary.ByteOrder) []float32 {
	result := make([]float32, len(raw)/4)
	for i := range result {
		result[i] = math.Float32frombits(order.Uint32(raw[i*4 : i*4+4]))
	}
	return result
}

// readFloat64s decodes raw (a multiple of 8 bytes) into float64 values
func readFloat64s(raw []byte, order binary.ByteOrder) []float64 {
	result := make([]float64, len(raw)/8)
	for i := range result {
		result[i] = math.Float64frombits(order.Uint64(raw[i*8 : i*8+8]))
	}
	return result
}

func widen(values []float32) []float64 {
	result := make([]float64, len(values))
	for i, v := range values {
		result[i] = float64(v)
	}
	return result
}

// triplets reshapes a flat coordinate vector (length a multiple of 3) into points
//
// the returned points are a single allocation
func triplets(values []float64) Polyline {
	result := make(Polyline, len(values)/3)
	for i := range result {
		result[i] = Point3D{values[i*3], values[i*3+1], values[i*3+2]}
	}
	return result
}

package tractio

import (
	"math/rand/v2"
	"slices"
)

// Weed thins a StreamlineSet by randomly selecting int(len * fraction) streamlines
//
// the selected streamlines keep their original relative order; a fraction >= 1 keeps every streamline.
// if rnd is nil the global random source is used
func Weed(s *StreamlineSet, fraction float64, rnd *rand.Rand) *StreamlineSet {
	if s == nil {
		return nil
	}
	n := s.Len()
	if fraction >= 1 {
		return s.derive(s.Streamlines)
	}
	k := 0
	if fraction > 0 {
		k = int(float64(n) * fraction)
	}
	var perm []int
	if rnd != nil {
		perm = rnd.Perm(n)
	} else {
		perm = rand.Perm(n)
	}
	selected := perm[:k]
	slices.Sort(selected)
	streamlines := make([]Polyline, k)
	for i, idx := range selected {
		streamlines[i] = s.Streamlines[idx]
	}
	return s.derive(streamlines)
}

// Subsample keeps every int(1/factor)-th point of each streamline, starting from the second point
//
// a factor >= 1 (or <= 0) keeps all points
func Subsample(s *StreamlineSet, factor float64) *StreamlineSet {
	if s == nil {
		return nil
	}
	if factor >= 1 || factor <= 0 {
		return s.derive(s.Streamlines)
	}
	step := int(1 / factor)
	streamlines := make([]Polyline, len(s.Streamlines))
	for i, sl := range s.Streamlines {
		out := make(Polyline, 0, len(sl)/step+1)
		for j := 1; j < len(sl); j += step {
			out = append(out, sl[j])
		}
		streamlines[i] = out
	}
	return s.derive(streamlines)
}

package sonify

import (
	"fmt"
	"math"
)

// Transform names a predefined math function applied to the y series
// before synthesis.
type Transform string

const (
	TransformNone       Transform = "none"
	TransformSquare     Transform = "square"
	TransformSquareRoot Transform = "sqrt"
	TransformLog10      Transform = "log"
)

// Apply runs the named transform over the series. NaN cells pass through
// untouched; results outside the real domain (sqrt of a negative, log of
// a non-positive) become NaN and render as silence.
func Apply(t Transform, values []float64) ([]float64, error) {
	switch t {
	case TransformNone, "":
		return values, nil
	case TransformSquare:
		return mapSeries(values, func(v float64) float64 { return v * v }), nil
	case TransformSquareRoot:
		return mapSeries(values, math.Sqrt), nil
	case TransformLog10:
		return mapSeries(values, math.Log10), nil
	default:
		return nil, fmt.Errorf("unknown transform: %q", t)
	}
}

func mapSeries(values []float64, f func(float64) float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = v
			continue
		}
		r := f(v)
		if math.IsInf(r, 0) {
			r = math.NaN()
		}
		out[i] = r
	}
	return out
}

// Normalize rescales the series to [0,1] with feature scaling, skipping
// NaN cells. A constant series maps to all zeros rather than dividing by
// a zero span.
func Normalize(values []float64) []float64 {
	min := math.Inf(1)
	max := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	out := make([]float64, len(values))
	if math.IsInf(min, 1) || min == max {
		// All NaN or constant: silence the pitch variation entirely.
		for i, v := range values {
			if math.IsNaN(v) {
				out[i] = v
			}
		}
		return out
	}

	span := max - min
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = v
			continue
		}
		out[i] = (v - min) / span
	}
	return out
}

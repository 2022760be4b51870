package sanitizer

import (
	"math"

	"BCRPSentinel/internal/model"
)

// isInformative reports whether a point carries a genuine observation.
// Zero is treated as a missing-data placeholder: the upstream feed does not
// distinguish a real 0 from a gap.
func isInformative(p model.TimeSeriesPoint) bool {
	return p.IsNumber() && p.Value.Float64 != 0
}

// numbers extracts the usable (non-null, non-NaN) values of the given points.
func numbers(points []model.TimeSeriesPoint) []float64 {
	vals := make([]float64, 0, len(points))
	for _, p := range points {
		if p.IsNumber() {
			vals = append(vals, p.Value.Float64)
		}
	}
	return vals
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stddev returns the population standard deviation around m.
func stddev(vals []float64, m float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sq := 0.0
	for _, v := range vals {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(vals)))
}

func clonePoints(points []model.TimeSeriesPoint) []model.TimeSeriesPoint {
	if points == nil {
		return nil
	}
	out := make([]model.TimeSeriesPoint, len(points))
	copy(out, points)
	return out
}

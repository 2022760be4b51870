package sanitizer

import (
	"sort"

	"github.com/guregu/null/v6"

	"BCRPSentinel/internal/model"
)

// DefaultWindow is the rolling window used when callers pass no explicit size.
const DefaultWindow = 3

// Smooth replaces each value with the mean of the usable values in a centered
// window of the given size. Windows are clamped at the series edges, so the
// first and last points average over fewer neighbours.
// Points are sorted by period first; a window <= 1 returns the input unchanged.
func Smooth(points []model.TimeSeriesPoint, window int) []model.TimeSeriesPoint {
	if len(points) == 0 || window <= 1 {
		return points
	}

	sorted := sortByPeriod(points)
	half := window / 2
	out := make([]model.TimeSeriesPoint, len(sorted))

	for i, p := range sorted {
		start := i - half
		if start < 0 {
			start = 0
		}
		end := i + half + 1
		if end > len(sorted) {
			end = len(sorted)
		}

		vals := numbers(sorted[start:end])
		out[i] = p
		if len(vals) == 0 {
			continue
		}
		out[i].Value = null.FloatFrom(mean(vals))
	}
	return out
}

// sortByPeriod returns a copy ordered ascending by period. When any label
// cannot be parsed the original order is kept.
func sortByPeriod(points []model.TimeSeriesPoint) []model.TimeSeriesPoint {
	out := clonePoints(points)
	keys := make([]int64, len(out))
	for i, p := range out {
		t, ok := model.ParsePeriod(p.Date)
		if !ok {
			return out
		}
		keys[i] = t.Unix()
	}

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })

	sorted := make([]model.TimeSeriesPoint, len(out))
	for i, j := range idx {
		sorted[i] = out[j]
	}
	return sorted
}

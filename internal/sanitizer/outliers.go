package sanitizer

import (
	"log"

	"github.com/guregu/null/v6"

	"BCRPSentinel/internal/model"
)

// DefaultThreshold is the outlier band width in standard deviations.
const DefaultThreshold = 3.0

// minOutlierSample is the fewest usable values needed to estimate spread.
const minOutlierSample = 3

// ClampOutliers replaces values lying more than threshold·σ away from the mean
// of the other usable values. σ is the population standard deviation of all
// usable values. A flagged point takes the mean of the other values.
//
// Centering on the leave-one-out mean lets a single spike be detected in short
// series: with the spike included, its z-score can never exceed (n-1)/√n.
// Series with fewer than three usable values are returned unchanged.
func ClampOutliers(points []model.TimeSeriesPoint, threshold float64) []model.TimeSeriesPoint {
	vals := numbers(points)
	n := len(vals)
	if n < minOutlierSample {
		return points
	}

	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	m := sum / float64(n)
	sd := stddev(vals, m)
	band := threshold * sd

	clamped := 0
	out := clonePoints(points)
	for i, p := range out {
		if !p.IsNumber() {
			continue
		}
		v := p.Value.Float64
		others := (sum - v) / float64(n-1)
		if v < others-band || v > others+band {
			out[i].Value = null.FloatFrom(others)
			clamped++
		}
	}
	if clamped > 0 {
		log.Printf("[INFO] sanitizer: clamped %d outliers (mean=%.4f, sd=%.4f, k=%.1f)", clamped, m, sd, threshold)
	}
	return out
}

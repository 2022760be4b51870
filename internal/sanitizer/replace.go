package sanitizer

import (
	"log"

	"github.com/guregu/null/v6"

	"BCRPSentinel/internal/model"
)

// ReplaceZerosAndNulls returns a copy of points where every null, NaN or zero
// value is replaced by the mean of the remaining values.
// If no informative value exists the input is returned unchanged.
func ReplaceZerosAndNulls(points []model.TimeSeriesPoint) []model.TimeSeriesPoint {
	if len(points) == 0 {
		return points
	}

	valid := make([]float64, 0, len(points))
	for _, p := range points {
		if isInformative(p) {
			valid = append(valid, p.Value.Float64)
		}
	}
	if len(valid) == 0 {
		log.Printf("[WARN] sanitizer: no informative values among %d points, series left unchanged", len(points))
		return points
	}
	avg := mean(valid)

	replaced := len(points) - len(valid)
	if replaced > 0 {
		log.Printf("[INFO] sanitizer: replacing %d zero/null values with mean %.4f", replaced, avg)
	}

	out := make([]model.TimeSeriesPoint, len(points))
	for i, p := range points {
		out[i] = p
		if !isInformative(p) {
			out[i].Value = null.FloatFrom(avg)
		}
	}
	return out
}

// SanitizeRecord applies zero/null replacement to a copy of the record.
func SanitizeRecord(rec *model.SeriesRecord) *model.SeriesRecord {
	if rec == nil {
		return nil
	}
	out := rec.Clone()
	out.Points = ReplaceZerosAndNulls(out.Points)
	return out
}

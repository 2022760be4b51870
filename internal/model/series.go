package model

import (
	"math"

	"github.com/guregu/null/v6"
)

// TimeSeriesPoint is a single observation of an indicator.
// Date is a logical period label (YYYY-MM or YYYY-MM-DD as served upstream), not an instant.
type TimeSeriesPoint struct {
	Date  string     `json:"fecha"`
	Value null.Float `json:"valor"`
}

// Point builds a point with a valid value.
func Point(date string, v float64) TimeSeriesPoint {
	return TimeSeriesPoint{Date: date, Value: null.FloatFrom(v)}
}

// NullPoint builds a point with a missing value.
func NullPoint(date string) TimeSeriesPoint {
	return TimeSeriesPoint{Date: date}
}

// IsNumber reports whether the point holds a usable number (not null, not NaN).
func (p TimeSeriesPoint) IsNumber() bool {
	return p.Value.Valid && !math.IsNaN(p.Value.Float64)
}

// SeriesRecord is an indicator code, its display name and its ordered observations.
type SeriesRecord struct {
	Code   string            `json:"codigo"`
	Name   string            `json:"nombre"`
	Points []TimeSeriesPoint `json:"datos"`
}

// Clone returns a deep copy of the record.
func (r *SeriesRecord) Clone() *SeriesRecord {
	if r == nil {
		return nil
	}
	out := &SeriesRecord{Code: r.Code, Name: r.Name}
	if r.Points != nil {
		out.Points = make([]TimeSeriesPoint, len(r.Points))
		copy(out.Points, r.Points)
	}
	return out
}

// Latest returns the last point of the series.
func (r *SeriesRecord) Latest() (TimeSeriesPoint, bool) {
	if r == nil || len(r.Points) == 0 {
		return TimeSeriesPoint{}, false
	}
	return r.Points[len(r.Points)-1], true
}

// Tail returns a copy of the record keeping only the last n points.
func (r *SeriesRecord) Tail(n int) *SeriesRecord {
	out := r.Clone()
	if n > 0 && len(out.Points) > n {
		out.Points = out.Points[len(out.Points)-n:]
	}
	return out
}

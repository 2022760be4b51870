package collector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/guregu/null/v6"

	"BCRPSentinel/internal/model"
)

// apiResponse is the JSON shape served by the statistics API.
type apiResponse struct {
	Config struct {
		Title  string `json:"title"`
		Titulo string `json:"titulo"`
		Series []struct {
			Name string `json:"name"`
		} `json:"series"`
	} `json:"config"`
	Periods []struct {
		Name   string `json:"name"`
		Values []any  `json:"values"`
	} `json:"periods"`
}

func (r *apiResponse) displayName(code string) string {
	if len(r.Config.Series) > 0 && r.Config.Series[0].Name != "" {
		return r.Config.Series[0].Name
	}
	if r.Config.Title != "" {
		return r.Config.Title
	}
	if r.Config.Titulo != "" {
		return r.Config.Titulo
	}
	return code
}

func parseAPIResponse(code string, body []byte) (*model.SeriesRecord, error) {
	var resp apiResponse
	if err := json.Unmarshal(bytes.TrimSpace(body), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(resp.Periods) == 0 {
		return nil, fmt.Errorf("%w: no periods", ErrMalformedPayload)
	}

	rec := &model.SeriesRecord{
		Code:   code,
		Name:   resp.displayName(code),
		Points: make([]model.TimeSeriesPoint, 0, len(resp.Periods)),
	}
	for _, p := range resp.Periods {
		pt := model.TimeSeriesPoint{Date: p.Name}
		if len(p.Values) > 0 {
			pt.Value = parseValue(p.Values[0])
		}
		rec.Points = append(rec.Points, pt)
	}
	return rec, nil
}

// parseValue converts an upstream observation into a nullable float.
// Placeholders such as "n.d." and non-finite numbers become null.
func parseValue(v any) null.Float {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return null.Float{}
		}
		f = parsed
	default:
		return null.Float{}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return null.Float{}
	}
	return null.FloatFrom(f)
}

// dataBlobRe matches the `var data = {...};` assignment embedded in results pages.
var dataBlobRe = regexp.MustCompile(`var\s+data\s*=\s*(\{[\s\S]*?\});`)

// pageData is the blob embedded in the annual results pages.
type pageData struct {
	Periodos []any `json:"periodos"`
	Series   []struct {
		Datos []any `json:"datos"`
	} `json:"series"`
}

func extractPageData(html []byte) ([]model.TimeSeriesPoint, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", ErrMalformedPayload, err)
	}

	var blob string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := dataBlobRe.FindStringSubmatch(s.Text()); m != nil {
			blob = m[1]
			return false
		}
		return true
	})
	if blob == "" {
		return nil, fmt.Errorf("%w: no embedded data blob", ErrMalformedPayload)
	}

	var data pageData
	if err := json.Unmarshal([]byte(blob), &data); err != nil {
		return nil, fmt.Errorf("%w: decode data blob: %v", ErrMalformedPayload, err)
	}
	if len(data.Series) == 0 {
		return nil, fmt.Errorf("%w: data blob has no series", ErrMalformedPayload)
	}

	datos := data.Series[0].Datos
	points := make([]model.TimeSeriesPoint, 0, len(data.Periodos))
	for i, period := range data.Periodos {
		if i >= len(datos) || datos[i] == nil {
			continue
		}
		label := periodLabel(period)
		if label == "" {
			continue
		}
		points = append(points, model.TimeSeriesPoint{Date: label, Value: parseValue(datos[i])})
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: data blob has no observations", ErrMalformedPayload)
	}
	return points, nil
}

func periodLabel(v any) string {
	switch p := v.(type) {
	case string:
		return strings.TrimSpace(p)
	case float64:
		return strconv.FormatFloat(p, 'f', -1, 64)
	}
	return ""
}

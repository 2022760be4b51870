package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BCRPSentinel/internal/collector"
	"BCRPSentinel/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeFetcher struct {
	lastReq   collector.Request
	lastCodes []string
	lastLimit int
	res       *collector.Result
	err       error
	batch     *collector.Batch
}

func (f *fakeFetcher) Fetch(_ context.Context, req collector.Request) (*collector.Result, error) {
	f.lastReq = req
	if _, _, err := collector.NormalizeRange(req.From, req.To); err != nil {
		return nil, err
	}
	return f.res, f.err
}

func (f *fakeFetcher) FetchMany(_ context.Context, codes []string, from, to string) *collector.Batch {
	f.lastCodes = codes
	return f.batch
}

func (f *fakeFetcher) FetchRecent(_ context.Context, codes []string, limit int) *collector.Batch {
	f.lastCodes = codes
	f.lastLimit = limit
	return f.batch
}

func spikeSeries() *model.SeriesRecord {
	rec := &model.SeriesRecord{Code: "PN01271PM", Name: "IPC var%"}
	for _, d := range []string{"2024-01", "2024-02", "2024-03", "2024-04", "2024-05", "2024-06", "2024-07", "2024-08", "2024-09"} {
		rec.Points = append(rec.Points, model.Point(d, 10))
	}
	rec.Points = append(rec.Points, model.Point("2024-10", 10000))
	return rec
}

func get(t *testing.T, s *Server, url string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHandleSeries_OK(t *testing.T) {
	ff := &fakeFetcher{res: &collector.Result{Record: spikeSeries(), Source: "primary"}}
	s := NewServer(":0", ff, Options{})

	w := get(t, s, "/api/bcrp?codigo=PN01271PM&fechaInicio=2024-01&fechaFin=2024-10")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	body := decode[seriesResponse](t, w)
	assert.Equal(t, "PN01271PM", body.Codigo)
	assert.Equal(t, "IPC var%", body.Nombre)
	assert.Equal(t, "primary", body.Fuente)
	assert.False(t, body.Desactualizado)
	require.Len(t, body.Datos, 10)
	assert.Equal(t, 10000.0, body.Datos[9].Value.Float64, "raw series unless outliers is requested")

	assert.Equal(t, collector.Request{Code: "PN01271PM", From: "2024-01", To: "2024-10"}, ff.lastReq)
}

func TestHandleSeries_Transforms(t *testing.T) {
	ff := &fakeFetcher{res: &collector.Result{Record: spikeSeries(), Source: "cache-stale", Stale: true}}
	s := NewServer(":0", ff, Options{})

	w := get(t, s, "/api/bcrp?codigo=PN01271PM&outliers=3&suavizar=3")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[seriesResponse](t, w)
	assert.True(t, body.Desactualizado)
	for _, p := range body.Datos {
		assert.InDelta(t, 10, p.Value.Float64, 1e-9)
	}
}

func TestHandleSeries_NullValues(t *testing.T) {
	rec := &model.SeriesRecord{Code: "X", Name: "X", Points: []model.TimeSeriesPoint{model.NullPoint("2024-01")}}
	s := NewServer(":0", &fakeFetcher{res: &collector.Result{Record: rec, Source: "primary"}}, Options{})

	w := get(t, s, "/api/bcrp?codigo=X")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `{"fecha":"2024-01","valor":null}`)
}

func TestHandleSeries_BadRequests(t *testing.T) {
	s := NewServer(":0", &fakeFetcher{}, Options{})

	for _, url := range []string{
		"/api/bcrp",
		"/api/bcrp?codigo=%20",
		"/api/bcrp?codigo=X&fechaInicio=2024-13",
		"/api/bcrp?codigo=X&fechaFin=ayer",
		"/api/bcrp?codigo=X&formato=xml",
		"/api/bcrp?codigo=X&idioma=ing",
		"/api/bcrp?codigo=X&suavizar=abc",
		"/api/bcrp?codigo=X&outliers=-1",
	} {
		w := get(t, s, url)
		assert.Equal(t, http.StatusBadRequest, w.Code, url)
		assert.NotEmpty(t, decode[errorResponse](t, w).Error, url)
	}
}

func TestHandleSeries_Exhausted(t *testing.T) {
	ff := &fakeFetcher{err: &collector.ExhaustedError{Code: "X", Failures: []collector.Failure{
		{Strategy: "primary", Err: &collector.StatusError{StatusCode: 403}},
		{Strategy: "dateless", Err: errors.New("timeout")},
		{Strategy: "cache", Err: errors.New("forced lookup: miss")},
	}}}
	s := NewServer(":0", ff, Options{})

	w := get(t, s, "/api/bcrp?codigo=X&fechaInicio=2024-01&fechaFin=2024-02")
	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decode[errorResponse](t, w)
	assert.Contains(t, body.Error, "X")
	require.Len(t, body.Detalles, 3)
	assert.Contains(t, body.Detalles[0], "primary: upstream status 403")
	assert.Equal(t, "dateless: timeout", body.Detalles[1])
}

func TestHandleMultiple(t *testing.T) {
	ff := &fakeFetcher{batch: &collector.Batch{
		Results: []*collector.Result{{Record: spikeSeries(), Source: "primary"}},
		Errors:  map[string]error{"BAD": errors.New("no data for indicator BAD")},
	}}
	s := NewServer(":0", ff, Options{})

	w := get(t, s, "/api/bcrp/multiple?codigos=PN01271PM,%20BAD,PN01271PM&fechaInicio=2024-01&fechaFin=2024-10")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"PN01271PM", "BAD"}, ff.lastCodes)

	body := decode[batchResponse](t, w)
	require.Len(t, body.Series, 1)
	assert.Equal(t, "no data for indicator BAD", body.Errores["BAD"])

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/bcrp/multiple").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/bcrp/multiple?codigos=A&fechaInicio=x").Code)
}

func TestHandleRecent(t *testing.T) {
	ff := &fakeFetcher{batch: &collector.Batch{Errors: map[string]error{}}}
	s := NewServer(":0", ff, Options{RecentLimit: 30})

	w := get(t, s, "/api/bcrp/recientes")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, ff.lastCodes, len(model.DailyIndicators))
	assert.Equal(t, 30, ff.lastLimit)

	get(t, s, "/api/bcrp/recientes?codigos=PD04638PD&limite=5")
	assert.Equal(t, []string{"PD04638PD"}, ff.lastCodes)
	assert.Equal(t, 5, ff.lastLimit)

	assert.Equal(t, http.StatusBadRequest, get(t, s, "/api/bcrp/recientes?limite=0").Code)
}

func TestCatalogAndHealth(t *testing.T) {
	s := NewServer(":0", &fakeFetcher{}, Options{})

	w := get(t, s, "/api/indicadores")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string][]model.Indicator](t, w)
	assert.Len(t, body["diarios"], len(model.DailyIndicators))
	assert.Len(t, body["anuales"], 2)

	assert.Equal(t, http.StatusOK, get(t, s, "/healthz").Code)
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer(":0", &fakeFetcher{}, Options{})
	req := httptest.NewRequest(http.MethodOptions, "/api/bcrp", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

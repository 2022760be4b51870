package collector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient("",
		WithBaseURL(srv.URL+"/api"),
		WithPBIURL(srv.URL+"/anuales/resultados"),
		WithRateLimit(1000, 1000),
	)
}

func TestSeriesURL(t *testing.T) {
	c := NewClient("", WithBaseURL("https://example.test/api/"))

	assert.Equal(t, "https://example.test/api/PN01271PM/json/2024-01-01/2024-12-31/esp",
		c.SeriesURL("PN01271PM", "2024-01-01", "2024-12-31"))
	assert.Equal(t, "https://example.test/api/PN01271PM/json/esp", c.SeriesURL("PN01271PM", "", ""))
	assert.Equal(t, "https://example.test/api/PN01271PM/json/esp", c.SeriesURL("PN01271PM", "2024-01-01", ""))

	c = NewClient("", WithBaseURL("https://example.test/api"), WithFormat("xml", "ing"))
	assert.Equal(t, "https://example.test/api/X/xml/ing", c.SeriesURL("X", "", ""))
}

func TestClientFetchAPI(t *testing.T) {
	var gotPath, gotUA, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		gotReferer = r.Header.Get("Referer")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"config":{"series":[{"name":"Reservas"}]},"periods":[{"name":"Ene.2024","values":["71000.5"]}]}`)
	}))
	defer srv.Close()

	rec, err := newTestClient(srv).FetchAPI(context.Background(), "PN00026MM", "2024-01-01", "2024-01-31")
	require.NoError(t, err)

	assert.Equal(t, "/api/PN00026MM/json/2024-01-01/2024-01-31/esp", gotPath)
	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Equal(t, "https://estadisticas.bcrp.gob.pe/estadisticas/series/", gotReferer)
	assert.Equal(t, "Reservas", rec.Name)
	require.Len(t, rec.Points, 1)
	assert.Equal(t, 71000.5, rec.Points[0].Value.Float64)
}

func TestClientFetchAPI_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, strings.Repeat("x", 2048), http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FetchAPI(context.Background(), "PN00026MM", "", "")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
	assert.True(t, se.Rejected())
	assert.False(t, se.Retryable())
	assert.LessOrEqual(t, len(se.Body), maxErrorBody)
}

func TestStatusErrorClassification(t *testing.T) {
	tests := []struct {
		code                int
		rejected, retryable bool
		retriedByPrimary    bool
	}{
		{403, true, false, false},
		{500, true, true, false},
		{502, false, true, true},
		{503, false, true, true},
		{429, false, true, true},
		{408, false, true, true},
		{404, false, false, false},
	}
	bounded := Request{Code: "PN01", From: "2020-1", To: "2020-12"}
	for _, tt := range tests {
		se := &StatusError{StatusCode: tt.code}
		assert.Equal(t, tt.rejected, se.Rejected(), "%d rejected", tt.code)
		assert.Equal(t, tt.retryable, se.Retryable(), "%d retryable", tt.code)
		assert.Equal(t, tt.retriedByPrimary, retryable(se, bounded), "%d primary retry", tt.code)
	}
	assert.True(t, retryable(errors.New("connection reset"), bounded))
	assert.False(t, retryable(ErrMalformedPayload, bounded))
}

func TestClientFetchPBIPage_Latin1(t *testing.T) {
	var gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		assert.Equal(t, "/anuales/resultados/PBI-nivel", r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		// "Año" encoded as Latin-1
		io.WriteString(w, "<html><h1>A\xf1o</h1><script>var data = {\"periodos\":[\"2023\"],\"series\":[{\"datos\":[\"550000.1\"]}]};</script></html>")
	}))
	defer srv.Close()

	points, err := newTestClient(srv).FetchPBIPage(context.Background(), "PBI-nivel")
	require.NoError(t, err)
	assert.Contains(t, gotAccept, "text/html")
	require.Len(t, points, 1)
	assert.Equal(t, "2023", points[0].Date)
	assert.Equal(t, 550000.1, points[0].Value.Float64)
}

func TestDecodeCharset(t *testing.T) {
	b, err := io.ReadAll(decodeCharset(strings.NewReader("A\xf1o"), "text/html; charset=iso-8859-1"))
	require.NoError(t, err)
	assert.Equal(t, "Año", string(b))

	b, err = io.ReadAll(decodeCharset(strings.NewReader("Año"), "application/json"))
	require.NoError(t, err)
	assert.Equal(t, "Año", string(b))
}

func TestClientContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestClient(srv).FetchAPI(ctx, "X", "", "")
	assert.True(t, errors.Is(err, context.Canceled))
}

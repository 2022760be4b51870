package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"BCRPSentinel/internal/collector"
	"BCRPSentinel/internal/model"
	"BCRPSentinel/internal/sanitizer"
)

// maxCodesPerRequest bounds the bulk endpoints.
const maxCodesPerRequest = 25

type seriesResponse struct {
	Codigo         string                  `json:"codigo"`
	Nombre         string                  `json:"nombre"`
	Datos          []model.TimeSeriesPoint `json:"datos"`
	Fuente         string                  `json:"fuente"`
	Desactualizado bool                    `json:"desactualizado"`
	ObtenidoEn     time.Time               `json:"obtenidoEn"`
}

type errorResponse struct {
	Error    string   `json:"error"`
	Detalles []string `json:"detalles,omitempty"`
}

// transform holds the optional post-processing requested by the caller.
type transform struct {
	window    int
	threshold float64
}

func (t transform) apply(points []model.TimeSeriesPoint) []model.TimeSeriesPoint {
	if t.threshold > 0 {
		points = sanitizer.ClampOutliers(points, t.threshold)
	}
	if t.window > 1 {
		points = sanitizer.Smooth(points, t.window)
	}
	return points
}

func toResponse(res *collector.Result, tr transform) seriesResponse {
	return seriesResponse{
		Codigo:         res.Record.Code,
		Nombre:         res.Record.Name,
		Datos:          tr.apply(res.Record.Points),
		Fuente:         res.Source,
		Desactualizado: res.Stale,
		ObtenidoEn:     res.FetchedAt,
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
}

// parseTransform reads suavizar (window) and outliers (threshold).
func parseTransform(c *gin.Context) (transform, error) {
	var tr transform
	if v := c.Query("suavizar"); v != "" {
		w, err := strconv.Atoi(v)
		if err != nil || w < 1 || w > 99 {
			return tr, errors.New("suavizar must be an integer window between 1 and 99")
		}
		tr.window = w
	}
	if v := c.Query("outliers"); v != "" {
		k, err := strconv.ParseFloat(v, 64)
		if err != nil || k <= 0 {
			return tr, errors.New("outliers must be a positive threshold")
		}
		tr.threshold = k
	}
	return tr, nil
}

func parseCodes(raw string) ([]string, error) {
	var codes []string
	seen := make(map[string]bool)
	for _, c := range strings.Split(raw, ",") {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		codes = append(codes, c)
	}
	if len(codes) == 0 {
		return nil, errors.New("codigos is required")
	}
	if len(codes) > maxCodesPerRequest {
		return nil, errors.New("too many codigos (max " + strconv.Itoa(maxCodesPerRequest) + ")")
	}
	return codes, nil
}

func errorMessages(err error) []string {
	var ex *collector.ExhaustedError
	if errors.As(err, &ex) {
		return ex.Messages()
	}
	return nil
}

// handleSeries serves GET /api/bcrp.
func (s *Server) handleSeries(c *gin.Context) {
	code := strings.TrimSpace(c.Query("codigo"))
	if code == "" {
		badRequest(c, "codigo is required")
		return
	}
	if f := c.DefaultQuery("formato", s.format); f != s.format {
		badRequest(c, "formato "+f+" is not served, use "+s.format)
		return
	}
	if l := c.DefaultQuery("idioma", s.language); l != s.language {
		badRequest(c, "idioma "+l+" is not served, use "+s.language)
		return
	}
	tr, err := parseTransform(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	res, err := s.fetcher.Fetch(c.Request.Context(), collector.Request{
		Code:        code,
		From:        c.Query("fechaInicio"),
		To:          c.Query("fechaFin"),
		PreferCache: c.Query("cache") == "preferir",
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, toResponse(res, tr))
	case errors.Is(err, collector.ErrInvalidDate), errors.Is(err, collector.ErrEmptyCode):
		badRequest(c, err.Error())
	default:
		c.JSON(http.StatusBadGateway, errorResponse{
			Error:    "no se pudieron obtener datos para " + code,
			Detalles: errorMessages(err),
		})
	}
}

type batchResponse struct {
	Series  []seriesResponse  `json:"series"`
	Errores map[string]string `json:"errores"`
}

func toBatchResponse(b *collector.Batch, tr transform) batchResponse {
	out := batchResponse{Series: make([]seriesResponse, 0, len(b.Results)), Errores: make(map[string]string)}
	for _, r := range b.Results {
		out.Series = append(out.Series, toResponse(r, tr))
	}
	for code, err := range b.Errors {
		out.Errores[code] = err.Error()
	}
	return out
}

// handleMultiple serves GET /api/bcrp/multiple.
func (s *Server) handleMultiple(c *gin.Context) {
	codes, err := parseCodes(c.Query("codigos"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	tr, err := parseTransform(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	from, to := c.Query("fechaInicio"), c.Query("fechaFin")
	if _, _, err := collector.NormalizeRange(from, to); err != nil {
		badRequest(c, err.Error())
		return
	}

	batch := s.fetcher.FetchMany(c.Request.Context(), codes, from, to)
	c.JSON(http.StatusOK, toBatchResponse(batch, tr))
}

// handleRecent serves GET /api/bcrp/recientes.
func (s *Server) handleRecent(c *gin.Context) {
	raw := c.Query("codigos")
	if raw == "" {
		raw = strings.Join(s.dailyCodes, ",")
	}
	codes, err := parseCodes(raw)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	limit := s.recentLimit
	if v := c.Query("limite"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			badRequest(c, "limite must be an integer between 1 and 1000")
			return
		}
		limit = n
	}

	batch := s.fetcher.FetchRecent(c.Request.Context(), codes, limit)
	c.JSON(http.StatusOK, toBatchResponse(batch, transform{}))
}

// handleCatalog serves GET /api/indicadores.
func (s *Server) handleCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"diarios":   model.DailyIndicators,
		"mensuales": model.MonthlyIndicators,
		"anuales":   model.AnnualIndicators,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

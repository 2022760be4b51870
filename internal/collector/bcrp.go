package collector

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"BCRPSentinel/internal/model"
)

const (
	DefaultBaseURL  = "https://estadisticas.bcrp.gob.pe/estadisticas/series/api"
	DefaultPBIURL   = "https://estadisticas.bcrp.gob.pe/estadisticas/series/anuales/resultados"
	DefaultFormat   = "json"
	DefaultLanguage = "esp"

	// maxErrorBody caps how much of a failed response is kept for diagnostics.
	maxErrorBody = 512
)

// Upstream is the statistics provider as seen by the fetch strategies.
type Upstream interface {
	FetchAPI(ctx context.Context, code, from, to string) (*model.SeriesRecord, error)
	FetchPBIPage(ctx context.Context, slug string) ([]model.TimeSeriesPoint, error)
}

// Client talks to the BCRP statistics API. It is built once at startup and
// shared; it holds no per-request state.
type Client struct {
	baseURL  string
	pbiURL   string
	format   string
	language string
	headers  http.Header

	httpClient *http.Client
	limiter    *rate.Limiter
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a BCRP client with optional proxy support.
func NewClient(proxyURL string, opts ...ClientOption) *Client {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	c := &Client{
		baseURL:  DefaultBaseURL,
		pbiURL:   DefaultPBIURL,
		format:   DefaultFormat,
		language: DefaultLanguage,
		headers:  BrowserHeaders(),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(4), 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithBaseURL sets the JSON API base URL.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithPBIURL sets the base URL of the HTML results pages.
func WithPBIURL(u string) ClientOption {
	return func(c *Client) { c.pbiURL = strings.TrimRight(u, "/") }
}

// WithFormat sets the output format and language path segments.
func WithFormat(format, language string) ClientOption {
	return func(c *Client) {
		if format != "" {
			c.format = format
		}
		if language != "" {
			c.language = language
		}
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit sets the request rate towards upstream.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHeaders overrides individual default headers.
func WithHeaders(h map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range h {
			c.headers.Set(k, v)
		}
	}
}

// BrowserHeaders returns the headers upstream expects from a regular browser.
// Requests without them are frequently rejected with 403.
func BrowserHeaders() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json, text/plain, */*")
	h.Set("Accept-Language", "es-ES,es;q=0.9,en;q=0.8")
	h.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36")
	h.Set("Origin", "https://estadisticas.bcrp.gob.pe")
	h.Set("Referer", "https://estadisticas.bcrp.gob.pe/estadisticas/series/")
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "cors")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Pragma", "no-cache")
	h.Set("Cache-Control", "no-cache")
	return h
}

// SeriesURL builds {base}/{code}/{format}[/{from}/{to}]/{language}.
// The range is only included when both bounds are set.
func (c *Client) SeriesURL(code, from, to string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString("/")
	b.WriteString(url.PathEscape(code))
	b.WriteString("/")
	b.WriteString(c.format)
	if from != "" && to != "" {
		b.WriteString("/" + from + "/" + to)
	}
	b.WriteString("/")
	b.WriteString(c.language)
	return b.String()
}

// FetchAPI requests one series from the JSON API.
func (c *Client) FetchAPI(ctx context.Context, code, from, to string) (*model.SeriesRecord, error) {
	body, err := c.get(ctx, c.SeriesURL(code, from, to), nil)
	if err != nil {
		return nil, err
	}
	return parseAPIResponse(code, body)
}

// FetchPBIPage requests an annual results page and extracts its embedded data blob.
func (c *Client) FetchPBIPage(ctx context.Context, slug string) ([]model.TimeSeriesPoint, error) {
	extra := http.Header{}
	extra.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	extra.Set("Referer", "https://estadisticas.bcrp.gob.pe/estadisticas/series/anuales/pbi")

	body, err := c.get(ctx, c.pbiURL+"/"+url.PathEscape(slug), extra)
	if err != nil {
		return nil, err
	}
	return extractPageData(body)
}

func (c *Client) get(ctx context.Context, endpoint string, extra http.Header) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range c.headers {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range extra {
		req.Header[k] = append([]string(nil), vs...)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bcrp fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(decodeCharset(resp.Body, resp.Header.Get("Content-Type")))
	if err != nil {
		return nil, fmt.Errorf("bcrp read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: endpoint, Body: string(body)}
	}
	return body, nil
}

// decodeCharset converts Latin-1 style bodies to UTF-8; anything else passes through.
func decodeCharset(r io.Reader, contentType string) io.Reader {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r
	}
	switch strings.ToLower(params["charset"]) {
	case "iso-8859-1", "latin1", "latin-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder())
	}
	return r
}

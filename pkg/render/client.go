// Package render fetches rendered pages from an upstream rendering service.
package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/render-cache/pkg/cache"
	"github.com/Sternrassler/render-cache/pkg/head"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for render operations.
var (
	renderRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_requests_total",
		Help: "Total render requests by status",
	}, []string{"status"})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_cache_render_duration_seconds",
		Help:    "Duration of upstream renders in seconds, retries included",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	renderErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_errors_total",
		Help: "Total render errors by class",
	}, []string{"class"})
)

// skippedHeaders are not replayed from the renderer's response.
// Hop-by-hop headers describe the renderer connection; length and encoding
// no longer match once the body has been read and decoded.
var skippedHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
	"Content-Encoding":    true,
}

// Rendered is the renderer's output for one page.
type Rendered struct {
	// StatusCode is the status the renderer answered with
	StatusCode int

	// Fields are the response headers in a stable order
	Fields []head.Field

	// Document is the rendered body
	Document string
}

// Head returns the original response head of the render.
func (r *Rendered) Head() head.Head {
	return head.FromFields(r.StatusCode, r.Fields)
}

// Renderer produces a rendered page for a cache key.
type Renderer interface {
	Render(ctx context.Context, key cache.Key) (*Rendered, error)
}

// Config holds the renderer configuration.
type Config struct {
	// BaseURL of the rendering service; the key is appended as the path
	BaseURL string

	// UserAgent sent to the rendering service
	UserAgent string

	// Timeout bounds a single attempt
	Timeout time.Duration

	// MaxBodyBytes caps the document size read from the renderer
	MaxBodyBytes int64

	// Retry controls retries of network and 5xx failures
	Retry RetryConfig

	// RateLimit caps render attempts per second; 0 disables the limit
	RateLimit float64

	// RateBurst is the number of attempts allowed at once under RateLimit
	RateBurst int
}

// DefaultConfig returns a default configuration for the given service URL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		UserAgent:    "render-cache/0.1.0",
		Timeout:      30 * time.Second,
		MaxBodyBytes: 10 << 20,
		Retry:        DefaultRetryConfig(),
	}
}

// HTTPRenderer renders pages through an HTTP rendering service.
type HTTPRenderer struct {
	httpClient *http.Client
	baseURL    string
	config     Config
	limiter    *limiter
	logger     zerolog.Logger
}

// New creates a new HTTP renderer.
func New(cfg Config) (*HTTPRenderer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("renderer base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse renderer base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("renderer base url must be http or https (got %q)", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	logger := log.With().Str("component", "renderer").Logger()

	return &HTTPRenderer{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			// a redirect is a render result, not something to follow
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		config:  cfg,
		limiter: newLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:  logger,
	}, nil
}

// Render asks the rendering service for the page identified by key.
// 4xx answers are returned as renders; network failures and 5xx answers
// are retried and reported as errors once attempts run out.
func (r *HTTPRenderer) Render(ctx context.Context, key cache.Key) (*Rendered, error) {
	target := r.baseURL + "/" + string(key)

	startTime := time.Now()
	defer func() {
		renderDuration.Observe(time.Since(startTime).Seconds())
	}()

	var rendered *Rendered
	err := retryWithBackoff(ctx, r.config.Retry, func() error {
		if err := r.limiter.wait(ctx); err != nil {
			return err
		}
		var attemptErr error
		rendered, attemptErr = r.fetch(ctx, target)
		return attemptErr
	}, classify)
	if err != nil {
		r.logger.Error().Err(err).Str("key", string(key)).Msg("Render failed")
		return nil, err
	}

	r.logger.Debug().
		Str("key", string(key)).
		Int("status_code", rendered.StatusCode).
		Int("size", len(rendered.Document)).
		Dur("duration", time.Since(startTime)).
		Msg("Page rendered")

	return rendered, nil
}

// fetch performs a single render attempt.
func (r *HTTPRenderer) fetch(ctx context.Context, target string) (*Rendered, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &RenderError{ErrorClass: ErrorClassClient, Message: "create request", Err: err}
	}
	req.Header.Set("User-Agent", r.config.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		renderErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		renderRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &RenderError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	renderRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode >= 500 {
		renderErrorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
		r.logger.Warn().
			Str("url", target).
			Int("status_code", resp.StatusCode).
			Str("error_class", string(ErrorClassServer)).
			Msg("Renderer error")
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &RenderError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassServer,
			Message:    resp.Status,
		}
	}

	body, err := readBody(resp.Body, r.config.MaxBodyBytes)
	if err != nil {
		class := ErrorClassNetwork
		if errors.Is(err, errBodyTooLarge) {
			class = ErrorClassClient
		}
		renderErrorsTotal.WithLabelValues(string(class)).Inc()
		return nil, &RenderError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    "read body",
			Err:        err,
		}
	}

	return &Rendered{
		StatusCode: resp.StatusCode,
		Fields:     headerFields(resp.Header),
		Document:   body,
	}, nil
}

// errBodyTooLarge is returned when the document exceeds MaxBodyBytes.
var errBodyTooLarge = errors.New("document exceeds size limit")

func readBody(body io.Reader, limit int64) (string, error) {
	if limit <= 0 {
		data, err := io.ReadAll(body)
		return string(data), err
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", errBodyTooLarge
	}
	return string(data), nil
}

// headerFields flattens response headers into fields sorted by name.
// Repeated values are joined with ", ".
func headerFields(h http.Header) []head.Field {
	names := make([]string, 0, len(h))
	for name := range h {
		if skippedHeaders[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]head.Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, head.Field{Name: name, Value: strings.Join(h[name], ", ")})
	}
	return fields
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (r *HTTPRenderer) SetHTTPClient(client *http.Client) {
	r.httpClient = client
}

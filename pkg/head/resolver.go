package head

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrInvalidOverride marks a directive whose payload could not be applied.
var ErrInvalidOverride = errors.New("invalid override directive")

var invalidOverrides = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "render_cache_invalid_overrides_total",
	Help: "Total number of skipped override directives by kind",
}, []string{"kind"})

// Resolution is the outcome of reconciling a head with a document.
type Resolution struct {
	// Head is the merged head to serve and store
	Head Head

	// Overrides is what the document asked for, kept for audit
	Overrides Overrides

	// Skipped lists directives that were ignored, each wrapping ErrInvalidOverride
	Skipped []error
}

// Resolver merges renderer response heads with document directives.
type Resolver struct {
	scanner Scanner
	logger  zerolog.Logger
}

// NewResolver creates a resolver. A nil scanner selects HTMLScanner.
func NewResolver(scanner Scanner, logger zerolog.Logger) *Resolver {
	if scanner == nil {
		scanner = HTMLScanner{}
	}
	return &Resolver{
		scanner: scanner,
		logger:  logger,
	}
}

// Resolve applies the document's override directives to original.
//
// Header directives overwrite same-named original headers and the last
// directive for a name wins. Only the last status directive is considered;
// if it is malformed the original status is kept. When the document cannot
// be scanned the returned resolution carries an unmodified copy of original
// together with the error.
func (r *Resolver) Resolve(original Head, document string) (Resolution, error) {
	res := Resolution{
		Head:      original.Clone(),
		Overrides: Overrides{Headers: map[string]string{}},
	}

	directives, err := r.scanner.Scan(document)
	if err != nil {
		return res, err
	}

	var status string
	hasStatus := false
	for d := range directives {
		switch d.Kind {
		case KindHeader:
			name, value, err := parseHeaderPayload(d.Payload)
			if err != nil {
				res.Skipped = append(res.Skipped, err)
				invalidOverrides.WithLabelValues(KindHeader.String()).Inc()
				continue
			}
			res.Overrides.Headers[name] = value
		case KindStatusCode:
			status, hasStatus = d.Payload, true
		}
	}

	if hasStatus {
		code, err := parseStatusPayload(status)
		if err != nil {
			res.Skipped = append(res.Skipped, err)
			invalidOverrides.WithLabelValues(KindStatusCode.String()).Inc()
		} else {
			res.Overrides.StatusCode = &code
		}
	}

	for name, value := range res.Overrides.Headers {
		res.Head.Headers[name] = value
	}
	if res.Overrides.StatusCode != nil {
		res.Head.StatusCode = *res.Overrides.StatusCode
	}

	for _, skipped := range res.Skipped {
		r.logger.Warn().Err(skipped).Msg("Skipping override directive")
	}
	if !res.Overrides.Empty() {
		r.logger.Debug().
			Int("status_code", res.Head.StatusCode).
			Int("header_overrides", len(res.Overrides.Headers)).
			Msg("Applied document overrides")
	}

	return res, nil
}

// parseHeaderPayload splits "Name: value" on the first colon only.
func parseHeaderPayload(payload string) (string, string, error) {
	name, value, found := strings.Cut(payload, ":")
	if !found {
		return "", "", fmt.Errorf("%w: header %q has no colon", ErrInvalidOverride, payload)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", fmt.Errorf("%w: header %q has no name", ErrInvalidOverride, payload)
	}
	return name, strings.TrimSpace(value), nil
}

func parseStatusPayload(payload string) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return 0, fmt.Errorf("%w: status code %q: %v", ErrInvalidOverride, payload, err)
	}
	if code < 100 || code > 999 {
		return 0, fmt.Errorf("%w: status code %d out of range", ErrInvalidOverride, code)
	}
	return code, nil
}

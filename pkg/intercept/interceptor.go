// Package intercept wires the cache and the head resolver into the two
// hooks a rendering pipeline calls around each render.
package intercept

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Sternrassler/render-cache/pkg/cache"
	"github.com/Sternrassler/render-cache/pkg/head"
	"github.com/Sternrassler/render-cache/pkg/render"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/Sternrassler/render-cache/pkg/intercept"

	hookBefore = "before_render"
	hookAfter  = "after_render"

	// DeleteConfirmation is the body sent after a DELETE.
	DeleteConfirmation = "Deleted"
)

// ErrUnsupportedMethod is answered with 400 by BeforeRender.
var ErrUnsupportedMethod = errors.New("only GET, POST, PUT and DELETE are supported")

// Store is the cache the hooks read and write.
type Store interface {
	Get(ctx context.Context, p cache.Partition, key cache.Key) (*cache.Record, error)
	Set(ctx context.Context, p cache.Partition, key cache.Key, record *cache.Record) error
	Delete(ctx context.Context, p cache.Partition, key cache.Key) error
}

// Config holds the interceptor dependencies.
type Config struct {
	// Store is required
	Store Store

	// Resolver merges override directives; a default HTML resolver is used when nil
	Resolver *head.Resolver

	// TracerProvider supplies the tracer; the global provider is used when nil
	TracerProvider trace.TracerProvider

	// Propagators extracts trace context from request headers; the global
	// propagator is used when nil
	Propagators propagation.TextMapPropagator

	Logger zerolog.Logger
}

// Interceptor serves cached renders before rendering and stores fresh
// renders afterwards. It is safe for concurrent use.
type Interceptor struct {
	store       Store
	resolver    *head.Resolver
	tracer      trace.Tracer
	propagators propagation.TextMapPropagator
	logger      zerolog.Logger
}

// New creates an interceptor.
func New(cfg Config) (*Interceptor, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = head.NewResolver(nil, cfg.Logger)
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	propagators := cfg.Propagators
	if propagators == nil {
		propagators = otel.GetTextMapPropagator()
	}

	return &Interceptor{
		store:       cfg.Store,
		resolver:    resolver,
		tracer:      tp.Tracer(tracerName),
		propagators: propagators,
		logger:      cfg.Logger,
	}, nil
}

// BeforeRender decides whether req can be answered without rendering.
//
// GET is answered from the cache on a hit. DELETE removes the cached
// record and is confirmed with 200. POST and PUT always proceed to a fresh
// render. Any other method gets a 400. Cache failures never fail the
// request: the hook logs them and returns Continue.
func (i *Interceptor) BeforeRender(ctx context.Context, req Request) Result {
	ctx, span, key := i.startSpan(ctx, hookBefore, req)
	defer span.End()

	logger := i.logger.With().
		Str("method", req.Method).
		Str("key", string(key)).
		Logger()

	var result Result
	switch req.Method {
	case http.MethodDelete:
		result = i.delete(ctx, span, logger, key)
	case http.MethodPut, http.MethodPost:
		result = Continue()
	case http.MethodGet:
		result = i.lookup(ctx, span, logger, key)
	default:
		logger.Debug().Msg("Unsupported method")
		span.SetStatus(codes.Error, ErrUnsupportedMethod.Error())
		result = Respond(http.StatusBadRequest, ErrUnsupportedMethod.Error(), nil)
	}

	return i.finish(span, hookBefore, result)
}

func (i *Interceptor) delete(ctx context.Context, span trace.Span, logger zerolog.Logger, key cache.Key) Result {
	if err := i.store.Delete(ctx, key.Partition(), key); err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Cache delete failed")
		return Continue()
	}
	logger.Info().Msg("Cache record deleted")
	return Respond(http.StatusOK, DeleteConfirmation, nil)
}

func (i *Interceptor) lookup(ctx context.Context, span trace.Span, logger zerolog.Logger, key cache.Key) Result {
	record, err := i.store.Get(ctx, key.Partition(), key)
	if err != nil {
		span.SetAttributes(attribute.Bool("render_cache.hit", false))
		if !errors.Is(err, cache.ErrNotFound) {
			span.RecordError(err)
			logger.Warn().Err(err).Msg("Cache get error")
		}
		return Continue()
	}

	span.SetAttributes(attribute.Bool("render_cache.hit", true))
	logger.Debug().
		Bool("cache_hit", true).
		Int("status_code", record.StatusCode).
		Msg("Serving from cache")

	return Respond(record.StatusCode, record.Content, record.Head().Headers)
}

// AfterRender resolves the rendered page's head, stores the page and
// answers with the merged head. When the page cannot be stored the hook
// returns Continue and the host serves the render as it came.
func (i *Interceptor) AfterRender(ctx context.Context, req Request, rendered *render.Rendered) Result {
	ctx, span, key := i.startSpan(ctx, hookAfter, req)
	defer span.End()

	if rendered == nil {
		return i.finish(span, hookAfter, Continue())
	}

	logger := i.logger.With().
		Str("method", req.Method).
		Str("key", string(key)).
		Logger()

	// Step 1: Resolve document overrides against the original head
	original := rendered.Head()
	resolution, err := i.resolver.Resolve(original, rendered.Document)
	if err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Could not scan document for overrides, keeping original head")
	}
	span.SetAttributes(attribute.Int("render_cache.skipped_overrides", len(resolution.Skipped)))

	// Step 2: Persist the record
	record := cache.NewRecord(rendered.Document, resolution.Head, original, resolution.Overrides)
	if err := i.store.Set(ctx, key.Partition(), key, record); err != nil {
		span.RecordError(err)
		logger.Warn().Err(err).Msg("Cache set failed")
		return i.finish(span, hookAfter, Continue())
	}

	logger.Debug().
		Int("status_code", record.StatusCode).
		Msg("Saved render")

	// Step 3: Respond with the merged head
	return i.finish(span, hookAfter, Respond(record.StatusCode, record.Content, record.Head().Headers))
}

// startSpan extracts remote trace context, starts the hook span and
// normalizes the request key.
func (i *Interceptor) startSpan(ctx context.Context, hook string, req Request) (context.Context, trace.Span, cache.Key) {
	if req.Header != nil {
		ctx = i.propagators.Extract(ctx, propagation.HeaderCarrier(req.Header))
	}
	ctx, span := i.tracer.Start(ctx, "intercept."+hook, trace.WithSpanKind(trace.SpanKindInternal))

	key := cache.Normalize(req.URL)
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("render_cache.key", string(key)),
		attribute.String("render_cache.partition", string(key.Partition())),
	)
	return ctx, span, key
}

// finish records the outcome of a hook.
func (i *Interceptor) finish(span trace.Span, hook string, result Result) Result {
	span.SetAttributes(attribute.String("render_cache.action", result.Action.String()))
	if result.Responded() {
		span.SetAttributes(attribute.Int("http.response.status_code", result.StatusCode))
	}
	hookResults.WithLabelValues(hook, result.Action.String()).Inc()
	return result
}

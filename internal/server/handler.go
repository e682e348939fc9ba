// Package server hosts the render cache behind an HTTP listener.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Sternrassler/render-cache/pkg/cache"
	"github.com/Sternrassler/render-cache/pkg/intercept"
	"github.com/Sternrassler/render-cache/pkg/render"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Hooks are the two interception points around a render.
type Hooks interface {
	BeforeRender(ctx context.Context, req intercept.Request) intercept.Result
	AfterRender(ctx context.Context, req intercept.Request, rendered *render.Rendered) intercept.Result
}

// Handler serves pages from the cache and renders them on a miss.
type Handler struct {
	hooks    Hooks
	renderer render.Renderer
}

// NewHandler creates a handler. Both arguments are required.
func NewHandler(hooks Hooks, renderer render.Renderer) *Handler {
	if hooks == nil {
		panic("hooks must not be nil")
	}
	if renderer == nil {
		panic("renderer must not be nil")
	}
	return &Handler{
		hooks:    hooks,
		renderer: renderer,
	}
}

// ServeHTTP runs BeforeRender, the renderer and AfterRender in order and
// stops at the first hook that responds. A render that no hook answers is
// served as the renderer returned it.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := hlog.FromRequest(r)
	req := intercept.RequestFromHTTP(r)

	if result := h.hooks.BeforeRender(ctx, req); result.Responded() {
		writeResult(w, logger, result)
		return
	}

	key := cache.Normalize(req.URL)
	rendered, err := h.renderer.Render(ctx, key)
	if err != nil {
		renderFailures.Inc()
		logger.Error().Err(err).Str("key", string(key)).Msg("Render failed")
		http.Error(w, fmt.Sprintf("render failed: %v", err), http.StatusBadGateway)
		return
	}

	result := h.hooks.AfterRender(ctx, req, rendered)
	if !result.Responded() {
		original := rendered.Head()
		result = intercept.Respond(original.StatusCode, rendered.Document, original.Headers)
	}
	writeResult(w, logger, result)
}

func writeResult(w http.ResponseWriter, logger *zerolog.Logger, result intercept.Result) {
	if err := result.Write(w); err != nil {
		logger.Debug().Err(err).Msg("Failed to write response")
	}
}

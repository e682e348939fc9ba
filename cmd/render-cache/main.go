package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/render-cache/internal/config"
	"github.com/Sternrassler/render-cache/internal/server"
	"github.com/Sternrassler/render-cache/pkg/cache"
	"github.com/Sternrassler/render-cache/pkg/head"
	"github.com/Sternrassler/render-cache/pkg/intercept"
	"github.com/Sternrassler/render-cache/pkg/logging"
	"github.com/Sternrassler/render-cache/pkg/render"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func main() {
	// Configuration from environment and optional file
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := logging.Setup(logging.Config{
		Level:          logging.LogLevel(cfg.LogLevel),
		Pretty:         cfg.LogPretty,
		Output:         os.Stderr,
		File:           cfg.LogFile,
		FileMaxSizeMB:  cfg.LogMaxSizeMB,
		FileMaxBackups: cfg.LogMaxBackups,
	})
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// run serves until ctx is cancelled and then shuts down gracefully.
func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.Tracing {
		tp, err := setupTracing(os.Stdout)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Tracer shutdown failed")
			}
		}()
	}

	handler, closeApp, err := newApp(ctx, cfg, logger, otel.GetTracerProvider())
	if err != nil {
		return err
	}
	defer closeApp()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr()).
			Str("renderer_url", cfg.RendererURL).
			Msg("Starting render cache")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newApp wires backend, store, resolver, interceptor and renderer into the
// router. The returned func releases the backend.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, tp trace.TracerProvider) (http.Handler, func(), error) {
	backend, err := cache.OpenBackend(ctx, cfg.StoreURL)
	if err != nil {
		return nil, nil, err
	}
	closeBackend := func() {
		if err := backend.Close(); err != nil {
			logger.Warn().Err(err).Msg("Closing cache backend failed")
		}
	}

	store, err := cache.NewStore(backend, cache.StoreConfig{
		PartitionCacheSize: cfg.PartitionCacheSize,
		Logger:             logger.With().Str("component", "cache").Logger(),
	})
	if err != nil {
		closeBackend()
		return nil, nil, err
	}

	hooks, err := intercept.New(intercept.Config{
		Store:          store,
		Resolver:       head.NewResolver(head.HTMLScanner{}, logger.With().Str("component", "head").Logger()),
		TracerProvider: tp,
		Logger:         logger.With().Str("component", "intercept").Logger(),
	})
	if err != nil {
		closeBackend()
		return nil, nil, err
	}

	renderCfg := render.DefaultConfig(cfg.RendererURL)
	renderCfg.Timeout = cfg.RenderTimeout
	renderCfg.RateLimit = cfg.RenderRateLimit
	renderCfg.RateBurst = cfg.RenderRateBurst
	renderer, err := render.New(renderCfg)
	if err != nil {
		closeBackend()
		return nil, nil, err
	}

	logger.Info().Str("store_url", redactStoreURL(cfg.StoreURL)).Msg("Connected to cache backend")

	return server.NewRouter(server.NewHandler(hooks, renderer), store, logger), closeBackend, nil
}

// setupTracing installs a global tracer provider exporting spans to w.
func setupTracing(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// redactStoreURL hides the password of a store URL for logging.
func redactStoreURL(storeURL string) string {
	u, err := url.Parse(storeURL)
	if err != nil || u.User == nil {
		return storeURL
	}
	return u.Redacted()
}

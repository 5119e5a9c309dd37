package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcelsud/webhook-inspector/capture"
	"github.com/marcelsud/webhook-inspector/config"
	"github.com/marcelsud/webhook-inspector/internal/http/chi"
	"github.com/marcelsud/webhook-inspector/internal/logger"
	"github.com/marcelsud/webhook-inspector/internal/storage"
	"github.com/marcelsud/webhook-inspector/metrics"
	"github.com/marcelsud/webhook-inspector/sources"
	"github.com/marcelsud/webhook-inspector/synthesis"
	"github.com/marcelsud/webhook-inspector/synthesis/gemini"
	"github.com/rs/zerolog/log"
)

const TIMEOUT = 30 * time.Second

/* Wiring only: the app imports the business layers, which import storage.
 * Imports flow in one direction, downward.
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	repo, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
		return
	}
	defer repo.Close(context.Background())

	sourceLoader := sources.NewLoader(cfg.CaptureStatusCode)
	if cfg.SourcesFile != "" {
		if err := sourceLoader.Load(cfg.SourcesFile); err != nil {
			log.Error().Err(err).Str("file", cfg.SourcesFile).Msg("failed to load sources")
			return
		}
		log.Info().Int("sources", len(sourceLoader.List())).Msg("capture restricted to configured sources")
	}

	collector := metrics.NewStoreCollector(repo)
	exporter, err := metrics.NewOTelExporter(collector)
	if err != nil {
		log.Error().Err(err).Msg("failed to create metrics exporter")
		return
	}
	defer exporter.Shutdown(context.Background())

	captureService := capture.NewService(repo, cfg.PageSize, cfg.MaxPageSize)
	gen, err := generator(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to create generator")
		return
	}
	synthesisService := synthesis.NewService(repo, gen, cfg.SynthesisLanguage)

	r := chi.Handlers(captureService, synthesisService, chi.Options{
		LogLevel:               cfg.LogLevel,
		Sources:                sourceLoader,
		Health:                 repo,
		Collector:              collector,
		Recorder:               exporter,
		Metrics:                exporter.ServeHTTP(),
		MaxBodyBytes:           cfg.MaxBodyBytes,
		CORSOrigins:            cfg.CORSOrigins,
		SynthesisTimeout:       cfg.SynthesisTimeout(),
		SynthesisRatePerMinute: cfg.SynthesisRatePerMinute,
	})
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.SynthesisTimeout() + 10*time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, errShutdown)
	log.Info().
		Str("port", cfg.Port).
		Str("driver", cfg.StoreDriver).
		Bool("synthesis", cfg.SynthesisEnabled()).
		Msg("listening")
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server failed")
		return
	}
	err = <-errShutdown
	if err != nil {
		log.Error().Err(err).Msg("shutdown failed")
		return
	}
}

// generator picks the Gemini client when a key is configured
func generator(ctx context.Context, cfg *config.Config) (synthesis.Generator, error) {
	if !cfg.SynthesisEnabled() {
		log.Warn().Msg("GEMINI_API_KEY not set, code generation disabled")
		return synthesis.Unavailable{}, nil
	}
	return gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel,
		gemini.WithBaseURL(cfg.GeminiBaseURL),
		gemini.WithTimeout(cfg.SynthesisTimeout()),
	)
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		log.Info().Msg("shutting down server")
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("forcing closing the server: %w", err)
	default:
		errShutdown <- fmt.Errorf("forcing closing the server: %w", err)
	}
}

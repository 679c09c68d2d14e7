package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trading-rag/internal/app"
	"trading-rag/internal/config"
	"trading-rag/internal/models"
	"trading-rag/internal/rag"
	"trading-rag/internal/server"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources := []rag.Source{
		{Collection: models.RulesCollection, Label: models.RulesLabel},
		{Collection: models.DataCollection, Label: models.DataLabel},
	}
	a, err := app.Build(ctx, cfg, sources)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building application")
	}
	defer a.Close()

	var (
		answerer server.Answerer
		ingester server.Ingester
	)
	if a.BackendErr == nil {
		answerer = a.Orchestrator
		ingester = a.Pipeline

		if cfg.RulesPath != "" {
			if err := a.Pipeline.EnsureIngested(ctx, models.RulesCollection, cfg.RulesPath, nil); err != nil {
				log.Warn().Err(err).Msg("Failed to ingest trading rules")
			}
		}
	}

	srv := server.New(answerer, a.Market, ingester, a.BackendErr, cfg.Server.Host, cfg.Server.Port)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
}

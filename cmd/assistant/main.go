package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"trading-rag/internal/app"
	"trading-rag/internal/config"
	"trading-rag/internal/models"
	"trading-rag/internal/rag"
	"trading-rag/internal/tui"
)

const configFilePath = "./configs/config.yaml"

func main() {
	bookPath := flag.String("book", "", "Path to the trading book (overrides config)")
	rulesPath := flag.String("rules", "", "Path to the trading rules document (overrides config)")
	flag.Parse()

	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *bookPath != "" {
		cfg.BookPath = *bookPath
	}
	if *rulesPath != "" {
		cfg.RulesPath = *rulesPath
	}

	setupLogging(cfg.DataDir)

	ctx := context.Background()
	sources := []rag.Source{
		{Collection: models.DocsCollection, Label: models.DocsLabel},
		{Collection: models.RulesCollection, Label: models.RulesLabel},
	}
	a, err := app.Build(ctx, cfg, sources)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build application: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()
	if a.BackendErr != nil {
		fmt.Fprintf(os.Stderr, "%v\n", a.BackendErr)
		os.Exit(1)
	}

	if err := a.Pipeline.EnsureIngested(ctx, models.DocsCollection, cfg.BookPath, printProgress); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ingest book: %v\n", err)
		os.Exit(1)
	}
	if cfg.RulesPath != "" {
		if err := a.Pipeline.EnsureIngested(ctx, models.RulesCollection, cfg.RulesPath, printProgress); err != nil {
			log.Warn().Err(err).Msg("Failed to ingest trading rules")
		}
	}

	m := tui.New(a.Orchestrator, a.Pipeline, models.DocsCollection, cfg.BookPath)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// setupLogging sends zerolog to a file; console output would corrupt the
// terminal UI.
func setupLogging(dataDir string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Logger = zerolog.New(io.Discard)
		return
	}
	f, err := os.OpenFile(filepath.Join(dataDir, "assistant.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Logger = zerolog.New(io.Discard)
		return
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
}

func printProgress(done, total int) {
	fmt.Printf("\rIngesting... %d/%d chunks", done, total)
	if done == total {
		fmt.Println()
	}
}

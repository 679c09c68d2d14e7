// Package server exposes the retrieval and analysis flows over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"trading-rag/internal/analyzer"
	"trading-rag/internal/market"
	"trading-rag/internal/models"
)

// Answerer is the RAG flow the /query endpoint drives.
type Answerer interface {
	Answer(ctx context.Context, query string) string
}

// Marketer produces per-symbol summaries for /analyze-market.
type Marketer interface {
	Summary(symbol string) (*market.Summary, error)
}

// Ingester feeds an uploaded document into a collection. A nil ingester
// disables upload ingestion; /analyze-csv still returns insights.
type Ingester interface {
	ProcessDocument(ctx context.Context, collection, path string, progress func(done, total int)) error
}

// Server is the HTTP front-end.
type Server struct {
	echo       *echo.Echo
	answerer   Answerer
	marketer   Marketer
	ingester   Ingester
	backendErr error
	host       string
	port       int
}

// New builds the server. A non-nil backendErr puts the RAG endpoint in
// degraded mode: the process serves, /query reports the configuration
// problem.
func New(answerer Answerer, marketer Marketer, ingester Ingester, backendErr error, host string, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.Info().
				Str("method", c.Request().Method).
				Str("uri", c.Request().RequestURI).
				Int("status", c.Response().Status).
				Dur("duration", time.Since(start)).
				Msg("http request")
			return err
		}
	})

	s := &Server{
		echo:       e,
		answerer:   answerer,
		marketer:   marketer,
		ingester:   ingester,
		backendErr: backendErr,
		host:       host,
		port:       port,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleIndex)
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/query", s.handleQuery)
	s.echo.POST("/analyze-market", s.handleAnalyzeMarket)
	s.echo.POST("/analyze-csv", s.handleAnalyzeCSV)
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse carries the orchestrator answer.
type QueryResponse struct {
	Answer string `json:"answer"`
}

// MarketRequest is the body of POST /analyze-market.
type MarketRequest struct {
	Symbol string `json:"symbol"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if s.backendErr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, s.backendErr.Error())
	}

	answer := s.answerer.Answer(c.Request().Context(), req.Query)
	return c.JSON(http.StatusOK, QueryResponse{Answer: answer})
}

func (s *Server) handleAnalyzeMarket(c echo.Context) error {
	var req MarketRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Symbol == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "symbol field is required")
	}

	summary, err := s.marketer.Summary(req.Symbol)
	if err != nil {
		if errors.Is(err, market.ErrNoData) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) handleAnalyzeCSV(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}

	path, cleanup, err := saveUpload(fh)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read uploaded file")
	}
	defer cleanup()

	a, err := analyzer.LoadFile(path)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("failed to load CSV file: %v", err))
	}

	// make the upload queryable alongside the rules; insights are served
	// even when ingestion is unavailable or fails
	if s.ingester != nil && s.backendErr == nil {
		if err := s.ingester.ProcessDocument(c.Request().Context(), models.DataCollection, path, nil); err != nil {
			log.Warn().Err(err).Str("file", fh.Filename).Msg("Failed to ingest uploaded CSV")
		}
	}

	return c.JSON(http.StatusOK, a.Insights())
}

// saveUpload writes the multipart file into a scratch directory so both
// the analyzer and the ingestion pipeline can read it from disk.
func saveUpload(fh *multipart.FileHeader) (string, func(), error) {
	src, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	dir, err := os.MkdirTemp("", "csv-upload-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { os.RemoveAll(dir) }

	path := filepath.Join(dir, filepath.Base(fh.Filename))
	dst, err := os.Create(path)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}

// Start runs the server until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	log.Info().Str("addr", addr).Msg("Starting HTTP server")
	return s.echo.Start(addr)
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

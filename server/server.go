// Package server exposes training, prediction and artifact listing over HTTP.
package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/YuminosukeSato/scigo-serve/datasets"
	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
	"github.com/YuminosukeSato/scigo-serve/runs"
	"github.com/YuminosukeSato/scigo-serve/storage"
)

// RunLedger records training requests.
type RunLedger interface {
	Start(ctx context.Context, dataset, model string) (string, error)
	Finish(ctx context.Context, id, artifact string, metrics any) error
	Fail(ctx context.Context, id string, cause error) error
	List(ctx context.Context, limit int) ([]runs.Run, error)
}

// Server is the HTTP application.
type Server struct {
	echo     *echo.Echo
	datasets *datasets.Registry
	storage  storage.ArtifactStorage
	runs     RunLedger
	logger   log.Logger
}

// New builds the application and registers its routes.
func New(ds *datasets.Registry, st storage.ArtifactStorage, ledger RunLedger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		datasets: ds,
		storage:  st,
		runs:     ledger,
		logger:   log.GetLoggerWithName("server"),
	}
	e.HTTPErrorHandler = s.handleError
	e.Use(middleware.Recover())
	e.Use(requestLogger(s.logger))

	e.GET("/health", s.health)
	e.GET("/", s.root)
	e.GET("/datasets", s.listDatasets)
	e.GET("/models", s.listModels)
	e.POST("/models/train", s.train)
	e.POST("/models/predict", s.predict)
	e.GET("/models/artifacts", s.listArtifacts)
	e.GET("/models/runs", s.listRuns)
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr. It returns nil after Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("Server starting", "addr", addr)
	for _, r := range s.echo.Routes() {
		s.logger.Debug("Route registered", log.HTTPMethodKey, r.Method, log.HTTPPathKey, r.Path)
	}
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "listen on %s", addr)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

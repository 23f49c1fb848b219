package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/YuminosukeSato/scigo-serve/datasets"
	"github.com/YuminosukeSato/scigo-serve/models"
	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
	"github.com/YuminosukeSato/scigo-serve/runs"
	"github.com/YuminosukeSato/scigo-serve/trainer"
)

// DefaultRunsLimit is the number of runs GET /models/runs returns without a limit parameter.
const DefaultRunsLimit = 50

// DatasetOptions selects a registered dataset.
type DatasetOptions struct {
	Name string `json:"name"`
}

// ModelOptions selects a registered model family and its configuration.
type ModelOptions struct {
	Name          string        `json:"name"`
	Configuration models.Config `json:"configuration"`
}

// TrainRequest is the body of POST /models/train.
type TrainRequest struct {
	Dataset DatasetOptions `json:"dataset"`
	Model   ModelOptions   `json:"model"`
}

// TrainResponse is the body returned by POST /models/train.
type TrainResponse struct {
	ArtifactName string          `json:"artifact_name"`
	Metrics      trainer.Metrics `json:"metrics"`
	RunID        string          `json:"run_id"`
}

// PredictRequest is the body of POST /models/predict.
type PredictRequest struct {
	ModelArtifactName string   `json:"model_artifact_name"`
	Data              []string `json:"data"`
}

// PredictResponse is the body returned by POST /models/predict.
type PredictResponse struct {
	Predictions []int `json:"predictions"`
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Hello World"})
}

func (s *Server) listDatasets(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"datasets": s.datasets.Names()})
}

func (s *Server) listModels(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string][]string{"models": models.Names()})
}

func (s *Server) listArtifacts(c echo.Context) error {
	names, err := s.storage.List()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string][]string{"artifacts": names})
}

func (s *Server) listRuns(c echo.Context) error {
	limit := DefaultRunsLimit
	if q := c.QueryParam("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			return errors.NewValidationError("limit", "must be a positive integer", q)
		}
		limit = n
	}
	list, err := s.runs.List(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if list == nil {
		list = []runs.Run{}
	}
	return c.JSON(http.StatusOK, map[string][]runs.Run{"runs": list})
}

func (s *Server) validateTrain(req TrainRequest) error {
	if !s.datasets.Has(req.Dataset.Name) {
		return errors.NewValidationError("dataset.name", fmt.Sprintf("must be one of %v", s.datasets.Names()), req.Dataset.Name)
	}
	if !models.Has(req.Model.Name) {
		return errors.NewValidationError("model.name", fmt.Sprintf("must be one of %v", models.Names()), req.Model.Name)
	}
	return nil
}

func (s *Server) train(c echo.Context) error {
	var req TrainRequest
	if err := c.Bind(&req); err != nil {
		return errors.NewValidationError("body", "malformed train request", err.Error())
	}
	if err := s.validateTrain(req); err != nil {
		return err
	}

	// the ledger must reach a final status even if the client goes away mid-fit
	ctx := context.WithoutCancel(c.Request().Context())
	runID, err := s.runs.Start(ctx, req.Dataset.Name, req.Model.Name)
	if err != nil {
		return err
	}
	logger := s.logger.With(log.RunIDKey, runID, log.DatasetNameKey, req.Dataset.Name, log.ModelNameKey, req.Model.Name)

	begin := time.Now()
	artifact, metrics, err := s.runTraining(req)
	if err != nil {
		if ferr := s.runs.Fail(ctx, runID, err); ferr != nil {
			logger.Error("Failed to record run failure", ferr)
		}
		return err
	}
	if err := s.runs.Finish(ctx, runID, artifact, metrics); err != nil {
		logger.Error("Failed to record run result", err)
	}

	logger.Info("Training finished",
		log.ArtifactNameKey, artifact,
		log.AccuracyKey, metrics.Accuracy,
		log.F1Key, metrics.F1,
		log.DurationMsKey, time.Since(begin).Milliseconds(),
	)
	return c.JSON(http.StatusOK, TrainResponse{ArtifactName: artifact, Metrics: metrics, RunID: runID})
}

// runTraining loads both splits, fits a fresh model, evaluates it on the
// test split and stores it.
func (s *Server) runTraining(req TrainRequest) (string, trainer.Metrics, error) {
	train, err := s.datasets.Load(req.Dataset.Name, datasets.SplitTrain)
	if err != nil {
		return "", trainer.Metrics{}, err
	}
	test, err := s.datasets.Load(req.Dataset.Name, datasets.SplitTest)
	if err != nil {
		return "", trainer.Metrics{}, err
	}
	model, err := models.New(req.Model.Name, req.Model.Configuration)
	if err != nil {
		return "", trainer.Metrics{}, err
	}

	tr := trainer.New(model, train, test)
	if _, err := tr.Fit(); err != nil {
		return "", trainer.Metrics{}, err
	}
	metrics, err := tr.Evaluate(nil)
	if err != nil {
		return "", trainer.Metrics{}, err
	}
	artifact, err := s.storage.Save(tr.Model(), req.Dataset.Name)
	if err != nil {
		return "", trainer.Metrics{}, err
	}
	return artifact, metrics, nil
}

func (s *Server) predict(c echo.Context) error {
	var req PredictRequest
	if err := c.Bind(&req); err != nil {
		return errors.NewValidationError("body", "malformed predict request", err.Error())
	}
	if req.ModelArtifactName == "" {
		return errors.NewValidationError("model_artifact_name", "is required", req.ModelArtifactName)
	}

	model, err := s.storage.Load(req.ModelArtifactName)
	if err != nil {
		return err
	}
	pred, err := model.Predict(datasets.NewData(req.Data))
	if err != nil {
		return err
	}
	out := pred.Ints()
	if out == nil {
		out = []int{}
	}
	s.logger.Debug("Predicted",
		log.ArtifactNameKey, req.ModelArtifactName,
		log.SamplesKey, len(out),
	)
	return c.JSON(http.StatusOK, PredictResponse{Predictions: out})
}

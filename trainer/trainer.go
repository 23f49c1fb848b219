// Package trainer fits a model on a training dataset and evaluates it on a
// held-out one.
package trainer

import (
	"time"

	"github.com/YuminosukeSato/scigo-serve/datasets"
	"github.com/YuminosukeSato/scigo-serve/metrics"
	"github.com/YuminosukeSato/scigo-serve/models"
	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
)

// Metrics are binary classification scores against the positive label 1.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	F1        float64 `json:"f1"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// Trainer orchestrates fit, predict and evaluate for one model.
type Trainer struct {
	model  models.Model
	train  *datasets.Dataset
	test   *datasets.Dataset
	logger log.Logger
}

// New creates a Trainer. test may be nil.
func New(model models.Model, train, test *datasets.Dataset) *Trainer {
	return &Trainer{
		model:  model,
		train:  train,
		test:   test,
		logger: log.GetLoggerWithName("trainer").With(log.ModelNameKey, model.Name()),
	}
}

// Model returns the held model.
func (t *Trainer) Model() models.Model { return t.model }

// Fit fits the model on the training dataset and returns it.
func (t *Trainer) Fit() (models.Model, error) {
	if t.train == nil {
		return nil, errors.NewStateError("Trainer.Fit", "no training dataset")
	}
	start := time.Now()
	t.logger.Info("Fitting model",
		log.OperationKey, log.OperationFit,
		log.DatasetNameKey, t.train.Name(),
		log.SamplesKey, t.train.Len(),
	)
	if err := t.model.Fit(t.train); err != nil {
		return nil, err
	}
	t.logger.Info("Model fitted",
		log.OperationKey, log.OperationFit,
		log.DatasetNameKey, t.train.Name(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return t.model, nil
}

// Predict predicts labels for data, or for the test dataset when data is nil.
// With neither it returns a StateError.
func (t *Trainer) Predict(data *datasets.Data) (datasets.Targets, error) {
	if data == nil {
		if t.test == nil {
			return datasets.Targets{}, errors.NewStateError("Trainer.Predict",
				"data must be provided when there is no test dataset")
		}
		d := t.test.Data()
		data = &d
	}
	t.logger.Debug("Predicting", log.OperationKey, log.OperationPredict, log.SamplesKey, data.Len())
	return t.model.Predict(*data)
}

// Evaluate predicts on ds, or on the test dataset when ds is nil, and scores
// the predictions. Metrics are computed afresh on every call.
func (t *Trainer) Evaluate(ds *datasets.Dataset) (Metrics, error) {
	if ds == nil {
		if t.test == nil {
			return Metrics{}, errors.NewStateError("Trainer.Evaluate",
				"a dataset must be provided when there is no test dataset")
		}
		ds = t.test
	}
	data := ds.Data()
	predicted, err := t.Predict(&data)
	if err != nil {
		return Metrics{}, err
	}
	m, err := ComputeMetrics(predicted, ds.Targets())
	if err != nil {
		return Metrics{}, err
	}
	t.logger.Info("Model evaluated",
		log.OperationKey, log.OperationEvaluate,
		log.DatasetNameKey, ds.Name(),
		log.AccuracyKey, m.Accuracy,
		log.F1Key, m.F1,
		log.PrecisionKey, m.Precision,
		log.RecallKey, m.Recall,
	)
	return m, nil
}

// ComputeMetrics scores predicted against truth.
func ComputeMetrics(predicted, truth datasets.Targets) (Metrics, error) {
	yPred := metrics.LabelsToVec(predicted.Ints())
	yTrue := metrics.LabelsToVec(truth.Ints())

	var m Metrics
	var err error
	if m.Accuracy, err = metrics.Accuracy(yTrue, yPred); err != nil {
		return Metrics{}, err
	}
	if m.F1, err = metrics.F1(yTrue, yPred); err != nil {
		return Metrics{}, err
	}
	if m.Precision, err = metrics.Precision(yTrue, yPred); err != nil {
		return Metrics{}, err
	}
	if m.Recall, err = metrics.Recall(yTrue, yPred); err != nil {
		return Metrics{}, err
	}
	return m, nil
}

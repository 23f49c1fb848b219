package models

import (
	"sort"

	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
)

// Registered model family names.
const (
	LogisticRegression = "logistic_regression"
	LightGBM           = "lightgbm"
)

// family is one registered kind of Model: how to build its estimator from
// model_configuration and which file holds the estimator state.
type family struct {
	name         string
	stateFile    string
	newEstimator func(params map[string]any) (Estimator, error)
}

// families is read-only after package initialisation.
var families = map[string]*family{
	LogisticRegression: {
		name:         LogisticRegression,
		stateFile:    "model.json",
		newEstimator: newLogisticEstimator,
	},
	LightGBM: {
		name:         LightGBM,
		stateFile:    "model.txt",
		newEstimator: newLightGBMEstimator,
	},
}

// Names returns the registered model names, sorted.
func Names() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name is a registered model.
func Has(name string) bool {
	_, ok := families[name]
	return ok
}

func lookup(name string) (*family, error) {
	f, ok := families[name]
	if !ok {
		return nil, errors.NewUnknownNameError("model", name, Names())
	}
	return f, nil
}

// New builds an unfitted model of the named family. An unknown name, an
// unknown preprocessor or invalid parameters are a ConfigError.
func New(name string, cfg Config) (Model, error) {
	f, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return newPipelineModel(f, cfg)
}

// Load restores a model of the named family from an artifact directory.
// A missing directory is a NotFoundError.
func Load(name, path string) (Model, error) {
	f, err := lookup(name)
	if err != nil {
		return nil, err
	}
	return load(f, path)
}

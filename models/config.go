// Package models binds a preprocessing pipeline to an estimator family and
// defines the artifact layout used to persist the pair.
//
// A Model is built from a Config, the data-independent recipe. Its fitted
// state (the pipeline's learned vocabulary, the estimator's coefficients or
// trees) is only obtained through Fit or Load.
package models

import (
	"bytes"
	"encoding/json"

	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/preprocessing"
)

// Config is the serializable recipe of a Model.
type Config struct {
	Preprocessor       preprocessing.ComposeConfig `json:"preprocessor"`
	ModelConfiguration map[string]any              `json:"model_configuration,omitempty"`
}

// decodeParams strictly decodes estimator parameters into dst. Unknown keys
// and type mismatches are a ConfigError naming the model family.
func decodeParams(family string, params map[string]any, dst any) error {
	if len(params) == 0 {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return errors.NewConfigError("model", family, err.Error())
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.NewConfigError("model", family, err.Error())
	}
	return nil
}

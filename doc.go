// Package scigoserve is a model training and inference service for short text
// classification.
//
// A client names a registered dataset and a model family, and supplies a
// declarative configuration. The service builds a preprocessing pipeline from
// that configuration, fits the model and evaluates it on the held-out split. It
// then stores the fitted model as a reloadable artifact and answers prediction
// requests against stored artifacts by name.
//
// # Quick Start
//
//	go run ./cmd/scigo-serve --config config.yaml
//
//	curl -X POST localhost:8000/models/train -d '{
//	  "dataset": {"name": "dvach"},
//	  "model": {
//	    "name": "logistic_regression",
//	    "configuration": {
//	      "preprocessor": {"preprocessors": [
//	        {"name": "tfidf", "params": {}},
//	        {"name": "drop", "params": {"columns": ["text"]}}
//	      ]},
//	      "model_configuration": {"random_state": 42}
//	    }
//	  }
//	}' -H 'Content-Type: application/json'
//
//	curl -X POST localhost:8000/models/predict -d '{
//	  "model_artifact_name": "1__logistic_regression__dvach",
//	  "data": ["some text"]
//	}' -H 'Content-Type: application/json'
//
// # Packages
//
//   - datasets: immutable Data / Targets / Dataset and the CSV dataset registry
//   - preprocessing: named preprocessors (tfidf, drop, text_stats) and Compose
//   - models: model families, configuration and the artifact directory contract
//   - sklearn/linear_model, sklearn/lightgbm: the estimators behind the families
//   - trainer: fit / predict / evaluate orchestration and metrics
//   - storage: artifact naming, listing, loading and the loaded-model cache
//   - runs: SQLite ledger of training requests
//   - server: HTTP surface (echo)
//   - config: YAML configuration with environment overrides
//   - core/frame, core/model, core/parallel: tables, estimator state, fan-out
//   - pkg/errors, pkg/log: typed errors and structured logging
//
// # Artifact layout
//
// Each artifact is a directory named "{index}__{model}__{dataset}" holding
//
//	config.json        model configuration
//	preprocessor.gob   fitted preprocessing pipeline
//	model.json         logistic regression weights, or
//	model.txt          LightGBM text model
//
// Artifacts are written to a hidden staging directory and renamed into place,
// so a visible artifact is always complete.
package scigoserve

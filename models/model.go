package models

import (
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scigo-serve/core/model"
	"github.com/YuminosukeSato/scigo-serve/datasets"
	"github.com/YuminosukeSato/scigo-serve/pkg/errors"
	"github.com/YuminosukeSato/scigo-serve/pkg/log"
	"github.com/YuminosukeSato/scigo-serve/preprocessing"
)

// Files of an artifact directory.
const (
	ConfigFile       = "config.json"
	PreprocessorFile = "preprocessor.gob"
)

// StagingPrefix marks the hidden sibling directory a Save writes into before
// renaming it into place.
const StagingPrefix = ".staging-"

// Model is a preprocessing pipeline plus an estimator.
type Model interface {
	// Name returns the registered family name, e.g. "logistic_regression".
	Name() string

	// Config returns the recipe the model was built from.
	Config() Config

	// Steps returns the pipeline step names in execution order.
	Steps() []string

	// Fit fits the pipeline and the estimator from scratch on ds.
	Fit(ds *datasets.Dataset) error

	// Predict transforms data with the fitted pipeline and predicts labels.
	Predict(data datasets.Data) (datasets.Targets, error)

	// Save writes the artifact directory at path, which must not exist.
	Save(path string) error
}

// Estimator is what a model family adds to model.Classifier: persistence of
// its fitted state as one file.
type Estimator interface {
	model.Classifier

	SaveState(w io.Writer) error
	LoadState(r io.Reader) error
}

// featureNamer is implemented by estimators that record feature names in
// their state file.
type featureNamer interface {
	SetFeatureNames(names []string)
}

type pipelineModel struct {
	family       *family
	config       Config
	preprocessor *preprocessing.Compose
	estimator    Estimator
	logger       log.Logger
}

func newPipelineModel(f *family, cfg Config) (*pipelineModel, error) {
	pre, err := preprocessing.NewCompose(cfg.Preprocessor)
	if err != nil {
		return nil, err
	}
	est, err := f.newEstimator(cfg.ModelConfiguration)
	if err != nil {
		return nil, err
	}
	return &pipelineModel{
		family:       f,
		config:       cfg,
		preprocessor: pre,
		estimator:    est,
		logger:       log.GetLoggerWithName("models").With(log.ModelNameKey, f.name),
	}, nil
}

func (m *pipelineModel) Name() string { return m.family.name }

func (m *pipelineModel) Config() Config { return m.config }

func (m *pipelineModel) Steps() []string { return m.preprocessor.Steps() }

func (m *pipelineModel) Fit(ds *datasets.Dataset) (err error) {
	defer errors.Recover(&err, "Model.Fit")
	start := time.Now()
	features, err := m.preprocessor.FitTransform(ds.Data().Table())
	if err != nil {
		return err
	}
	X, names, err := features.Matrix()
	if err != nil {
		return err
	}
	if fn, ok := m.estimator.(featureNamer); ok {
		fn.SetFeatureNames(names)
	}
	if err := m.estimator.Fit(X, ds.Targets().Ints()); err != nil {
		return err
	}

	rows, cols := X.Dims()
	m.logger.Info("Model fitted",
		log.OperationKey, log.OperationFit,
		log.DatasetNameKey, ds.Name(),
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (m *pipelineModel) Predict(data datasets.Data) (_ datasets.Targets, err error) {
	defer errors.Recover(&err, "Model.Predict")
	if data.Len() == 0 {
		return datasets.NewTargets(nil), nil
	}
	X, err := m.transform(data)
	if err != nil {
		return datasets.Targets{}, err
	}
	pred, err := m.estimator.Predict(X)
	if err != nil {
		return datasets.Targets{}, err
	}
	return datasets.NewTargets(pred), nil
}

func (m *pipelineModel) transform(data datasets.Data) (mat.Matrix, error) {
	features, err := m.preprocessor.Transform(data.Table())
	if err != nil {
		return nil, err
	}
	X, _, err := features.Matrix()
	if err != nil {
		return nil, err
	}
	return X, nil
}

// Save writes config.json, the pipeline state and the estimator state into a
// staging directory next to path and renames it into place, so path is either
// absent or complete.
func (m *pipelineModel) Save(path string) (err error) {
	if !m.estimator.IsFitted() {
		return errors.NewNotFittedError(m.family.name, "Save")
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return errors.NewConflictError("artifact", filepath.Base(path))
	} else if !os.IsNotExist(statErr) {
		return errors.Wrapf(statErr, "stat %s", path)
	}

	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", parent)
	}
	staging := filepath.Join(parent, StagingPrefix+uuid.NewString())
	if err := os.Mkdir(staging, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", staging)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(staging)
		}
	}()

	if err := writeFile(staging, ConfigFile, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m.config)
	}); err != nil {
		return err
	}
	if err := writeFile(staging, PreprocessorFile, m.preprocessor.Encode); err != nil {
		return err
	}
	if err := writeFile(staging, m.family.stateFile, m.estimator.SaveState); err != nil {
		return err
	}

	if err := os.Rename(staging, path); err != nil {
		if errors.Is(err, fs.ErrExist) || errors.Is(err, syscall.ENOTEMPTY) {
			return errors.NewConflictError("artifact", filepath.Base(path))
		}
		return errors.Wrapf(err, "rename %s", staging)
	}

	m.logger.Info("Model saved",
		log.OperationKey, log.OperationSave,
		log.ArtifactPathKey, path,
	)
	return nil
}

func writeFile(dir, name string, write func(io.Writer) error) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return errors.Wrapf(err, "create %s", name)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", name)
	}
	return f.Close()
}

// load rebuilds an unfitted model from config.json, then replaces its
// pipeline with the decoded fitted one and restores the estimator state.
func load(f *family, path string) (Model, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, errors.NewNotFoundError("artifact", filepath.Base(path))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "stat %s", path)
	}
	if !info.IsDir() {
		return nil, errors.NewValueError("models.Load", path+" is not a directory")
	}

	var cfg Config
	if err := readFile(path, ConfigFile, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&cfg)
	}); err != nil {
		return nil, err
	}

	m, err := newPipelineModel(f, cfg)
	if err != nil {
		return nil, err
	}

	if err := readFile(path, PreprocessorFile, func(r io.Reader) error {
		pre, err := preprocessing.DecodeCompose(r)
		if err != nil {
			return err
		}
		if !slices.Equal(pre.Steps(), m.preprocessor.Steps()) {
			return errors.NewValueError("models.Load", "fitted pipeline steps do not match "+ConfigFile)
		}
		m.preprocessor = pre
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readFile(path, f.stateFile, m.estimator.LoadState); err != nil {
		return nil, err
	}

	m.logger.Info("Model loaded",
		log.OperationKey, log.OperationLoad,
		log.ArtifactPathKey, path,
	)
	return m, nil
}

func readFile(dir, name string, read func(io.Reader) error) error {
	f, err := os.Open(filepath.Join(dir, name))
	if os.IsNotExist(err) {
		return errors.NewNotFoundError("artifact file", name)
	}
	if err != nil {
		return errors.Wrapf(err, "open %s", name)
	}
	defer f.Close()
	if err := read(f); err != nil {
		return errors.Wrapf(err, "read %s", name)
	}
	return nil
}

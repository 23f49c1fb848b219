package log

// Model and operation context.
const (
	// ModelNameKey identifies the model family, e.g. "logistic_regression".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation: "fit", "predict", "transform", "evaluate", "save", "load".
	OperationKey = "ml.operation"

	// ComponentKey identifies the component emitting the log.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase ("training", "inference", "preprocessing").
	PhaseKey = "ml.phase"

	// PreprocessorKey names a preprocessing step.
	PreprocessorKey = "preprocessor.name"

	// StepsKey lists the ordered preprocessing steps of a pipeline.
	StepsKey = "preprocessor.steps"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"

	// VocabularyKey is the size of a fitted TF-IDF vocabulary.
	VocabularyKey = "data.vocabulary"

	// DatasetNameKey identifies a registered dataset.
	DatasetNameKey = "dataset.name"

	// SplitKey is the dataset split ("train", "test").
	SplitKey = "dataset.split"
)

// Metrics and timing.
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	F1Key         = "metrics.f1"
	PrecisionKey  = "metrics.precision"
	RecallKey     = "metrics.recall"
	LossKey       = "metrics.loss"
	IterationKey  = "training.iteration"
	PredsKey      = "preds.count"
)

// Storage and serving.
const (
	// ArtifactNameKey identifies a stored model artifact.
	ArtifactNameKey = "artifact.name"

	// ArtifactPathKey is the on-disk location of an artifact.
	ArtifactPathKey = "artifact.path"

	// RunIDKey identifies a training run in the run ledger.
	RunIDKey = "run.id"

	HTTPMethodKey = "http.method"
	HTTPPathKey   = "http.path"
	HTTPStatusKey = "http.status"
	RemoteIPKey   = "http.remote_ip"
)

// Error context.
const (
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationEvaluate     = "evaluate"
	OperationSave         = "save"
	OperationLoad         = "load"

	PhaseTraining      = "training"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)

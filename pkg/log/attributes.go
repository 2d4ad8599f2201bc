package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator, e.g. "ColumnTransformer", "OneHotEncoder".
	ModelNameKey = "model.name"

	// OperationKey is one of the Operation* values below.
	OperationKey = "ml.operation"

	// ComponentKey identifies the package or component emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase (Phase* values below).
	PhaseKey = "ml.phase"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"

	// ColumnKey names a single column a record refers to.
	ColumnKey = "data.column"

	// SplitKey is "train" or "test".
	SplitKey = "data.split"
)

// Pipeline context.
const (
	// StageKey carries the human-readable stage name, e.g. "Data Validation Stage".
	StageKey = "pipeline.stage"

	// RunIDKey identifies one pipeline run; all records of a run share it.
	RunIDKey = "pipeline.run_id"

	// StateKey records a transformation stage state transition target.
	StateKey = "pipeline.state"

	// PathKey is an artifact or input path.
	PathKey = "artifact.path"

	DurationMsKey = "perf.duration_ms"

	RandomSeedKey = "config.random_seed"
)

// Error context.
const (
	// ErrAttrKey holds the error value itself.
	ErrAttrKey = "error"

	// StacktraceAttrKey holds the stack trace extracted from a cockroachdb error.
	StacktraceAttrKey = "stacktrace"

	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationSplit        = "split"
	OperationValidate     = "validate"
	OperationPersist      = "persist"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)

// Standard attribute keys for pipeline logging.
//
// Keys follow a hierarchical naming convention ("model.kind", "data.samples")
// so records from the loader, feature pipeline, registry and evaluation engine
// can be filtered the same way.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "RandomForestRegressor".
	ModelNameKey = "model.name"

	// ModelKindKey identifies the registry kind: "linear", "tree", "forest", "gradient".
	ModelKindKey = "model.kind"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "encode", "evaluate", "learning_curve", "submit"
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the pipeline.
	PhaseKey = "ml.phase"
)

// Data shape and characteristics.
const (
	// SamplesKey indicates the number of rows in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of columns in the feature matrix.
	FeaturesKey = "data.features"

	// ColumnKey names a raw dataset column.
	ColumnKey = "data.column"

	// DatasetKey names the dataset being processed ("train" or "test").
	DatasetKey = "data.set"

	// PathKey is a file path being read or written.
	PathKey = "data.path"
)

// Performance and metric values.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// MAEKey records mean absolute error.
	MAEKey = "metrics.mae"

	// MAPEKey records mean absolute percentage error as a fraction.
	MAPEKey = "metrics.mape"

	// R2ScoreKey records the coefficient of determination.
	R2ScoreKey = "metrics.r2_score"

	// FoldKey records the cross-validation fold index.
	FoldKey = "cv.fold"

	// TrainSizeKey records the number of training rows used for a learning-curve point.
	TrainSizeKey = "cv.train_size"

	// CacheHitKey records whether a fitted model came from the registry cache.
	CacheHitKey = "registry.cache_hit"
)

// Request context.
const (
	// SessionKey identifies a client session owning stored submissions.
	SessionKey = "session.id"

	// LabelKey is the submission label.
	LabelKey = "submission.label"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationFit           = "fit"
	OperationPredict       = "predict"
	OperationEncode        = "encode"
	OperationEvaluate      = "evaluate"
	OperationLearningCurve = "learning_curve"
	OperationSubmit        = "submit"

	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
	PhasePreprocessing = "preprocessing"
)

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "RandomForestRegressor".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed ("fit", "predict", ...).
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging.
	ComponentKey = "ml.component"

	// PhaseKey indicates the lifecycle phase ("training", "inference", ...).
	PhaseKey = "ml.phase"

	// RunIDKey is the identifier stamped on every artifact of one training run.
	RunIDKey = "run.id"
)

// Data shape.
const (
	SamplesKey      = "data.samples"
	FeaturesKey     = "data.features"
	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"

	// DataSourceKey records where the dataset was loaded from ("remote" or "cache").
	DataSourceKey = "data.source"

	// DataURLKey is the remote dataset location.
	DataURLKey = "data.url"

	// PathKey is a filesystem path (cache file, artifact, chart).
	PathKey = "io.path"
)

// Performance and evaluation.
const (
	DurationMsKey = "perf.duration_ms"
	MSEKey        = "metrics.mse"
	RMSEKey       = "metrics.rmse"
	MAEKey        = "metrics.mae"
	R2ScoreKey    = "metrics.r2_score"
	CVR2Key       = "metrics.cv_r2_mean"
	FoldKey       = "cv.fold"
	TreeIndexKey  = "forest.tree"
	NEstimatorKey = "forest.n_estimators"
	NJobsKey      = "forest.n_jobs"
)

// Prediction.
const (
	PredictionKey = "preds.value"
	GradeKey      = "preds.grade"
	CacheHitKey   = "preds.cache_hit"
	CacheSizeKey  = "preds.cache_size"
)

// HTTP serving.
const (
	HTTPMethodKey = "http.method"
	HTTPPathKey   = "http.path"
	HTTPStatusKey = "http.status"
	HTTPClientKey = "http.client_ip"
	HTTPAddrKey   = "http.addr"
)

// Error context.
const (
	// ErrorKey holds the error message.
	ErrorKey = "error"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	// Populated automatically when an error is logged.
	StacktraceKey = "error.stacktrace"
)

// Configuration.
const (
	RandomSeedKey = "config.random_seed"
	TestSizeKey   = "config.test_size"
	CVFoldsKey    = "config.cv_folds"
)

// Standard attribute values.
const (
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationEvaluate = "evaluate"
	OperationLoad     = "load"
	OperationPersist  = "persist"
	OperationFetch    = "fetch"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
	PhaseInference  = "inference"
)

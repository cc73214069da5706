// Package ensemble implements bagged tree ensembles.
package ensemble

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/winequality/core/model"
	"github.com/YuminosukeSato/winequality/core/parallel"
	"github.com/YuminosukeSato/winequality/metrics"
	"github.com/YuminosukeSato/winequality/pkg/errors"
	"github.com/YuminosukeSato/winequality/pkg/log"
	"github.com/YuminosukeSato/winequality/sklearn/tree"
)

// RandomForestRegressor averages the predictions of decision trees, each
// fitted on a bootstrap sample of the training rows.
//
// Tree i draws its bootstrap sample from a PCG generator seeded with
// (randomState, i), so a fixed random state yields the same forest no matter
// how the trees are scheduled across workers.
type RandomForestRegressor struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	randomState     int64
	nJobs           int
	bootstrap       bool
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int

	// Learned parameters
	estimators   []*tree.DecisionTreeRegressor
	featureNames []string

	// Provenance
	runID     string
	trainedAt time.Time

	logger log.Logger
}

// Option configures a RandomForestRegressor.
type Option func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(f *RandomForestRegressor) {
		f.nEstimators = n
	}
}

// WithRandomState seeds bootstrap sampling.
func WithRandomState(seed int64) Option {
	return func(f *RandomForestRegressor) {
		f.randomState = seed
	}
}

// WithNJobs bounds the number of trees fitted concurrently. <= 0 uses every CPU.
func WithNJobs(n int) Option {
	return func(f *RandomForestRegressor) {
		f.nJobs = n
	}
}

// WithBootstrap toggles bootstrap sampling. Without it every tree sees all rows.
func WithBootstrap(enabled bool) Option {
	return func(f *RandomForestRegressor) {
		f.bootstrap = enabled
	}
}

// WithMaxDepth limits the depth of every tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(f *RandomForestRegressor) {
		f.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the per-tree minimum samples to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(f *RandomForestRegressor) {
		f.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the per-tree minimum samples in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(f *RandomForestRegressor) {
		f.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets how many features each split considers. 0 means all.
func WithMaxFeatures(n int) Option {
	return func(f *RandomForestRegressor) {
		f.maxFeatures = n
	}
}

// WithFeatureNames records the column names the forest is trained on.
func WithFeatureNames(names ...string) Option {
	return func(f *RandomForestRegressor) {
		f.featureNames = append([]string(nil), names...)
	}
}

// WithLogger overrides the component logger.
func WithLogger(l log.Logger) Option {
	return func(f *RandomForestRegressor) {
		f.logger = l
	}
}

// NewRandomForestRegressor creates an unfitted forest with scikit-learn defaults:
// 100 trees, bootstrap on, all features per split, fully grown trees.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	f := &RandomForestRegressor{
		state:           model.NewStateManager(),
		nEstimators:     100,
		bootstrap:       true,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = log.GetLoggerWithName("ensemble.random_forest")
	}
	return f
}

// Clone returns an unfitted forest with the same hyperparameters.
func (f *RandomForestRegressor) Clone() *RandomForestRegressor {
	return NewRandomForestRegressor(
		WithNEstimators(f.nEstimators),
		WithRandomState(f.randomState),
		WithNJobs(f.nJobs),
		WithBootstrap(f.bootstrap),
		WithMaxDepth(f.maxDepth),
		WithMinSamplesSplit(f.minSamplesSplit),
		WithMinSamplesLeaf(f.minSamplesLeaf),
		WithMaxFeatures(f.maxFeatures),
		WithFeatureNames(f.featureNames...),
		WithLogger(f.logger),
	)
}

// Fit trains the forest. It is FitContext with a background context.
func (f *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	return f.FitContext(context.Background(), X, y)
}

// FitContext trains every tree, stopping early if ctx is cancelled.
// A panic inside a tree worker is returned as a PanicError.
func (f *RandomForestRegressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return errors.NewValueError("RandomForestRegressor.Fit", "empty input matrix")
	}
	if rows != yRows {
		return errors.NewDimensionError("RandomForestRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("RandomForestRegressor.Fit", 1, yCols, 1)
	}
	if f.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", f.nEstimators)
	}
	if len(f.featureNames) > 0 && len(f.featureNames) != cols {
		return errors.NewDimensionError("RandomForestRegressor.Fit", len(f.featureNames), cols, 1)
	}

	start := time.Now()
	workers := parallel.Workers(f.nJobs)
	f.logger.Debug("Fitting forest",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		log.NEstimatorKey, f.nEstimators,
		log.NJobsKey, workers,
		log.RandomSeedKey, f.randomState,
	)

	// 行列を共有の読み取り専用コピーにしてワーカー間で使い回す
	Xd := mat.DenseCopyOf(X)
	yd := mat.DenseCopyOf(y)

	estimators := make([]*tree.DecisionTreeRegressor, f.nEstimators)
	err = parallel.ForEach(ctx, f.nEstimators, workers, "RandomForestRegressor.fitTree", func(i int) error {
		rng := rand.New(rand.NewPCG(uint64(f.randomState), uint64(i)))
		indices := f.sampleIndices(rng, rows)

		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(f.maxDepth),
			tree.WithMinSamplesSplit(f.minSamplesSplit),
			tree.WithMinSamplesLeaf(f.minSamplesLeaf),
			tree.WithMaxFeatures(f.maxFeatures),
			tree.WithRandomState(rng.Uint64()),
		)
		if err := t.FitIndices(Xd, yd, indices); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
		estimators[i] = t
		return nil
	})
	if err != nil {
		return err
	}

	f.estimators = estimators
	f.state.SetDimensions(cols, rows)
	f.state.SetFitted()

	f.logger.Debug("Forest fitted",
		log.OperationKey, log.OperationFit,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// sampleIndices draws a bootstrap sample of size n, or returns every row
// when bootstrapping is disabled.
func (f *RandomForestRegressor) sampleIndices(rng *rand.Rand, n int) []int {
	indices := make([]int, n)
	if !f.bootstrap {
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	for i := range indices {
		indices[i] = rng.IntN(n)
	}
	return indices
}

// Predict returns an n×1 matrix with the mean prediction of all trees.
func (f *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := f.state.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := f.state.RequireFeatures("RandomForestRegressor.Predict", cols); err != nil {
		return nil, err
	}

	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, 256, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			out.Set(i, 0, f.predictRow(row))
		}
	})
	return out, nil
}

// PredictRow predicts a single sample given in training feature order.
func (f *RandomForestRegressor) PredictRow(row []float64) (float64, error) {
	if err := f.state.RequireFitted("RandomForestRegressor", "PredictRow"); err != nil {
		return 0, err
	}
	if err := f.state.RequireFeatures("RandomForestRegressor.PredictRow", len(row)); err != nil {
		return 0, err
	}
	return f.predictRow(row), nil
}

func (f *RandomForestRegressor) predictRow(row []float64) float64 {
	var sum float64
	for _, t := range f.estimators {
		sum += t.PredictRow(row)
	}
	return sum / float64(len(f.estimators))
}

// Score returns R² of the predictions on X.
func (f *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := f.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := y.Dims()
	return metrics.R2Score(
		mat.NewVecDense(rows, mat.Col(nil, 0, y)),
		mat.NewVecDense(rows, mat.Col(nil, 0, pred)),
	)
}

// FeatureImportances returns the mean of the per-tree normalised impurity
// decreases, renormalised to sum to 1. Trees that never split are skipped.
func (f *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if err := f.state.RequireFitted("RandomForestRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	nFeatures, _ := f.state.GetDimensions()
	mean := make([]float64, nFeatures)

	used := 0
	for _, t := range f.estimators {
		if t.NumLeaves() < 2 {
			continue
		}
		imp, err := t.FeatureImportances()
		if err != nil {
			return nil, err
		}
		for j, v := range imp {
			mean[j] += v
		}
		used++
	}
	if used == 0 {
		return mean, nil
	}

	var total float64
	for j := range mean {
		mean[j] /= float64(used)
		total += mean[j]
	}
	if total > 0 {
		for j := range mean {
			mean[j] /= total
		}
	}
	return mean, nil
}

// FeatureImportanceMap keys FeatureImportances by feature name.
func (f *RandomForestRegressor) FeatureImportanceMap() (map[string]float64, error) {
	imp, err := f.FeatureImportances()
	if err != nil {
		return nil, err
	}
	if len(f.featureNames) != len(imp) {
		return nil, errors.NewModelError("RandomForestRegressor.FeatureImportanceMap", "feature names not set", nil)
	}
	out := make(map[string]float64, len(imp))
	for j, v := range imp {
		out[f.featureNames[j]] = v
	}
	return out, nil
}

// FeatureNames returns the training column names.
func (f *RandomForestRegressor) FeatureNames() []string {
	return append([]string(nil), f.featureNames...)
}

// Estimators returns the fitted trees.
func (f *RandomForestRegressor) Estimators() []*tree.DecisionTreeRegressor {
	return f.estimators
}

// SetProvenance stamps the training run identity onto the model.
func (f *RandomForestRegressor) SetProvenance(runID string, trainedAt time.Time) {
	f.runID = runID
	f.trainedAt = trainedAt
}

// RunID returns the identifier of the run that produced the model.
func (f *RandomForestRegressor) RunID() string {
	return f.runID
}

// TrainedAt returns when the model was trained.
func (f *RandomForestRegressor) TrainedAt() time.Time {
	return f.trainedAt
}

// IsFitted returns whether the model has been fitted.
func (f *RandomForestRegressor) IsFitted() bool {
	return f.state.IsFitted()
}

// NFeatures returns the training width.
func (f *RandomForestRegressor) NFeatures() int {
	n, _ := f.state.GetDimensions()
	return n
}

// GetParams returns the hyperparameters using scikit-learn names.
func (f *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      f.nEstimators,
		"random_state":      f.randomState,
		"n_jobs":            f.nJobs,
		"bootstrap":         f.bootstrap,
		"criterion":         "squared_error",
		"max_depth":         f.maxDepth,
		"min_samples_split": f.minSamplesSplit,
		"min_samples_leaf":  f.minSamplesLeaf,
		"max_features":      f.maxFeatures,
	}
}

// String returns the string representation of the model
func (f *RandomForestRegressor) String() string {
	if !f.state.IsFitted() {
		return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, random_state=%d)", f.nEstimators, f.randomState)
	}
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, random_state=%d, n_features=%d, fitted=true)",
		f.nEstimators, f.randomState, f.NFeatures())
}

// forestSnapshot is the gob wire form of a fitted forest.
type forestSnapshot struct {
	NEstimators     int
	RandomState     int64
	NJobs           int
	Bootstrap       bool
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	Estimators      []*tree.DecisionTreeRegressor
	FeatureNames    []string
	RunID           string
	TrainedAt       time.Time
	State           model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (f *RandomForestRegressor) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(forestSnapshot{
		NEstimators:     f.nEstimators,
		RandomState:     f.randomState,
		NJobs:           f.nJobs,
		Bootstrap:       f.bootstrap,
		MaxDepth:        f.maxDepth,
		MinSamplesSplit: f.minSamplesSplit,
		MinSamplesLeaf:  f.minSamplesLeaf,
		MaxFeatures:     f.maxFeatures,
		Estimators:      f.estimators,
		FeatureNames:    f.featureNames,
		RunID:           f.runID,
		TrainedAt:       f.trainedAt,
		State:           f.state.GetState(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode RandomForestRegressor")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (f *RandomForestRegressor) GobDecode(data []byte) error {
	var s forestSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "decode RandomForestRegressor")
	}
	if len(s.Estimators) == 0 && s.State.Fitted {
		return errors.NewModelError("RandomForestRegressor.GobDecode", "fitted model has no trees", nil)
	}

	f.nEstimators = s.NEstimators
	f.randomState = s.RandomState
	f.nJobs = s.NJobs
	f.bootstrap = s.Bootstrap
	f.maxDepth = s.MaxDepth
	f.minSamplesSplit = s.MinSamplesSplit
	f.minSamplesLeaf = s.MinSamplesLeaf
	f.maxFeatures = s.MaxFeatures
	f.estimators = s.Estimators
	f.featureNames = s.FeatureNames
	f.runID = s.RunID
	f.trainedAt = s.TrainedAt
	if f.state == nil {
		f.state = model.NewStateManager()
	}
	f.state.SetState(s.State)
	if f.logger == nil {
		f.logger = log.GetLoggerWithName("ensemble.random_forest")
	}
	return nil
}

var _ model.Regressor = (*RandomForestRegressor)(nil)
var _ model.FeatureImportancer = (*RandomForestRegressor)(nil)

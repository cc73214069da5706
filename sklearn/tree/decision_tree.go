// Package tree implements CART regression trees.
package tree

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/winequality/core/model"
	"github.com/YuminosukeSato/winequality/metrics"
	"github.com/YuminosukeSato/winequality/pkg/errors"
)

const (
	// featureThreshold treats feature values closer than this as equal when
	// looking for split points.
	featureThreshold = 1e-7

	// impurityEpsilon stops splitting nodes whose targets are constant.
	impurityEpsilon = 1e-12
)

// Node is one node of a fitted tree. Leaves have Left == Right == -1.
type Node struct {
	Left      int
	Right     int
	Feature   int
	Threshold float64
	// Value is the mean target of the training samples reaching the node.
	Value    float64
	Samples  int
	Impurity float64
	// Gain is the weighted impurity decrease achieved by the split.
	Gain float64
}

// IsLeaf reports whether the node is terminal.
func (n *Node) IsLeaf() bool {
	return n.Left < 0
}

// DecisionTreeRegressor is a CART regressor minimising squared error.
type DecisionTreeRegressor struct {
	state *model.StateManager

	// Hyperparameters
	maxDepth        int // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0 means all features
	randomState     uint64

	// Learned parameters
	nodes       []Node
	importances []float64
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth limits tree depth. 0 grows until leaves are pure.
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) {
		t.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum samples required to split a node.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum samples required in each child.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets how many features are considered per split.
// 0 considers every feature in index order.
func WithMaxFeatures(n int) Option {
	return func(t *DecisionTreeRegressor) {
		t.maxFeatures = n
	}
}

// WithRandomState seeds the feature sampling used when MaxFeatures is set.
func WithRandomState(seed uint64) Option {
	return func(t *DecisionTreeRegressor) {
		t.randomState = seed
	}
}

// NewDecisionTreeRegressor creates an unfitted tree with scikit-learn defaults.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		state:           model.NewStateManager(),
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Fit builds the tree from all rows of X.
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	rows, _ := X.Dims()
	indices := make([]int, rows)
	for i := range indices {
		indices[i] = i
	}
	return t.FitIndices(X, y, indices)
}

// FitIndices builds the tree from the rows listed in indices. Repeated
// indices count once per occurrence, which is how bootstrap samples are fed in.
func (t *DecisionTreeRegressor) FitIndices(X, y mat.Matrix, indices []int) error {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()

	if rows == 0 || cols == 0 {
		return errors.NewValueError("DecisionTreeRegressor.Fit", "empty input matrix")
	}
	if rows != yRows {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", 1, yCols, 1)
	}
	if len(indices) == 0 {
		return errors.NewValueError("DecisionTreeRegressor.Fit", "no samples selected")
	}
	if t.minSamplesSplit < 2 {
		return errors.NewValidationError("min_samples_split", "must be at least 2", t.minSamplesSplit)
	}
	if t.minSamplesLeaf < 1 {
		return errors.NewValidationError("min_samples_leaf", "must be at least 1", t.minSamplesLeaf)
	}

	b := &builder{
		tree:    t,
		cols:    cols,
		x:       make([]float64, rows*cols),
		y:       make([]float64, rows),
		gains:   make([]float64, cols),
		scratch: make([]sortedValue, len(indices)),
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			b.x[i*cols+j] = X.At(i, j)
		}
		b.y[i] = y.At(i, 0)
	}
	if err := errors.CheckFinite("DecisionTreeRegressor.Fit", b.y, nil); err != nil {
		return err
	}
	if t.maxFeatures > 0 && t.maxFeatures < cols {
		b.rng = rand.New(rand.NewPCG(t.randomState, t.randomState))
	}

	work := make([]int, len(indices))
	copy(work, indices)

	t.nodes = t.nodes[:0]
	b.build(work, 0)
	t.importances = normalize(b.gains)

	t.state.SetDimensions(cols, len(indices))
	t.state.SetFitted()
	return nil
}

// Predict returns an n×1 matrix of predictions.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.state.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	rows, cols := X.Dims()
	if err := t.state.RequireFeatures("DecisionTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}

	out := mat.NewDense(rows, 1, nil)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, t.PredictRow(row))
	}
	return out, nil
}

// PredictRow walks the tree for a single sample. The caller guarantees the
// tree is fitted and len(row) matches the training width.
func (t *DecisionTreeRegressor) PredictRow(row []float64) float64 {
	idx := 0
	for {
		n := &t.nodes[idx]
		if n.IsLeaf() {
			return n.Value
		}
		if row[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
	}
}

// Score returns R² of the predictions on X.
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	rows, _ := y.Dims()
	return metrics.R2Score(
		mat.NewVecDense(rows, mat.Col(nil, 0, y)),
		mat.NewVecDense(rows, mat.Col(nil, 0, pred)),
	)
}

// FeatureImportances returns the impurity-decrease importances normalised to
// sum to 1. A tree that never split reports all zeros.
func (t *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if err := t.state.RequireFitted("DecisionTreeRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	out := make([]float64, len(t.importances))
	copy(out, t.importances)
	return out, nil
}

// Nodes returns the fitted nodes in depth-first order, root first.
func (t *DecisionTreeRegressor) Nodes() []Node {
	return t.nodes
}

// Depth returns the length of the longest root-to-leaf path.
func (t *DecisionTreeRegressor) Depth() int {
	if len(t.nodes) == 0 {
		return 0
	}
	var walk func(idx int) int
	walk = func(idx int) int {
		n := &t.nodes[idx]
		if n.IsLeaf() {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

// NumLeaves counts terminal nodes.
func (t *DecisionTreeRegressor) NumLeaves() int {
	count := 0
	for i := range t.nodes {
		if t.nodes[i].IsLeaf() {
			count++
		}
	}
	return count
}

// IsFitted returns whether the model has been fitted.
func (t *DecisionTreeRegressor) IsFitted() bool {
	return t.state.IsFitted()
}

// GetParams returns the hyperparameters using scikit-learn names.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         "squared_error",
		"max_depth":         t.maxDepth,
		"min_samples_split": t.minSamplesSplit,
		"min_samples_leaf":  t.minSamplesLeaf,
		"max_features":      t.maxFeatures,
		"random_state":      t.randomState,
	}
}

// String returns the string representation of the model
func (t *DecisionTreeRegressor) String() string {
	if !t.state.IsFitted() {
		return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
			t.maxDepth, t.minSamplesSplit, t.minSamplesLeaf)
	}
	return fmt.Sprintf("DecisionTreeRegressor(nodes=%d, leaves=%d, depth=%d, fitted=true)",
		len(t.nodes), t.NumLeaves(), t.Depth())
}

// treeSnapshot is the gob wire form of a fitted tree.
type treeSnapshot struct {
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int
	RandomState     uint64
	Nodes           []Node
	Importances     []float64
	State           model.ModelState
}

// GobEncode implements gob.GobEncoder.
func (t *DecisionTreeRegressor) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(treeSnapshot{
		MaxDepth:        t.maxDepth,
		MinSamplesSplit: t.minSamplesSplit,
		MinSamplesLeaf:  t.minSamplesLeaf,
		MaxFeatures:     t.maxFeatures,
		RandomState:     t.randomState,
		Nodes:           t.nodes,
		Importances:     t.importances,
		State:           t.state.GetState(),
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode DecisionTreeRegressor")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (t *DecisionTreeRegressor) GobDecode(data []byte) error {
	var s treeSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return errors.Wrap(err, "decode DecisionTreeRegressor")
	}
	t.maxDepth = s.MaxDepth
	t.minSamplesSplit = s.MinSamplesSplit
	t.minSamplesLeaf = s.MinSamplesLeaf
	t.maxFeatures = s.MaxFeatures
	t.randomState = s.RandomState
	t.nodes = s.Nodes
	t.importances = s.Importances
	if t.state == nil {
		t.state = model.NewStateManager()
	}
	t.state.SetState(s.State)
	return nil
}

// builder holds the per-fit working set.
type builder struct {
	tree    *DecisionTreeRegressor
	cols    int
	x       []float64 // row-major copy of X
	y       []float64
	gains   []float64 // summed impurity decrease per feature
	scratch []sortedValue
	rng     *rand.Rand
}

type sortedValue struct {
	value float64
	idx   int
}

// split describes the best split found for a node.
type split struct {
	feature   int
	threshold float64
	proxy     float64 // sumL²/nL + sumR²/nR, larger is better
	nLeft     int
}

// build appends the subtree for indices and returns its node index.
func (b *builder) build(indices []int, depth int) int {
	t := b.tree
	n := len(indices)

	var sum, sumSq float64
	for _, idx := range indices {
		v := b.y[idx]
		sum += v
		sumSq += v * v
	}
	mean := sum / float64(n)
	impurity := math.Max(sumSq/float64(n)-mean*mean, 0)

	nodeIdx := len(t.nodes)
	t.nodes = append(t.nodes, Node{
		Left:     -1,
		Right:    -1,
		Feature:  -1,
		Value:    mean,
		Samples:  n,
		Impurity: impurity,
	})

	if n < t.minSamplesSplit ||
		n < 2*t.minSamplesLeaf ||
		(t.maxDepth > 0 && depth >= t.maxDepth) ||
		impurity <= impurityEpsilon {
		return nodeIdx
	}

	best, ok := b.findBestSplit(indices, sum)
	if !ok {
		return nodeIdx
	}

	// gain = N·imp − N_L·imp_L − N_R·imp_R, expressed through the proxy
	gain := best.proxy - sum*sum/float64(n)
	if gain <= 0 {
		return nodeIdx
	}
	b.gains[best.feature] += gain

	left, right := b.partition(indices, best)

	t.nodes[nodeIdx].Feature = best.feature
	t.nodes[nodeIdx].Threshold = best.threshold
	t.nodes[nodeIdx].Gain = gain

	leftChild := b.build(left, depth+1)
	rightChild := b.build(right, depth+1)
	t.nodes[nodeIdx].Left = leftChild
	t.nodes[nodeIdx].Right = rightChild
	return nodeIdx
}

// candidateFeatures returns the features to evaluate at one node.
func (b *builder) candidateFeatures() []int {
	if b.rng == nil {
		features := make([]int, b.cols)
		for j := range features {
			features[j] = j
		}
		return features
	}
	return b.rng.Perm(b.cols)[:b.tree.maxFeatures]
}

// findBestSplit sweeps each candidate feature in sorted order and keeps the
// split with the largest proxy improvement. Ties keep the earlier feature.
func (b *builder) findBestSplit(indices []int, total float64) (split, bool) {
	n := len(indices)
	minLeaf := b.tree.minSamplesLeaf
	best := split{proxy: math.Inf(-1)}
	found := false

	values := b.scratch[:n]
	for _, feature := range b.candidateFeatures() {
		for i, idx := range indices {
			values[i] = sortedValue{value: b.x[idx*b.cols+feature], idx: idx}
		}
		sort.Slice(values, func(i, j int) bool {
			if values[i].value != values[j].value {
				return values[i].value < values[j].value
			}
			return values[i].idx < values[j].idx
		})
		if values[n-1].value <= values[0].value+featureThreshold {
			continue
		}

		var sumLeft float64
		for i := 0; i < n-1; i++ {
			sumLeft += b.y[values[i].idx]
			nLeft := i + 1
			nRight := n - nLeft

			if values[i+1].value <= values[i].value+featureThreshold {
				continue
			}
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}

			sumRight := total - sumLeft
			proxy := sumLeft*sumLeft/float64(nLeft) + sumRight*sumRight/float64(nRight)
			if proxy > best.proxy {
				threshold := values[i].value/2 + values[i+1].value/2
				if threshold == values[i+1].value || math.IsInf(threshold, 0) {
					threshold = values[i].value
				}
				best = split{feature: feature, threshold: threshold, proxy: proxy, nLeft: nLeft}
				found = true
			}
		}
	}
	return best, found
}

// partition splits indices by the chosen threshold.
func (b *builder) partition(indices []int, s split) (left, right []int) {
	left = make([]int, 0, s.nLeft)
	right = make([]int, 0, len(indices)-s.nLeft)
	for _, idx := range indices {
		if b.x[idx*b.cols+s.feature] <= s.threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	return left, right
}

func normalize(values []float64) []float64 {
	out := make([]float64, len(values))
	var total float64
	for _, v := range values {
		total += v
	}
	if total <= 0 {
		return out
	}
	for i, v := range values {
		out[i] = v / total
	}
	return out
}

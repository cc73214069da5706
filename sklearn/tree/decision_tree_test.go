package tree

import (
	"bytes"
	"encoding/gob"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

func stepData() (*mat.Dense, *mat.Dense) {
	// y depends only on feature 1: 3 below 0.5, 7 above
	X := mat.NewDense(8, 2, []float64{
		0.9, 0.1,
		0.2, 0.2,
		0.4, 0.3,
		0.7, 0.4,
		0.1, 0.6,
		0.3, 0.7,
		0.8, 0.8,
		0.5, 0.9,
	})
	y := mat.NewDense(8, 1, []float64{3, 3, 3, 3, 7, 7, 7, 7})
	return X, y
}

func TestDecisionTreeRegressor_FitPredict(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor()

	if err := dt.Fit(X, y); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	pred, err := dt.Predict(X)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for i := 0; i < 8; i++ {
		if pred.At(i, 0) != y.At(i, 0) {
			t.Errorf("sample %d: got %v, want %v", i, pred.At(i, 0), y.At(i, 0))
		}
	}

	// one split on feature 1 at the midpoint between 0.4 and 0.6
	root := dt.Nodes()[0]
	if root.Feature != 1 {
		t.Errorf("root split feature = %d, want 1", root.Feature)
	}
	if math.Abs(root.Threshold-0.5) > 1e-12 {
		t.Errorf("root threshold = %v, want 0.5", root.Threshold)
	}
	if dt.NumLeaves() != 2 || dt.Depth() != 1 {
		t.Errorf("leaves = %d depth = %d, want 2 and 1", dt.NumLeaves(), dt.Depth())
	}
}

func TestDecisionTreeRegressor_FeatureImportances(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	imp, err := dt.FeatureImportances()
	if err != nil {
		t.Fatalf("FeatureImportances() error = %v", err)
	}
	if imp[0] != 0 || math.Abs(imp[1]-1) > 1e-12 {
		t.Errorf("importances = %v, want [0 1]", imp)
	}
}

func TestDecisionTreeRegressor_ConstantTarget(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{5, 5, 5, 5})

	dt := NewDecisionTreeRegressor()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	if len(dt.Nodes()) != 1 {
		t.Errorf("expected a single leaf, got %d nodes", len(dt.Nodes()))
	}
	imp, _ := dt.FeatureImportances()
	if imp[0] != 0 {
		t.Errorf("importance of unsplit tree = %v, want 0", imp[0])
	}
	if got := dt.PredictRow([]float64{10}); got != 5 {
		t.Errorf("PredictRow() = %v, want 5", got)
	}
}

func TestDecisionTreeRegressor_Hyperparameters(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})
	y := mat.NewDense(6, 1, []float64{1, 2, 3, 4, 5, 6})

	tests := []struct {
		name       string
		opts       []Option
		wantLeaves int
	}{
		{"unlimited grows pure leaves", nil, 6},
		{"max depth 1", []Option{WithMaxDepth(1)}, 2},
		{"min samples leaf 3", []Option{WithMinSamplesLeaf(3)}, 2},
		{"min samples split 7", []Option{WithMinSamplesSplit(7)}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := NewDecisionTreeRegressor(tt.opts...)
			if err := dt.Fit(X, y); err != nil {
				t.Fatal(err)
			}
			if got := dt.NumLeaves(); got != tt.wantLeaves {
				t.Errorf("NumLeaves() = %d, want %d", got, tt.wantLeaves)
			}
		})
	}
}

func TestDecisionTreeRegressor_FitIndicesWithDuplicates(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{0, 1, 2})
	y := mat.NewDense(3, 1, []float64{0, 10, 20})

	dt := NewDecisionTreeRegressor(WithMaxDepth(0))
	// row 2 never drawn, row 0 drawn twice
	if err := dt.FitIndices(X, y, []int{0, 0, 1}); err != nil {
		t.Fatal(err)
	}
	if got := dt.PredictRow([]float64{2}); got != 10 {
		t.Errorf("PredictRow(2) = %v, want 10 (nearest seen leaf)", got)
	}
	if _, nSamples := dt.state.GetDimensions(); nSamples != 3 {
		t.Errorf("samples recorded = %d, want 3", nSamples)
	}
}

func TestDecisionTreeRegressor_Errors(t *testing.T) {
	X, y := stepData()

	t.Run("predict before fit", func(t *testing.T) {
		_, err := NewDecisionTreeRegressor().Predict(X)
		var nf *errors.NotFittedError
		if !errors.As(err, &nf) {
			t.Errorf("expected NotFittedError, got %v", err)
		}
	})

	t.Run("row mismatch", func(t *testing.T) {
		err := NewDecisionTreeRegressor().Fit(X, mat.NewDense(3, 1, nil))
		var dim *errors.DimensionError
		if !errors.As(err, &dim) {
			t.Errorf("expected DimensionError, got %v", err)
		}
	})

	t.Run("predict with wrong width", func(t *testing.T) {
		dt := NewDecisionTreeRegressor()
		if err := dt.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		_, err := dt.Predict(mat.NewDense(1, 3, nil))
		var dim *errors.DimensionError
		if !errors.As(err, &dim) {
			t.Errorf("expected DimensionError, got %v", err)
		}
	})

	t.Run("invalid min samples split", func(t *testing.T) {
		err := NewDecisionTreeRegressor(WithMinSamplesSplit(1)).Fit(X, y)
		var ve *errors.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("expected ValidationError, got %v", err)
		}
	})

	t.Run("non-finite target", func(t *testing.T) {
		bad := mat.DenseCopyOf(y)
		bad.Set(2, 0, math.NaN())
		if err := NewDecisionTreeRegressor().Fit(X, bad); err == nil {
			t.Error("expected error for NaN target")
		}
	})
}

func TestDecisionTreeRegressor_Score(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor()
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	score, err := dt.Score(X, y)
	if err != nil {
		t.Fatal(err)
	}
	if score != 1 {
		t.Errorf("Score() on training data = %v, want 1", score)
	}
}

func TestDecisionTreeRegressor_MaxFeaturesDeterministic(t *testing.T) {
	X, y := stepData()
	fit := func() []Node {
		dt := NewDecisionTreeRegressor(WithMaxFeatures(1), WithRandomState(7))
		if err := dt.Fit(X, y); err != nil {
			t.Fatal(err)
		}
		return dt.Nodes()
	}
	a, b := fit(), fit()
	if len(a) != len(b) {
		t.Fatalf("node counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("node %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestDecisionTreeRegressor_Gob(t *testing.T) {
	X, y := stepData()
	dt := NewDecisionTreeRegressor(WithMaxDepth(4))
	if err := dt.Fit(X, y); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(dt); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var loaded DecisionTreeRegressor
	if err := gob.NewDecoder(&buf).Decode(&loaded); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if !loaded.IsFitted() {
		t.Fatal("decoded tree should be fitted")
	}
	want, _ := dt.Predict(X)
	got, err := loaded.Predict(X)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(want, got) {
		t.Error("decoded tree predicts differently")
	}
	if loaded.GetParams()["max_depth"] != 4 {
		t.Errorf("max_depth lost in round trip: %v", loaded.GetParams())
	}
}

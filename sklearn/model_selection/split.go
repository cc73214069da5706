// Package model_selection provides data splitting and cross-validation.
package model_selection

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// TrainTestSplitResult holds one train/test partition.
type TrainTestSplitResult struct {
	XTrain, XTest *mat.Dense
	YTrain, YTest *mat.Dense

	// TrainIndices and TestIndices are row numbers of the input, in the order
	// the rows appear in the subsets.
	TrainIndices []int
	TestIndices  []int
}

// TrainTestSplit permutes the rows with a PCG generator seeded by seed and
// puts the first ceil(n·testSize) rows of the permutation into the test set.
// The same seed and input always produce the same partition.
func TrainTestSplit(X, y mat.Matrix, testSize float64, seed int64) (*TrainTestSplitResult, error) {
	rows, _ := X.Dims()
	yRows, yCols := y.Dims()

	if math.IsNaN(testSize) || testSize <= 0 || testSize >= 1 {
		return nil, errors.NewValidationError("test_size", "must be in the open interval (0, 1)", testSize)
	}
	if rows == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "TrainTestSplit")
	}
	if rows != yRows {
		return nil, errors.NewDimensionError("TrainTestSplit", rows, yRows, 0)
	}
	if yCols != 1 {
		return nil, errors.NewDimensionError("TrainTestSplit", 1, yCols, 1)
	}

	nTest := int(math.Ceil(float64(rows) * testSize))
	if nTest >= rows {
		return nil, errors.NewValidationError("test_size", "leaves no training samples", testSize)
	}

	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	perm := rng.Perm(rows)

	testIdx := append([]int(nil), perm[:nTest]...)
	trainIdx := append([]int(nil), perm[nTest:]...)

	XTrain, yTrain := Subset(X, y, trainIdx)
	XTest, yTest := Subset(X, y, testIdx)

	return &TrainTestSplitResult{
		XTrain:       XTrain,
		XTest:        XTest,
		YTrain:       yTrain,
		YTest:        yTest,
		TrainIndices: trainIdx,
		TestIndices:  testIdx,
	}, nil
}

// Subset copies the listed rows of X and y, keeping the order of indices.
func Subset(X, y mat.Matrix, indices []int) (*mat.Dense, *mat.Dense) {
	_, xCols := X.Dims()
	_, yCols := y.Dims()

	xSubset := mat.NewDense(len(indices), xCols, nil)
	ySubset := mat.NewDense(len(indices), yCols, nil)
	for i, idx := range indices {
		for j := 0; j < xCols; j++ {
			xSubset.Set(i, j, X.At(idx, j))
		}
		for j := 0; j < yCols; j++ {
			ySubset.Set(i, j, y.At(idx, j))
		}
	}
	return xSubset, ySubset
}

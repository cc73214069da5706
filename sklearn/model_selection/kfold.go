package model_selection

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// Splitter produces cross-validation folds.
type Splitter interface {
	Split(nSamples int) ([]Fold, error)
	GetNSplits() int
}

// Fold represents a single fold in cross-validation.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits rows into NSplits consecutive folds. The first n % NSplits
// folds get one extra row, matching scikit-learn.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewKFold creates a k-fold splitter. nSplits below 2 falls back to 5.
func NewKFold(nSplits int, shuffle bool, randomSeed int64) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{
		NSplits:    nSplits,
		Shuffle:    shuffle,
		RandomSeed: randomSeed,
	}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split generates train/test indices for each fold.
func (kf *KFold) Split(nSamples int) ([]Fold, error) {
	if nSamples < kf.NSplits {
		return nil, errors.NewValidationError("n_splits", "cannot exceed the number of samples", kf.NSplits)
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits

	current := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}

		test := append([]int(nil), indices[current:current+testSize]...)
		train := make([]int, 0, nSamples-testSize)
		train = append(train, indices[:current]...)
		train = append(train, indices[current+testSize:]...)

		folds[i] = Fold{TrainIndices: train, TestIndices: test}
		current += testSize
	}
	return folds, nil
}

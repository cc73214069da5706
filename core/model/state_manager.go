package model

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/YuminosukeSato/winequality/pkg/errors"
)

// ModelState records whether an estimator was fitted and the shape of its
// training matrix.
type ModelState struct {
	Fitted    bool `json:"fitted"`
	NFeatures int  `json:"n_features,omitempty"`
	NSamples  int  `json:"n_samples,omitempty"`
}

// StateManager guards a ModelState for estimators that are fitted once and
// then read from many goroutines.
type StateManager struct {
	mu    sync.RWMutex
	state ModelState
}

// NewStateManager returns an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Fitted
}

func (s *StateManager) SetFitted() {
	s.mu.Lock()
	s.state.Fitted = true
	s.mu.Unlock()
}

// SetDimensions stores the training matrix shape.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	s.state.NFeatures, s.state.NSamples = nFeatures, nSamples
	s.mu.Unlock()
}

func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.NFeatures, s.state.NSamples
}

// RequireFitted fails with a NotFittedError naming modelName and method.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if s.IsFitted() {
		return nil
	}
	return errors.NewNotFittedError(modelName, method)
}

// RequireFeatures checks that a prediction input has the width seen in Fit.
func (s *StateManager) RequireFeatures(op string, got int) error {
	s.mu.RLock()
	want := s.state.NFeatures
	s.mu.RUnlock()
	if got != want {
		return errors.NewDimensionError(op, want, got, 1)
	}
	return nil
}

// GetState returns a copy of the current state.
func (s *StateManager) GetState() ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetState replaces the state, typically after decoding a snapshot.
func (s *StateManager) SetState(state ModelState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// GobEncode implements gob.GobEncoder.
func (s *StateManager) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s.GetState()); err != nil {
		return nil, errors.Wrap(err, "encode model state")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (s *StateManager) GobDecode(data []byte) error {
	var state ModelState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return errors.Wrap(err, "decode model state")
	}
	s.SetState(state)
	return nil
}

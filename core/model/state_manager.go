// Package model provides fitted-state bookkeeping, the transformer
// interface and gob persistence shared by every preprocessing step.
package model

import (
	"sync"

	"github.com/YuminosukeSato/elecbill/pkg/errors"
)

// StateManager manages the fitted state of an estimator in a thread-safe manner.
// Estimators hold it by pointer instead of embedding a base struct.
type StateManager struct {
	Fitted bool // Public for gob encoding
	mu     sync.RWMutex

	// Dimensions seen during fitting - Public for gob encoding
	NFeatures int
	NSamples  int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{
		Fitted: false,
	}
}

// IsFitted returns whether the estimator has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Fitted
}

// MarkFitted records a completed fit together with the training dimensions.
func (s *StateManager) MarkFitted(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fitted = true
	s.NFeatures = nFeatures
	s.NSamples = nSamples
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.NFeatures, s.NSamples
}

// RequireFitted returns a NotFittedError naming the estimator and the method
// the caller attempted when the estimator has not been fitted.
func (s *StateManager) RequireFitted(name, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(name, method)
	}
	return nil
}

// RequireUnfitted rejects a second Fit. Fitted parameters are never replaced
// in place; build a fresh estimator instead.
func (s *StateManager) RequireUnfitted(name string) error {
	if s.IsFitted() {
		return errors.NewModelError(name+".Fit", "estimator is already fitted", errors.ErrAlreadyFitted)
	}
	return nil
}

// ModelState is a read-only snapshot of the fitted state, used for run
// manifests and debugging.
type ModelState struct {
	Fitted    bool `json:"fitted"`
	NFeatures int  `json:"n_features,omitempty"`
	NSamples  int  `json:"n_samples,omitempty"`
}

// GetState returns the current state as a ModelState struct.
func (s *StateManager) GetState() ModelState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ModelState{
		Fitted:    s.Fitted,
		NFeatures: s.NFeatures,
		NSamples:  s.NSamples,
	}
}

package pipeline

import (
	"fmt"
	"sync"

	"github.com/YuminosukeSato/elecbill/components"
	"github.com/YuminosukeSato/elecbill/config"
	"github.com/YuminosukeSato/elecbill/pkg/errors"
	"github.com/YuminosukeSato/elecbill/pkg/log"
)

// StageState is the lifecycle position of a TransformationStage.
type StageState int

const (
	StateUnconfigured StageState = iota
	StateConfigured
	StateSplit
	StateTransformed
	// StateFailed is terminal. A failed stage cannot be retried.
	StateFailed
)

func (s StageState) String() string {
	switch s {
	case StateUnconfigured:
		return "Unconfigured"
	case StateConfigured:
		return "Configured"
	case StateSplit:
		return "Split"
	case StateTransformed:
		return "Transformed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("StageState(%d)", int(s))
	}
}

// TransformationStage moves once through Unconfigured, Configured, Split and
// Transformed in that order. An out-of-order or repeated transition returns an
// error, and a failed transition leaves the stage in StateFailed.
type TransformationStage struct {
	mu        sync.Mutex
	state     StageState
	component *components.DataTransformation
	split     components.SplitResult
	result    components.TransformResult
	logger    log.Logger
}

// NewTransformationStage returns an unconfigured stage.
func NewTransformationStage(logger log.Logger) *TransformationStage {
	if logger == nil {
		logger = log.GetLoggerWithName("TransformationStage")
	}
	return &TransformationStage{logger: logger}
}

// State returns the current state.
func (s *TransformationStage) State() StageState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Configure binds the stage to cfg.
func (s *TransformationStage) Configure(cfg config.TransformationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("Configure", StateUnconfigured); err != nil {
		return err
	}
	s.component = components.NewDataTransformation(cfg, s.logger)
	s.moveTo(StateConfigured)
	return nil
}

// Split checks the validation gate and then splits and persists the raw data.
// The gate runs before any artifact is written. A stage configured without a
// status file is rejected with a ValidationGateError.
func (s *TransformationStage) Split() (components.SplitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("Split", StateConfigured); err != nil {
		return components.SplitResult{}, err
	}

	statusFile := s.component.Config().StatusFile()
	var err error
	if statusFile == "" {
		err = errors.NewValidationGateError("", "", nil)
	} else {
		err = components.CheckValidationStatus(statusFile)
	}
	if err != nil {
		s.logger.Error("validation gate rejected the run", log.PathKey, statusFile, log.ErrAttrKey, err)
		s.moveTo(StateFailed)
		return components.SplitResult{}, err
	}

	split, err := s.component.SplitAndPersist()
	if err != nil {
		s.moveTo(StateFailed)
		return components.SplitResult{}, err
	}
	s.split = split
	s.moveTo(StateSplit)
	return split, nil
}

// Transform fits the preprocessor on the persisted train split and
// transforms both splits.
func (s *TransformationStage) Transform() (components.TransformResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("Transform", StateSplit); err != nil {
		return components.TransformResult{}, err
	}

	cfg := s.component.Config()
	result, err := s.component.FitTransform(cfg.TrainPath(), cfg.TestPath())
	if err != nil {
		s.moveTo(StateFailed)
		return components.TransformResult{}, err
	}
	s.result = result
	s.moveTo(StateTransformed)
	return result, nil
}

// Result returns the transformation output once the stage is Transformed.
func (s *TransformationStage) Result() (components.TransformResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.state == StateTransformed
}

func (s *TransformationStage) expect(op string, want StageState) error {
	if s.state == want {
		return nil
	}
	return errors.NewValueError("TransformationStage."+op,
		fmt.Sprintf("requires state %s, current state is %s", want, s.state))
}

func (s *TransformationStage) moveTo(next StageState) {
	s.logger.Debug("stage state changed", log.StateKey, next.String(), "from", s.state.String())
	s.state = next
}

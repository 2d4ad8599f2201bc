// Package pipeline sequences the validation and transformation stages of a
// run, records telemetry and writes the run manifest.
package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/elecbill/components"
	"github.com/YuminosukeSato/elecbill/config"
	"github.com/YuminosukeSato/elecbill/core/model"
	"github.com/YuminosukeSato/elecbill/pkg/errors"
	"github.com/YuminosukeSato/elecbill/pkg/log"
	"github.com/YuminosukeSato/elecbill/pkg/telemetry"
)

// Stage names used in logs, telemetry and the manifest.
const (
	StageValidation     = "Data Validation Stage"
	StageTransformation = "Data Transformation Stage"
)

// Run outcome values.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// StageRecord is one stage entry in the manifest.
type StageRecord struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// Manifest summarizes one run and is written to run_manifest.json.
type Manifest struct {
	RunID        string            `json:"run_id"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	Status       string            `json:"status"`
	Stages       []StageRecord     `json:"stages"`
	Rows         map[string]int    `json:"rows,omitempty"`
	FeatureNames []string          `json:"feature_names,omitempty"`
	Artifacts    map[string]string `json:"artifacts,omitempty"`
	// Preprocessor は学習済み前処理器の入力次元
	Preprocessor *model.ModelState `json:"preprocessor,omitempty"`
}

// Runner executes pipeline stages in order. A Runner may be reused for
// several runs (watch mode); each run gets its own ID and manifest.
type Runner struct {
	manager  *config.Manager
	logger   log.Logger
	recorder *telemetry.Recorder
	now      func() time.Time
	newID    func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder replaces the telemetry recorder.
func WithRecorder(rec *telemetry.Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithRunID makes every run use the given ID instead of a random UUID.
func WithRunID(id string) Option {
	return func(r *Runner) { r.newID = func() string { return id } }
}

// New creates a Runner for the documents held by manager. A nil logger uses
// the global provider.
func New(manager *config.Manager, logger log.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = log.GetLoggerWithName("pipeline")
	}
	r := &Runner{
		manager:  manager,
		logger:   logger,
		recorder: telemetry.NewRecorder(),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Recorder returns the telemetry recorder of the runner.
func (r *Runner) Recorder() *telemetry.Recorder { return r.recorder }

type stage struct {
	name string
	run  func(run *runState) error
}

type runState struct {
	manifest *Manifest
	logger   log.Logger
}

// Run executes the validation stage and then the transformation stage. The
// transformation stage refuses to start unless validation wrote a True
// status.
func (r *Runner) Run() (*Manifest, error) {
	return r.execute(
		stage{StageValidation, r.validate},
		stage{StageTransformation, r.transform},
	)
}

// Validate executes the validation stage only.
func (r *Runner) Validate() (*Manifest, error) {
	return r.execute(stage{StageValidation, r.validate})
}

// Transform executes the transformation stage only, gated on the status
// file written by an earlier validation run.
func (r *Runner) Transform() (*Manifest, error) {
	return r.execute(stage{StageTransformation, r.transform})
}

func (r *Runner) execute(stages ...stage) (*Manifest, error) {
	m := &Manifest{
		RunID:     r.newID(),
		StartedAt: r.now().UTC(),
		Rows:      map[string]int{},
		Artifacts: map[string]string{},
	}
	logger := r.logger.With(log.RunIDKey, m.RunID)

	remove := errors.ObserveWarnings(func(w error) {
		var unknown *errors.UnknownCategoryWarning
		if errors.As(w, &unknown) {
			r.recorder.AddUnknownCategories(unknown.Column, len(unknown.Categories))
		}
	})
	defer remove()

	var runErr error
	for _, st := range stages {
		if runErr != nil {
			m.Stages = append(m.Stages, StageRecord{Name: st.name, Status: StatusSkipped})
			continue
		}

		stageLogger := logger.With(log.StageKey, st.name)
		stageLogger.Info(">>>>>> stage started <<<<<<")
		start := r.now()
		err := errors.SafeExecute(st.name, func() error {
			return st.run(&runState{manifest: m, logger: stageLogger})
		})
		elapsed := r.now().Sub(start)
		r.recorder.ObserveStage(st.name, elapsed, err)

		rec := StageRecord{Name: st.name, Status: StatusSucceeded, DurationMs: elapsed.Milliseconds()}
		if err != nil {
			rec.Status = StatusFailed
			rec.Error = err.Error()
			r.recorder.RecordError(errorType(err), st.name)
			stageLogger.Error(">>>>>> stage failed <<<<<<",
				log.ErrAttrKey, err,
				log.ErrorTypeKey, errorType(err),
				log.DurationMsKey, elapsed.Milliseconds(),
			)
			runErr = err
		} else {
			stageLogger.Info(">>>>>> stage completed <<<<<<", log.DurationMsKey, elapsed.Milliseconds())
		}
		m.Stages = append(m.Stages, rec)
	}

	m.FinishedAt = r.now().UTC()
	m.Status = StatusSucceeded
	if runErr != nil {
		m.Status = StatusFailed
	} else {
		r.recorder.MarkSuccess(m.FinishedAt)
	}

	if err := WriteManifest(m, r.manager.ManifestPath()); err != nil {
		logger.Error("cannot write run manifest", log.PathKey, r.manager.ManifestPath(), log.ErrAttrKey, err)
		if runErr == nil {
			runErr = err
		}
	}
	if path := r.manager.TelemetryTextfile(); path != "" {
		if err := r.recorder.WriteTextfile(path); err != nil {
			logger.Error("cannot write telemetry textfile", log.PathKey, path, log.ErrAttrKey, err)
			if runErr == nil {
				runErr = err
			}
		}
	}
	return m, runErr
}

func (r *Runner) validate(run *runState) error {
	cfg, err := r.manager.DataValidationConfig()
	if err != nil {
		run.logger.Error("cannot resolve validation config", log.ErrAttrKey, err)
		return err
	}
	status, err := components.NewDataValidation(cfg, run.logger).ValidateAllColumns()
	if err != nil {
		return err
	}
	run.manifest.Artifacts["validation_status"] = cfg.StatusFile()
	if !status {
		run.logger.Warn("data does not match the schema", log.PathKey, cfg.StatusFile())
	}
	return nil
}

func (r *Runner) transform(run *runState) error {
	cfg, err := r.manager.DataTransformationConfig()
	if err != nil {
		run.logger.Error("cannot resolve transformation config", log.ErrAttrKey, err)
		return err
	}

	st := NewTransformationStage(run.logger)
	if err := st.Configure(cfg); err != nil {
		return err
	}
	split, err := st.Split()
	if err != nil {
		return err
	}
	trainRows, _ := split.XTrain.Dims()
	testRows, _ := split.XTest.Dims()
	r.recorder.SetRows("raw", trainRows+testRows)
	r.recorder.SetRows("train", trainRows)
	r.recorder.SetRows("test", testRows)
	run.manifest.Rows["raw"] = trainRows + testRows
	run.manifest.Rows["train"] = trainRows
	run.manifest.Rows["test"] = testRows
	run.manifest.Artifacts["train"] = cfg.TrainPath()
	run.manifest.Artifacts["test"] = cfg.TestPath()

	result, err := st.Transform()
	if err != nil {
		return err
	}
	r.recorder.SetFeatures(len(result.FeatureNames))
	run.manifest.FeatureNames = result.FeatureNames
	state := result.Preprocessor.State.GetState()
	run.manifest.Preprocessor = &state
	run.manifest.Artifacts["train_transformed"] = cfg.TrainTransformedPath()
	run.manifest.Artifacts["test_transformed"] = cfg.TestTransformedPath()
	run.manifest.Artifacts["preprocessor"] = cfg.PreprocessorPath()
	if len(result.Plots) > 0 {
		run.manifest.Artifacts["plots"] = cfg.PlotsDir()
	}
	return nil
}

// WriteManifest writes m as indented JSON to path, creating the directory.
func WriteManifest(m *Manifest, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewPersistenceError("mkdir", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.NewPersistenceError("encode", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewPersistenceError("write", path, err)
	}
	return nil
}

// errorType returns the short name of the first known error type in err's chain.
func errorType(err error) string {
	var (
		cfgErr   *errors.ConfigurationError
		dataErr  *errors.DataFormatError
		persErr  *errors.PersistenceError
		gateErr  *errors.ValidationGateError
		panicErr *errors.PanicError
		numErr   *errors.NumericalInstabilityError
		modelErr *errors.ModelError
		fitErr   *errors.NotFittedError
		valErr   *errors.ValidationError
		valueErr *errors.ValueError
	)
	switch {
	case errors.As(err, &gateErr):
		return "ValidationGateError"
	case errors.As(err, &cfgErr):
		return "ConfigurationError"
	case errors.As(err, &dataErr):
		return "DataFormatError"
	case errors.As(err, &persErr):
		return "PersistenceError"
	case errors.As(err, &panicErr):
		return "PanicError"
	case errors.As(err, &numErr):
		return "NumericalInstabilityError"
	case errors.As(err, &modelErr):
		return "ModelError"
	case errors.As(err, &fitErr):
		return "NotFittedError"
	case errors.As(err, &valErr):
		return "ValidationError"
	case errors.As(err, &valueErr):
		return "ValueError"
	default:
		return "Error"
	}
}

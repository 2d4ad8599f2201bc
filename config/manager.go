// Package config resolves the three YAML documents of a pipeline run
// (config.yaml, params.yaml, schema.yaml) into immutable typed configs.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/elecbill/pkg/errors"
	"github.com/YuminosukeSato/elecbill/preprocessing"
)

type configFile struct {
	ArtifactsRoot      string                 `yaml:"artifacts_root"`
	DataValidation     *validationSection     `yaml:"data_validation"`
	DataTransformation *transformationSection `yaml:"data_transformation"`
	Telemetry          telemetrySection       `yaml:"telemetry"`
}

type validationSection struct {
	RootDir    string `yaml:"root_dir"`
	DataPath   string `yaml:"data_path"`
	StatusFile string `yaml:"status_file"`
}

type transformationSection struct {
	RootDir         string   `yaml:"root_dir"`
	DataPath        string   `yaml:"data_path"`
	NumericalCols   []string `yaml:"numerical_cols"`
	CategoricalCols []string `yaml:"categorical_cols"`
	Plots           bool     `yaml:"plots"`
}

type telemetrySection struct {
	Textfile string `yaml:"textfile"`
}

type paramsFile struct {
	Split         splitParams         `yaml:"split"`
	Preprocessing preprocessingParams `yaml:"preprocessing"`
}

type splitParams struct {
	TestSize    float64 `yaml:"test_size"`
	RandomState uint64  `yaml:"random_state"`
}

type preprocessingParams struct {
	Numerical struct {
		Imputer string `yaml:"imputer"`
		Scaler  string `yaml:"scaler"`
	} `yaml:"numerical"`
	Categorical struct {
		Imputer       string `yaml:"imputer"`
		FillValue     string `yaml:"fill_value"`
		HandleUnknown string `yaml:"handle_unknown"`
	} `yaml:"categorical"`
	Remainder     string   `yaml:"remainder"`
	MissingValues []string `yaml:"missing_values"`
}

type schemaFile struct {
	Columns      map[string]string `yaml:"columns"`
	TargetColumn string            `yaml:"target_column"`
}

func defaultParams() paramsFile {
	opts := preprocessing.DefaultOptions()
	p := paramsFile{
		Split: splitParams{TestSize: DefaultTestSize, RandomState: DefaultRandomState},
	}
	p.Preprocessing.Numerical.Imputer = opts.NumericImputer
	p.Preprocessing.Numerical.Scaler = opts.Scaler
	p.Preprocessing.Categorical.Imputer = opts.CategoricalImputer
	p.Preprocessing.Categorical.FillValue = opts.FillValue
	p.Preprocessing.Categorical.HandleUnknown = opts.HandleUnknown
	p.Preprocessing.Remainder = opts.Remainder
	p.Preprocessing.MissingValues = opts.MissingValues
	return p
}

// Manager holds the decoded documents of one run. Build it with NewManager.
type Manager struct {
	configPath string
	paramsPath string
	schemaPath string

	config configFile
	params paramsFile
	schema schemaFile
}

// NewManager reads and validates the three documents and creates the
// artifacts root directory. Unknown keys and mistyped values are rejected.
//
//	mgr, err := config.NewManager("config/config.yaml", "params.yaml", "schema.yaml")
//	if err != nil { return err }
//	tc, err := mgr.DataTransformationConfig()
func NewManager(configPath, paramsPath, schemaPath string) (*Manager, error) {
	m := &Manager{
		configPath: configPath,
		paramsPath: paramsPath,
		schemaPath: schemaPath,
		params:     defaultParams(),
	}

	if err := loadFromFile(configPath, &m.config, false); err != nil {
		return nil, err
	}
	if err := loadFromFile(paramsPath, &m.params, true); err != nil {
		return nil, err
	}
	if err := loadFromFile(schemaPath, &m.schema, false); err != nil {
		return nil, err
	}
	if m.schema.TargetColumn == "" {
		m.schema.TargetColumn = DefaultTargetColumn
	}

	if err := m.validate(); err != nil {
		return nil, err
	}
	if err := createDirectories(m.config.ArtifactsRoot); err != nil {
		return nil, err
	}
	return m, nil
}

// loadFromFile decodes one YAML document strictly into out. An empty
// document is accepted only when allowEmpty is set, leaving out unchanged.
func loadFromFile(path string, out interface{}, allowEmpty bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewConfigurationError(path, "", "cannot read file", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			if allowEmpty {
				return nil
			}
			return errors.NewConfigurationError(path, "", "document is empty", nil)
		}
		return errors.NewConfigurationError(path, "", "cannot decode document", err)
	}
	return nil
}

func (m *Manager) validate() error {
	c := m.config
	switch {
	case c.ArtifactsRoot == "":
		return errors.NewConfigurationError(m.configPath, "artifacts_root", "required field is missing", nil)
	case c.DataTransformation == nil:
		return errors.NewConfigurationError(m.configPath, "data_transformation", "required section is missing", nil)
	case c.DataTransformation.RootDir == "":
		return errors.NewConfigurationError(m.configPath, "data_transformation.root_dir", "required field is missing", nil)
	case c.DataTransformation.DataPath == "":
		return errors.NewConfigurationError(m.configPath, "data_transformation.data_path", "required field is missing", nil)
	}
	if v := c.DataValidation; v != nil {
		switch {
		case v.RootDir == "":
			return errors.NewConfigurationError(m.configPath, "data_validation.root_dir", "required field is missing", nil)
		case v.DataPath == "":
			return errors.NewConfigurationError(m.configPath, "data_validation.data_path", "required field is missing", nil)
		case v.StatusFile == "":
			return errors.NewConfigurationError(m.configPath, "data_validation.status_file", "required field is missing", nil)
		}
	}

	target := m.schema.TargetColumn
	seen := make(map[string]string)
	for _, group := range []struct {
		field string
		cols  []string
	}{
		{"data_transformation.numerical_cols", c.DataTransformation.NumericalCols},
		{"data_transformation.categorical_cols", c.DataTransformation.CategoricalCols},
	} {
		for _, col := range group.cols {
			if col == "" {
				return errors.NewConfigurationError(m.configPath, group.field, "column name must not be empty", nil)
			}
			if col == target {
				return errors.NewConfigurationError(m.configPath, group.field,
					fmt.Sprintf("target column '%s' cannot be used as a feature", col), nil)
			}
			if prev, dup := seen[col]; dup {
				return errors.NewConfigurationError(m.configPath, group.field,
					fmt.Sprintf("column '%s' is already listed in %s", col, prev), nil)
			}
			seen[col] = group.field
		}
	}

	ts := m.params.Split.TestSize
	if !(ts > 0 && ts < 1) {
		return errors.NewConfigurationError(m.paramsPath, "split.test_size", fmt.Sprintf("must be in (0, 1), got %v", ts), nil)
	}
	if err := m.preprocessingOptions().Validate(); err != nil {
		return errors.NewConfigurationError(m.paramsPath, "preprocessing", "invalid preprocessing options", err)
	}

	if len(m.schema.Columns) == 0 {
		return errors.NewConfigurationError(m.schemaPath, "columns", "required field is missing", nil)
	}
	return nil
}

func (m *Manager) preprocessingOptions() preprocessing.Options {
	p := m.params.Preprocessing
	return preprocessing.Options{
		NumericImputer:     p.Numerical.Imputer,
		Scaler:             p.Numerical.Scaler,
		CategoricalImputer: p.Categorical.Imputer,
		FillValue:          p.Categorical.FillValue,
		HandleUnknown:      p.Categorical.HandleUnknown,
		Remainder:          p.Remainder,
		MissingValues:      cloneStrings(p.MissingValues),
	}
}

// DataTransformationConfig returns the transformation config and creates its
// root directory. Column lists are taken verbatim from config.yaml.
func (m *Manager) DataTransformationConfig() (TransformationConfig, error) {
	section := m.config.DataTransformation
	if err := createDirectories(section.RootDir); err != nil {
		return TransformationConfig{}, err
	}

	tc := NewTransformationConfig(
		section.RootDir,
		section.DataPath,
		section.NumericalCols,
		section.CategoricalCols,
		m.schema.TargetColumn,
	).
		WithSplit(m.params.Split.TestSize, m.params.Split.RandomState).
		WithOptions(m.preprocessingOptions()).
		WithPlots(section.Plots).
		WithStatusFile(m.statusFile())
	return tc, nil
}

// statusFile は検証ステージが書き、変換ステージが読むフラグのパス。
func (m *Manager) statusFile() string {
	if v := m.config.DataValidation; v != nil {
		return v.StatusFile
	}
	return filepath.Join(m.config.ArtifactsRoot, filepath.FromSlash(DefaultStatusFile))
}

// DataValidationConfig returns the validation config and creates its root
// directory. It fails when config.yaml has no data_validation section.
func (m *Manager) DataValidationConfig() (ValidationConfig, error) {
	section := m.config.DataValidation
	if section == nil {
		return ValidationConfig{}, errors.NewConfigurationError(m.configPath, "data_validation", "required section is missing", nil)
	}
	if err := createDirectories(section.RootDir); err != nil {
		return ValidationConfig{}, err
	}
	return NewValidationConfig(section.RootDir, section.DataPath, section.StatusFile, m.schema.Columns, m.schema.TargetColumn), nil
}

// ArtifactsRoot returns the directory all run outputs live under.
func (m *Manager) ArtifactsRoot() string { return m.config.ArtifactsRoot }

// ManifestPath returns where the run manifest is written.
func (m *Manager) ManifestPath() string {
	return filepath.Join(m.config.ArtifactsRoot, ManifestFileName)
}

// TelemetryTextfile returns the Prometheus textfile path, empty when disabled.
func (m *Manager) TelemetryTextfile() string { return m.config.Telemetry.Textfile }

func createDirectories(paths ...string) error {
	for _, p := range paths {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return errors.NewPersistenceError("mkdir", p, err)
		}
	}
	return nil
}

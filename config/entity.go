package config

import (
	"path/filepath"

	"github.com/YuminosukeSato/elecbill/preprocessing"
)

// Artifact file names written under the transformation root directory.
const (
	TrainFileName            = "train.csv"
	TestFileName             = "test.csv"
	TrainTransformedFileName = "train_transformed.csv"
	TestTransformedFileName  = "test_transformed.csv"
	PreprocessorFileName     = "preprocessor_obj.gob"
	PlotsDirName             = "plots"
	ManifestFileName         = "run_manifest.json"

	// data_validation セクションがないときの status file (artifacts_root からの相対パス)
	DefaultStatusFile = "data_validation/status.txt"
)

// Defaults applied when params.yaml or schema.yaml omit a value.
const (
	DefaultTestSize     = 0.25
	DefaultRandomState  = 42
	DefaultTargetColumn = "ElectricityBill"
)

// TransformationConfig describes one run of the data-transformation stage.
// It is immutable once built; slice accessors return copies.
type TransformationConfig struct {
	rootDir         string
	dataPath        string
	statusFile      string
	numericalCols   []string
	categoricalCols []string
	targetColumn    string
	testSize        float64
	randomState     uint64
	options         preprocessing.Options
	plots           bool
}

// NewTransformationConfig builds a config directly, bypassing the YAML
// documents. Slices are copied.
func NewTransformationConfig(rootDir, dataPath string, numerical, categorical []string, target string) TransformationConfig {
	return TransformationConfig{
		rootDir:         rootDir,
		dataPath:        dataPath,
		numericalCols:   cloneStrings(numerical),
		categoricalCols: cloneStrings(categorical),
		targetColumn:    target,
		testSize:        DefaultTestSize,
		randomState:     DefaultRandomState,
		options:         preprocessing.DefaultOptions(),
	}
}

// WithSplit returns a copy with the given split parameters.
func (c TransformationConfig) WithSplit(testSize float64, randomState uint64) TransformationConfig {
	c.testSize = testSize
	c.randomState = randomState
	return c
}

// WithOptions returns a copy with the given preprocessing options.
func (c TransformationConfig) WithOptions(opts preprocessing.Options) TransformationConfig {
	c.options = opts.Clone()
	return c
}

// WithStatusFile returns a copy gated on the given validation status file.
func (c TransformationConfig) WithStatusFile(path string) TransformationConfig {
	c.statusFile = path
	return c
}

// WithPlots returns a copy with histogram output switched on or off.
func (c TransformationConfig) WithPlots(enabled bool) TransformationConfig {
	c.plots = enabled
	return c
}

func (c TransformationConfig) RootDir() string { return c.rootDir }
func (c TransformationConfig) DataPath() string { return c.dataPath }
func (c TransformationConfig) StatusFile() string { return c.statusFile }
func (c TransformationConfig) NumericalCols() []string { return cloneStrings(c.numericalCols) }
func (c TransformationConfig) CategoricalCols() []string { return cloneStrings(c.categoricalCols) }
func (c TransformationConfig) TargetColumn() string { return c.targetColumn }
func (c TransformationConfig) TestSize() float64 { return c.testSize }
func (c TransformationConfig) RandomState() uint64 { return c.randomState }
func (c TransformationConfig) Plots() bool { return c.plots }

// Options returns the preprocessing options for BuildPreprocessor.
func (c TransformationConfig) Options() preprocessing.Options { return c.options.Clone() }

func (c TransformationConfig) TrainPath() string { return filepath.Join(c.rootDir, TrainFileName) }
func (c TransformationConfig) TestPath() string { return filepath.Join(c.rootDir, TestFileName) }

func (c TransformationConfig) TrainTransformedPath() string {
	return filepath.Join(c.rootDir, TrainTransformedFileName)
}

func (c TransformationConfig) TestTransformedPath() string {
	return filepath.Join(c.rootDir, TestTransformedFileName)
}

func (c TransformationConfig) PreprocessorPath() string {
	return filepath.Join(c.rootDir, PreprocessorFileName)
}

func (c TransformationConfig) PlotsDir() string { return filepath.Join(c.rootDir, PlotsDirName) }

// ValidationConfig describes the schema check that produces the status file.
type ValidationConfig struct {
	rootDir      string
	dataPath     string
	statusFile   string
	schema       map[string]string
	targetColumn string
}

// NewValidationConfig builds a ValidationConfig directly. The schema map is copied.
func NewValidationConfig(rootDir, dataPath, statusFile string, schema map[string]string, target string) ValidationConfig {
	return ValidationConfig{
		rootDir:      rootDir,
		dataPath:     dataPath,
		statusFile:   statusFile,
		schema:       cloneSchema(schema),
		targetColumn: target,
	}
}

func (c ValidationConfig) RootDir() string { return c.rootDir }
func (c ValidationConfig) DataPath() string { return c.dataPath }
func (c ValidationConfig) StatusFile() string { return c.statusFile }
func (c ValidationConfig) TargetColumn() string { return c.targetColumn }
func (c ValidationConfig) Schema() map[string]string { return cloneSchema(c.schema) }

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneSchema(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

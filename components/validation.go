// Package components implements the pipeline stages: schema validation, the
// validation gate, and the data transformation (split then fit-transform).
package components

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/YuminosukeSato/elecbill/config"
	"github.com/YuminosukeSato/elecbill/dataset"
	"github.com/YuminosukeSato/elecbill/pkg/errors"
	"github.com/YuminosukeSato/elecbill/pkg/log"
)

// StatusPrefix is the fixed text in front of the True/False flag in the status file.
const StatusPrefix = "Validation status:"

// DataValidation checks the raw data columns against the schema.
type DataValidation struct {
	cfg    config.ValidationConfig
	logger log.Logger
}

// NewDataValidation creates the validation stage. A nil logger uses the
// global provider.
func NewDataValidation(cfg config.ValidationConfig, logger log.Logger) *DataValidation {
	if logger == nil {
		logger = log.GetLoggerWithName("DataValidation")
	}
	return &DataValidation{cfg: cfg, logger: logger}
}

// ValidateAllColumns reads the raw data, checks that every column is declared
// in the schema and that the target is present, and writes the result to the
// status file. It returns the validation outcome; an error means the check
// itself could not run.
func (v *DataValidation) ValidateAllColumns() (bool, error) {
	df, err := dataset.ReadCSV(v.cfg.DataPath(), nil)
	if err != nil {
		v.logger.Error("cannot read data for validation", log.PathKey, v.cfg.DataPath(), log.ErrAttrKey, err)
		return false, err
	}

	schema := v.cfg.Schema()
	var undeclared []string
	for _, col := range df.Names() {
		if _, ok := schema[col]; !ok {
			undeclared = append(undeclared, col)
		}
	}
	hasTarget := dataset.HasColumn(df, v.cfg.TargetColumn())
	status := len(undeclared) == 0 && hasTarget

	if len(undeclared) > 0 {
		sort.Strings(undeclared)
		v.logger.Warn("columns not declared in schema",
			log.ColumnKey, strings.Join(undeclared, ","))
	}
	if !hasTarget {
		v.logger.Warn("target column missing from data", log.ColumnKey, v.cfg.TargetColumn())
	}

	if err := WriteValidationStatus(v.cfg.StatusFile(), status); err != nil {
		v.logger.Error("cannot write validation status", log.PathKey, v.cfg.StatusFile(), log.ErrAttrKey, err)
		return false, err
	}

	rows, cols := df.Dims()
	v.logger.Info("validation finished",
		log.OperationKey, log.OperationValidate,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"status", status,
	)
	return status, nil
}

// WriteValidationStatus writes "Validation status: <True|False>" to path.
func WriteValidationStatus(path string, status bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewPersistenceError("mkdir", filepath.Dir(path), err)
	}
	flag := "False"
	if status {
		flag = "True"
	}
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%s %s", StatusPrefix, flag)), 0o644); err != nil {
		return errors.NewPersistenceError("write", path, err)
	}
	return nil
}

// CheckValidationStatus is the gate in front of the transformation stage. It
// reads the last space-separated token of the status file and succeeds only
// when it is exactly "True".
func CheckValidationStatus(statusFile string) error {
	raw, err := os.ReadFile(statusFile)
	if err != nil {
		return errors.NewValidationGateError(statusFile, "", err)
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return errors.NewValidationGateError(statusFile, "", nil)
	}
	if token := fields[len(fields)-1]; token != "True" {
		return errors.NewValidationGateError(statusFile, token, nil)
	}
	return nil
}

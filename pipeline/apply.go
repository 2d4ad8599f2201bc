package pipeline

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/elecbill/core/model"
	"github.com/YuminosukeSato/elecbill/dataset"
	"github.com/YuminosukeSato/elecbill/pkg/errors"
	"github.com/YuminosukeSato/elecbill/pkg/log"
	"github.com/YuminosukeSato/elecbill/preprocessing"
)

// LoadPreprocessor reads a fitted preprocessor written by the transformation
// stage. An unfitted object is rejected.
func LoadPreprocessor(path string) (*preprocessing.ColumnTransformer, error) {
	var ct preprocessing.ColumnTransformer
	if err := model.LoadModel(&ct, path); err != nil {
		return nil, err
	}
	if ct.State == nil || !ct.IsFitted() {
		return nil, errors.NewNotFittedError("ColumnTransformer", "Transform")
	}
	return &ct, nil
}

// Apply transforms new raw rows with a persisted preprocessor and writes the
// headerless matrix to outputCSV. The preprocessor is never refit; a target
// column in the input is ignored along with any other unlisted column that
// was not seen during fit.
func Apply(preprocessorPath, inputCSV, outputCSV string) (*mat.Dense, error) {
	logger := log.GetLoggerWithName("Apply").With(log.OperationKey, log.OperationTransform, log.PhaseKey, log.PhaseInference)

	ct, err := LoadPreprocessor(preprocessorPath)
	if err != nil {
		logger.Error("cannot load preprocessor", log.PathKey, preprocessorPath, log.ErrAttrKey, err)
		return nil, err
	}
	df, err := dataset.ReadCSV(inputCSV, ct.Options.MissingValues)
	if err != nil {
		logger.Error("cannot read input", log.PathKey, inputCSV, log.ErrAttrKey, err)
		return nil, err
	}
	X, err := ct.Transform(df)
	if err != nil {
		logger.Error("transform failed", log.PathKey, inputCSV, log.ErrAttrKey, err)
		return nil, err
	}
	if err := dataset.WriteMatrixCSV(X, outputCSV); err != nil {
		logger.Error("cannot write output", log.PathKey, outputCSV, log.ErrAttrKey, err)
		return nil, err
	}

	rows, cols := X.Dims()
	logger.Info("rows transformed", log.SamplesKey, rows, log.FeaturesKey, cols, log.PathKey, outputCSV)
	return X, nil
}

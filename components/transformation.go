package components

import (
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/elecbill/config"
	"github.com/YuminosukeSato/elecbill/core/model"
	"github.com/YuminosukeSato/elecbill/dataset"
	"github.com/YuminosukeSato/elecbill/modelselection"
	"github.com/YuminosukeSato/elecbill/pkg/errors"
	"github.com/YuminosukeSato/elecbill/pkg/log"
	"github.com/YuminosukeSato/elecbill/preprocessing"
	"github.com/YuminosukeSato/elecbill/report"
)

// SplitResult is the in-memory output of SplitAndPersist.
type SplitResult struct {
	XTrain dataframe.DataFrame
	XTest  dataframe.DataFrame
	YTrain series.Series
	YTest  series.Series
}

// TransformResult is the in-memory output of FitTransform.
type TransformResult struct {
	XTrain       *mat.Dense
	XTest        *mat.Dense
	YTrain       series.Series
	YTest        series.Series
	FeatureNames []string
	Preprocessor *preprocessing.ColumnTransformer
	// Plots lists the histogram files written, empty when plots are off.
	Plots []string
}

// DataTransformation splits the raw data and fits the preprocessor.
type DataTransformation struct {
	cfg    config.TransformationConfig
	logger log.Logger
}

// NewDataTransformation creates the transformation stage. A nil logger uses
// the global provider.
func NewDataTransformation(cfg config.TransformationConfig, logger log.Logger) *DataTransformation {
	if logger == nil {
		logger = log.GetLoggerWithName("DataTransformation")
	}
	return &DataTransformation{cfg: cfg, logger: logger}
}

// Config returns the stage configuration.
func (d *DataTransformation) Config() config.TransformationConfig { return d.cfg }

// SplitAndPersist reads the raw CSV, splits its rows with the configured seed
// and writes train.csv and test.csv under the root directory in the raw
// column order. The returned result has the target separated.
func (d *DataTransformation) SplitAndPersist() (SplitResult, error) {
	logger := d.logger.With(log.OperationKey, log.OperationSplit)

	df, err := dataset.ReadCSV(d.cfg.DataPath(), d.cfg.Options().MissingValues)
	if err != nil {
		logger.Error("cannot read raw data", log.PathKey, d.cfg.DataPath(), log.ErrAttrKey, err)
		return SplitResult{}, err
	}
	if !dataset.HasColumn(df, d.cfg.TargetColumn()) {
		err := errors.NewDataFormatError("SplitAndPersist", d.cfg.TargetColumn(), "target column not found")
		logger.Error("cannot separate target", log.ColumnKey, d.cfg.TargetColumn(), log.ErrAttrKey, err)
		return SplitResult{}, err
	}
	rows, _ := df.Dims()
	if rows < 2 {
		err := errors.NewDataFormatError("SplitAndPersist", "",
			"at least 2 rows are required to split into train and test sets")
		logger.Error("not enough rows to split", log.SamplesKey, rows, log.ErrAttrKey, err)
		return SplitResult{}, err
	}

	trainDF, testDF, err := modelselection.SplitFrame(df, d.cfg.TestSize(), d.cfg.RandomState())
	if err != nil {
		logger.Error("cannot split rows", log.SamplesKey, rows, log.ErrAttrKey, err)
		return SplitResult{}, err
	}

	var result SplitResult
	for _, part := range []struct {
		name string
		df   dataframe.DataFrame
		x    *dataframe.DataFrame
		y    *series.Series
		path string
	}{
		{"train", trainDF, &result.XTrain, &result.YTrain, d.cfg.TrainPath()},
		{"test", testDF, &result.XTest, &result.YTest, d.cfg.TestPath()},
	} {
		x, y, err := dataset.SplitTarget(part.df, d.cfg.TargetColumn())
		if err != nil {
			logger.Error("cannot separate target", log.SplitKey, part.name, log.ErrAttrKey, err)
			return SplitResult{}, err
		}
		*part.x, *part.y = x, y

		// 生データと同じ列順のまま書き出す
		if err := dataset.WriteCSV(part.df, part.path); err != nil {
			logger.Error("cannot persist split", log.SplitKey, part.name, log.PathKey, part.path, log.ErrAttrKey, err)
			return SplitResult{}, err
		}
		r, c := part.df.Dims()
		logger.Info("split persisted",
			log.SplitKey, part.name,
			log.SamplesKey, r,
			log.FeaturesKey, c,
			log.PathKey, part.path,
			log.RandomSeedKey, int(d.cfg.RandomState()),
		)
	}
	return result, nil
}

// FitTransform reloads the persisted splits, fits a fresh preprocessor on
// the training features only, transforms both splits and persists the
// transformed matrices and the fitted preprocessor.
func (d *DataTransformation) FitTransform(trainPath, testPath string) (TransformResult, error) {
	logger := d.logger.With(log.OperationKey, log.OperationFitTransform)
	start := time.Now()
	missing := d.cfg.Options().MissingValues

	trainDF, err := dataset.ReadCSV(trainPath, missing)
	if err != nil {
		logger.Error("cannot read train split", log.PathKey, trainPath, log.ErrAttrKey, err)
		return TransformResult{}, err
	}
	testDF, err := dataset.ReadCSV(testPath, missing)
	if err != nil {
		logger.Error("cannot read test split", log.PathKey, testPath, log.ErrAttrKey, err)
		return TransformResult{}, err
	}

	xTrainDF, yTrain, err := dataset.SplitTarget(trainDF, d.cfg.TargetColumn())
	if err != nil {
		logger.Error("cannot separate target", log.SplitKey, "train", log.ErrAttrKey, err)
		return TransformResult{}, err
	}
	xTestDF, yTest, err := dataset.SplitTarget(testDF, d.cfg.TargetColumn())
	if err != nil {
		logger.Error("cannot separate target", log.SplitKey, "test", log.ErrAttrKey, err)
		return TransformResult{}, err
	}

	ct, err := preprocessing.BuildPreprocessor(d.cfg.NumericalCols(), d.cfg.CategoricalCols(), d.cfg.Options())
	if err != nil {
		logger.Error("cannot build preprocessor", log.ErrAttrKey, err)
		return TransformResult{}, err
	}
	if err := ct.Fit(xTrainDF); err != nil {
		logger.Error("preprocessor fit failed", log.PhaseKey, log.PhaseTraining, log.ErrAttrKey, err)
		return TransformResult{}, err
	}

	xTrain, err := ct.Transform(xTrainDF)
	if err != nil {
		logger.Error("transform failed", log.SplitKey, "train", log.ErrAttrKey, err)
		return TransformResult{}, err
	}
	xTest, err := ct.Transform(xTestDF)
	if err != nil {
		logger.Error("transform failed", log.SplitKey, "test", log.ErrAttrKey, err)
		return TransformResult{}, err
	}
	names, err := ct.GetFeatureNamesOut()
	if err != nil {
		logger.Error("cannot resolve output feature names", log.ErrAttrKey, err)
		return TransformResult{}, err
	}

	persistLogger := logger.With(log.OperationKey, log.OperationPersist)
	for _, out := range []struct {
		m    *mat.Dense
		path string
	}{
		{xTrain, d.cfg.TrainTransformedPath()},
		{xTest, d.cfg.TestTransformedPath()},
	} {
		if err := dataset.WriteMatrixCSV(out.m, out.path); err != nil {
			persistLogger.Error("cannot persist transformed matrix", log.PathKey, out.path, log.ErrAttrKey, err)
			return TransformResult{}, err
		}
	}
	if err := model.SaveModel(ct, d.cfg.PreprocessorPath()); err != nil {
		persistLogger.Error("cannot persist preprocessor", log.PathKey, d.cfg.PreprocessorPath(), log.ErrAttrKey, err)
		return TransformResult{}, err
	}

	result := TransformResult{
		XTrain:       xTrain,
		XTest:        xTest,
		YTrain:       yTrain,
		YTest:        yTest,
		FeatureNames: names,
		Preprocessor: ct,
	}

	if d.cfg.Plots() {
		cols := append(d.cfg.NumericalCols(), d.cfg.TargetColumn())
		plots, err := report.Histograms(trainDF, cols, d.cfg.PlotsDir())
		if err != nil {
			logger.Error("cannot write plots", log.PathKey, d.cfg.PlotsDir(), log.ErrAttrKey, err)
			return TransformResult{}, err
		}
		result.Plots = plots
	}

	trainRows, trainCols := xTrain.Dims()
	testRows, _ := xTest.Dims()
	logger.Info("data transformation completed",
		log.SamplesKey, trainRows+testRows,
		log.FeaturesKey, trainCols,
		"train_rows", trainRows,
		"test_rows", testRows,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return result, nil
}

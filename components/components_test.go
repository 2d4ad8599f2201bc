package components

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/elecbill/config"
	"github.com/YuminosukeSato/elecbill/core/model"
	"github.com/YuminosukeSato/elecbill/dataset"
	"github.com/YuminosukeSato/elecbill/pkg/errors"
	"github.com/YuminosukeSato/elecbill/pkg/log"
	"github.com/YuminosukeSato/elecbill/preprocessing"
)

// writeRawData writes n rows of numeric_a, numeric_b, category_x, ElectricityBill
// with a few missing cells in every feature column.
func writeRawData(t *testing.T, path string, n int) {
	t.Helper()
	categories := []string{"North", "South", "East", "West"}
	var b strings.Builder
	b.WriteString("numeric_a,numeric_b,category_x,ElectricityBill\n")
	for i := 0; i < n; i++ {
		a := fmt.Sprintf("%d", i)
		if i%10 == 3 {
			a = ""
		}
		bv := fmt.Sprintf("%.1f", float64(i%7)*1.5)
		if i%13 == 5 {
			bv = "NA"
		}
		c := categories[i%len(categories)]
		if i%11 == 7 {
			c = ""
		}
		fmt.Fprintf(&b, "%s,%s,%s,%.2f\n", a, bv, c, 100+float64(i)*2.5)
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
}

func newTransformationConfig(t *testing.T, n int) config.TransformationConfig {
	t.Helper()
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.csv")
	writeRawData(t, raw, n)
	root := filepath.Join(dir, "data_transformation")
	require.NoError(t, os.MkdirAll(root, 0o755))
	return config.NewTransformationConfig(root, raw,
		[]string{"numeric_a", "numeric_b"}, []string{"category_x"}, config.DefaultTargetColumn)
}

func TestDataTransformation_EndToEnd(t *testing.T) {
	cfg := newTransformationConfig(t, 100)
	logger, _ := log.NewTestLogger(log.LevelDebug)
	dt := NewDataTransformation(cfg, logger)

	split, err := dt.SplitAndPersist()
	require.NoError(t, err)
	trainRows, trainCols := split.XTrain.Dims()
	testRows, _ := split.XTest.Dims()
	assert.Equal(t, 75, trainRows)
	assert.Equal(t, 25, testRows)
	assert.Equal(t, 3, trainCols)
	assert.Equal(t, 75, split.YTrain.Len())
	assert.True(t, logger.ContainsMessage("split persisted"))

	trainDF, err := dataset.ReadCSV(cfg.TrainPath(), cfg.Options().MissingValues)
	require.NoError(t, err)
	assert.Equal(t, []string{"numeric_a", "numeric_b", "category_x", "ElectricityBill"}, trainDF.Names())

	result, err := dt.FitTransform(cfg.TrainPath(), cfg.TestPath())
	require.NoError(t, err)

	distinct := map[string]bool{}
	col := trainDF.Col("category_x")
	for i := 0; i < col.Len(); i++ {
		if !col.Elem(i).IsNA() {
			distinct[col.Elem(i).String()] = true
		}
	}
	wantCols := 2 + len(distinct)

	for _, tc := range []struct {
		path string
		rows int
		got  *mat.Dense
	}{
		{cfg.TrainTransformedPath(), 75, result.XTrain},
		{cfg.TestTransformedPath(), 25, result.XTest},
	} {
		persisted, err := dataset.ReadMatrixCSV(tc.path)
		require.NoError(t, err)
		r, c := persisted.Dims()
		assert.Equal(t, tc.rows, r)
		assert.Equal(t, wantCols, c)
		assert.True(t, mat.Equal(tc.got, persisted), "persisted matrix matches the returned one")
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				assert.False(t, math.IsNaN(persisted.At(i, j)), "NaN at %d,%d in %s", i, j, tc.path)
			}
		}
	}

	assert.Equal(t, []string{"numerical__numeric_a", "numerical__numeric_b"}, result.FeatureNames[:2])
	assert.Len(t, result.FeatureNames, wantCols)
	assert.Equal(t, 25, result.YTest.Len())
	assert.Empty(t, result.Plots)
}

func TestDataTransformation_PersistedPreprocessorReloads(t *testing.T) {
	cfg := newTransformationConfig(t, 60)
	dt := NewDataTransformation(cfg, nil)
	_, err := dt.SplitAndPersist()
	require.NoError(t, err)
	result, err := dt.FitTransform(cfg.TrainPath(), cfg.TestPath())
	require.NoError(t, err)

	var loaded preprocessing.ColumnTransformer
	require.NoError(t, model.LoadModel(&loaded, cfg.PreprocessorPath()))
	require.True(t, loaded.IsFitted())

	testDF, err := dataset.ReadCSV(cfg.TestPath(), cfg.Options().MissingValues)
	require.NoError(t, err)
	got, err := loaded.Transform(testDF)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(result.XTest, got, 1e-12))

	err = loaded.Fit(testDF)
	assert.True(t, errors.Is(err, errors.ErrAlreadyFitted), "a persisted preprocessor is never refit")
}

func TestDataTransformation_SplitKeepsRawColumnOrder(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.csv")
	var b strings.Builder
	b.WriteString("ElectricityBill,Fan,Region\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "%d,%d,%s\n", 100+i, i, []string{"A", "B"}[i%2])
	}
	require.NoError(t, os.WriteFile(raw, []byte(b.String()), 0o644))
	cfg := config.NewTransformationConfig(dir, raw, []string{"Fan"}, []string{"Region"}, config.DefaultTargetColumn)

	split, err := NewDataTransformation(cfg, nil).SplitAndPersist()
	require.NoError(t, err)
	assert.Equal(t, []string{"Fan", "Region"}, split.XTrain.Names())
	assert.Equal(t, config.DefaultTargetColumn, split.YTest.Name)
	assert.Equal(t, 2, split.YTest.Len())

	persisted, err := dataset.ReadCSV(cfg.TrainPath(), cfg.Options().MissingValues)
	require.NoError(t, err)
	assert.Equal(t, []string{"ElectricityBill", "Fan", "Region"}, persisted.Names())
	assert.Equal(t, split.YTrain.Records(), persisted.Col("ElectricityBill").Records())
}

func TestDataTransformation_SplitIsDeterministic(t *testing.T) {
	read := func() string {
		cfg := newTransformationConfig(t, 40)
		_, err := NewDataTransformation(cfg, nil).SplitAndPersist()
		require.NoError(t, err)
		raw, err := os.ReadFile(cfg.TrainPath())
		require.NoError(t, err)
		return string(raw)
	}
	assert.Equal(t, read(), read())
}

func TestDataTransformation_FitUsesTrainOnly(t *testing.T) {
	cfg := newTransformationConfig(t, 40)
	dt := NewDataTransformation(cfg, nil)
	_, err := dt.SplitAndPersist()
	require.NoError(t, err)
	first, err := dt.FitTransform(cfg.TrainPath(), cfg.TestPath())
	require.NoError(t, err)

	// 別のテストデータに差し替えても学習済みパラメータは変わらない
	altered := filepath.Join(t.TempDir(), "test.csv")
	require.NoError(t, os.WriteFile(altered,
		[]byte("numeric_a,numeric_b,category_x,ElectricityBill\n1000,-5,Mars,1\n,,,2\n"), 0o644))
	second, err := dt.FitTransform(cfg.TrainPath(), altered)
	require.NoError(t, err)

	assert.True(t, mat.Equal(first.XTrain, second.XTrain))
	assert.Equal(t, first.FeatureNames, second.FeatureNames)
	r, c := second.XTest.Dims()
	require.Equal(t, 2, r)
	for j := 2; j < c; j++ {
		assert.Zero(t, second.XTest.At(0, j), "unknown category encodes as zeros")
	}
}

func TestDataTransformation_Plots(t *testing.T) {
	cfg := newTransformationConfig(t, 30).WithPlots(true)
	dt := NewDataTransformation(cfg, nil)
	_, err := dt.SplitAndPersist()
	require.NoError(t, err)
	result, err := dt.FitTransform(cfg.TrainPath(), cfg.TestPath())
	require.NoError(t, err)
	require.Len(t, result.Plots, 3)
	for _, p := range result.Plots {
		assert.FileExists(t, p)
	}
}

func TestDataTransformation_Errors(t *testing.T) {
	t.Run("missing raw file", func(t *testing.T) {
		cfg := config.NewTransformationConfig(t.TempDir(), filepath.Join(t.TempDir(), "nope.csv"), []string{"a"}, nil, "y")
		_, err := NewDataTransformation(cfg, nil).SplitAndPersist()
		var persErr *errors.PersistenceError
		assert.True(t, errors.As(err, &persErr))
	})

	t.Run("missing target", func(t *testing.T) {
		dir := t.TempDir()
		raw := filepath.Join(dir, "raw.csv")
		require.NoError(t, os.WriteFile(raw, []byte("a,b\n1,2\n3,4\n"), 0o644))
		logger, _ := log.NewTestLogger(log.LevelDebug)
		cfg := config.NewTransformationConfig(dir, raw, []string{"a"}, nil, config.DefaultTargetColumn)

		_, err := NewDataTransformation(cfg, logger).SplitAndPersist()
		var dataErr *errors.DataFormatError
		require.True(t, errors.As(err, &dataErr))
		assert.Equal(t, config.DefaultTargetColumn, dataErr.Column)
		assert.True(t, logger.ContainsMessage("cannot separate target"))
		assert.NoFileExists(t, cfg.TrainPath())
	})

	t.Run("single row", func(t *testing.T) {
		dir := t.TempDir()
		raw := filepath.Join(dir, "raw.csv")
		require.NoError(t, os.WriteFile(raw, []byte("a,ElectricityBill\n1,2\n"), 0o644))
		cfg := config.NewTransformationConfig(dir, raw, []string{"a"}, nil, config.DefaultTargetColumn)

		_, err := NewDataTransformation(cfg, nil).SplitAndPersist()
		var dataErr *errors.DataFormatError
		assert.True(t, errors.As(err, &dataErr))
	})

	t.Run("listed column absent", func(t *testing.T) {
		cfg := newTransformationConfig(t, 20)
		cfg = config.NewTransformationConfig(cfg.RootDir(), cfg.DataPath(), []string{"numeric_z"}, nil, config.DefaultTargetColumn)
		dt := NewDataTransformation(cfg, nil)
		_, err := dt.SplitAndPersist()
		require.NoError(t, err)

		_, err = dt.FitTransform(cfg.TrainPath(), cfg.TestPath())
		require.Error(t, err)
		assert.NoFileExists(t, cfg.PreprocessorPath())
		assert.NoFileExists(t, cfg.TrainTransformedPath())
	})
}

func TestValidation(t *testing.T) {
	schema := map[string]string{"numeric_a": "int", "numeric_b": "float", "category_x": "object", "ElectricityBill": "float"}

	t.Run("matching columns", func(t *testing.T) {
		dir := t.TempDir()
		raw := filepath.Join(dir, "raw.csv")
		writeRawData(t, raw, 5)
		status := filepath.Join(dir, "dv", "status.txt")

		ok, err := NewDataValidation(config.NewValidationConfig(dir, raw, status, schema, config.DefaultTargetColumn), nil).ValidateAllColumns()
		require.NoError(t, err)
		assert.True(t, ok)
		content, err := os.ReadFile(status)
		require.NoError(t, err)
		assert.Equal(t, "Validation status: True", string(content))
		assert.NoError(t, CheckValidationStatus(status))
	})

	t.Run("undeclared column", func(t *testing.T) {
		dir := t.TempDir()
		raw := filepath.Join(dir, "raw.csv")
		require.NoError(t, os.WriteFile(raw, []byte("numeric_a,Extra,ElectricityBill\n1,2,3\n"), 0o644))
		status := filepath.Join(dir, "status.txt")
		logger, _ := log.NewTestLogger(log.LevelDebug)

		ok, err := NewDataValidation(config.NewValidationConfig(dir, raw, status, schema, config.DefaultTargetColumn), logger).ValidateAllColumns()
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, logger.ContainsField(log.ColumnKey, "Extra"))

		err = CheckValidationStatus(status)
		var gateErr *errors.ValidationGateError
		require.True(t, errors.As(err, &gateErr))
		assert.Equal(t, "False", gateErr.Status)
	})

	t.Run("missing target", func(t *testing.T) {
		dir := t.TempDir()
		raw := filepath.Join(dir, "raw.csv")
		require.NoError(t, os.WriteFile(raw, []byte("numeric_a\n1\n"), 0o644))

		ok, err := NewDataValidation(config.NewValidationConfig(dir, raw, filepath.Join(dir, "s.txt"), schema, config.DefaultTargetColumn), nil).ValidateAllColumns()
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCheckValidationStatus(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"true", write("true.txt", "Validation status: True"), false},
		{"trailing newline", write("nl.txt", "Validation status: True\n"), false},
		{"false", write("false.txt", "Validation status: False"), true},
		{"lowercase", write("lower.txt", "Validation status: true"), true},
		{"empty", write("empty.txt", ""), true},
		{"absent", filepath.Join(dir, "absent.txt"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckValidationStatus(tt.path)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var gateErr *errors.ValidationGateError
			require.True(t, errors.As(err, &gateErr))
			assert.Equal(t, tt.path, gateErr.StatusFile)
		})
	}
}

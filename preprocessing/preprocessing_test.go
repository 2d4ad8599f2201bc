package preprocessing

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/elecbill/core/model"
	"github.com/YuminosukeSato/elecbill/pkg/errors"
)

// frame builds an all-string DataFrame the same way dataset.ReadCSV does.
func frame(records [][]string) dataframe.DataFrame {
	return dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{"", "NA", "NaN"}),
	)
}

func trainFrame() dataframe.DataFrame {
	return frame([][]string{
		{"a", "x", "c", "b"},
		{"1", "north", "10", "5"},
		{"2", "south", "20", "5"},
		{"", "north", "30", "5"},
		{"4", "", "40", "5"},
	})
}

func column(m mat.Matrix, j int) []float64 {
	r, _ := m.Dims()
	return mat.Col(make([]float64, r), j, m)
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"odd", []float64{3, 1, 2}, 2},
		{"even averages middle pair", []float64{4, 1, 3, 2}, 2.5},
		{"single", []float64{7}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, median(tt.values))
		})
	}
}

func TestSimpleImputer(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, math.NaN(),
		2, 10,
		math.NaN(), 20,
		4, 30,
		100, 40,
	})

	t.Run("median", func(t *testing.T) {
		imp := NewSimpleImputer(StrategyMedian)
		out, err := imp.FitTransform(X)
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 25}, imp.Statistics)
		assert.Equal(t, 3.0, out.At(2, 0))
		assert.Equal(t, 25.0, out.At(0, 1))
		assert.True(t, math.IsNaN(X.At(2, 0)), "input must not be modified")
	})

	t.Run("mean", func(t *testing.T) {
		imp := NewSimpleImputer(StrategyMean)
		require.NoError(t, imp.Fit(X))
		assert.InDelta(t, 26.75, imp.Statistics[0], 1e-12)
	})

	t.Run("all missing column", func(t *testing.T) {
		imp := NewSimpleImputer(StrategyMedian).WithFeatureNames([]string{"a"})
		err := imp.Fit(mat.NewDense(2, 1, []float64{math.NaN(), math.NaN()}))
		var dfErr *errors.DataFormatError
		require.True(t, errors.As(err, &dfErr))
		assert.Equal(t, "a", dfErr.Column)
	})
}

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})
	s := NewStandardScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.Equal(t, 2.5, s.Mean[0])
	assert.InDelta(t, math.Sqrt(1.25), s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[1], "constant column keeps unit scale")

	mean, std := stat.PopMeanStdDev(column(out, 0), nil)
	assert.InDelta(t, 0, mean, 1e-12)
	assert.InDelta(t, 1, std, 1e-12)
	assert.Equal(t, []float64{0, 0, 0, 0}, column(out, 1))

	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestMinMaxScaler(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{2, 4, 6})
	s := NewMinMaxScalerDefault()
	out, err := s.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, column(out, 0))
}

func TestPipeline_GetFeatureNamesOut(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, math.NaN(), 2, 4, 3, 6})

	p := NewPipeline(
		Step{Name: "imputer", Transformer: NewSimpleImputer(StrategyMedian).WithFeatureNames([]string{"Fan", "Hour"})},
		Step{Name: "scaler", Transformer: NewStandardScalerDefault()},
	)
	_, err := p.GetFeatureNamesOut()
	var notFitted *errors.NotFittedError
	require.True(t, errors.As(err, &notFitted))

	require.NoError(t, p.Fit(X))
	names, err := p.GetFeatureNamesOut()
	require.NoError(t, err)
	assert.Equal(t, []string{"Fan", "Hour"}, names, "scaler keeps the imputer's names")

	unnamed := NewPipeline(Step{Name: "imputer", Transformer: NewSimpleImputer(StrategyMean)})
	require.NoError(t, unnamed.Fit(X))
	names, err = unnamed.GetFeatureNamesOut()
	require.NoError(t, err)
	assert.Equal(t, []string{"x0", "x1"}, names)

	scalerOnly := NewPipeline(Step{Name: "scaler", Transformer: NewMinMaxScalerDefault()})
	require.NoError(t, scalerOnly.Fit(mat.NewDense(2, 1, []float64{1, 2})))
	_, err = scalerOnly.GetFeatureNamesOut()
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))
}

func TestCategoricalImputer(t *testing.T) {
	cols := []Column{
		{Name: "tie", Values: []string{"b", "a", "b", "a", ""}, Missing: []bool{false, false, false, false, true}},
		{Name: "empty", Values: []string{"", "", "", "", ""}, Missing: []bool{true, true, true, true, true}},
	}

	imp := NewCategoricalImputer(StrategyMostFrequent, DefaultFillValue)
	out, err := imp.FitTransform(cols)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", DefaultFillValue}, imp.Statistics)
	assert.Equal(t, "a", out[0].Values[4])
	assert.Equal(t, DefaultFillValue, out[1].Values[0])
	assert.True(t, cols[0].IsMissing(4), "input must not be modified")
}

func TestOneHotEncoder(t *testing.T) {
	train := []Column{{Name: "x", Values: []string{"south", "north", "south"}}}
	enc := NewOneHotEncoder(HandleUnknownIgnore)
	out, err := enc.FitTransform(train)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"north", "south"}}, enc.Categories)
	assert.Equal(t, []float64{0, 1, 1, 0, 0, 1}, out.RawMatrix().Data)

	names, err := enc.GetFeatureNamesOut()
	require.NoError(t, err)
	assert.Equal(t, []string{"x_north", "x_south"}, names)

	t.Run("unknown ignored with warning", func(t *testing.T) {
		var warnings []error
		errors.SetZerologWarnFunc(func(w error) { warnings = append(warnings, w) })
		defer errors.SetZerologWarnFunc(nil)

		out, err := enc.Transform([]Column{{Name: "x", Values: []string{"east", "north"}}})
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0, 1, 0}, out.RawMatrix().Data)

		require.Len(t, warnings, 1)
		var w *errors.UnknownCategoryWarning
		require.True(t, errors.As(warnings[0], &w))
		assert.Equal(t, "x", w.Column)
		assert.Equal(t, []string{"east"}, w.Categories)
	})

	t.Run("unknown rejected", func(t *testing.T) {
		strict := NewOneHotEncoder(HandleUnknownError)
		require.NoError(t, strict.Fit(train))
		_, err := strict.Transform([]Column{{Name: "x", Values: []string{"east"}}})
		var valErr *errors.ValueError
		assert.True(t, errors.As(err, &valErr))
	})
}

func TestBuildPreprocessor_FitTransform(t *testing.T) {
	ct, err := BuildPreprocessor([]string{"a", "b"}, []string{"x"}, DefaultOptions())
	require.NoError(t, err)

	out, err := ct.FitTransform(trainFrame())
	require.NoError(t, err)

	rows, cols := out.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 2+2+1, cols)

	names, err := ct.GetFeatureNamesOut()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"numerical__a", "numerical__b",
		"categorical__x_north", "categorical__x_south",
		"remainder__c",
	}, names)

	imputer, ok := ct.Numeric.Steps[0].Transformer.(*SimpleImputer)
	require.True(t, ok)
	assert.Equal(t, []float64{2, 5}, imputer.Statistics)

	mean, std := stat.PopMeanStdDev(column(out, 0), nil)
	assert.InDelta(t, 0, mean, 1e-12)
	assert.InDelta(t, 1, std, 1e-12)
	assert.Equal(t, []float64{0, 0, 0, 0}, column(out, 1), "constant column scales to zero")

	// "north" is most frequent, so the missing cell in row 3 becomes north.
	assert.Equal(t, []float64{1, 0, 1, 1}, column(out, 2))
	assert.Equal(t, []float64{0, 1, 0, 0}, column(out, 3))
	assert.Equal(t, []float64{10, 20, 30, 40}, column(out, 4), "remainder passes through unchanged")
}

func TestColumnTransformer_TransformIsPure(t *testing.T) {
	ct, err := BuildPreprocessor([]string{"a"}, []string{"x"}, DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, ct.Fit(trainFrame()))

	test := frame([][]string{
		{"a", "x", "c", "b"},
		{"", "west", "7", "5"},
		{"100", "south", "8", "5"},
	})
	first, err := ct.Transform(test)
	require.NoError(t, err)
	second, err := ct.Transform(test)
	require.NoError(t, err)
	assert.True(t, mat.Equal(first, second))

	names, err := ct.GetFeatureNamesOut()
	require.NoError(t, err)
	assert.Equal(t, []string{"numerical__a", "categorical__x_north", "categorical__x_south", "remainder__c", "remainder__b"}, names)

	// Missing numeric cells get the training median (2), which scales the same
	// way as a literal 2 in the training data.
	trainOut, err := ct.Transform(trainFrame())
	require.NoError(t, err)
	assert.Equal(t, trainOut.At(1, 0), first.At(0, 0))
	assert.Equal(t, []float64{0, 0}, first.RawRowView(0)[1:3], "unknown category encodes as all zeros")
}

func TestColumnTransformer_Errors(t *testing.T) {
	t.Run("transform before fit", func(t *testing.T) {
		ct, err := BuildPreprocessor([]string{"a"}, nil, DefaultOptions())
		require.NoError(t, err)
		_, err = ct.Transform(trainFrame())
		var nf *errors.NotFittedError
		assert.True(t, errors.As(err, &nf))

		_, err = ct.GetFeatureNamesOut()
		assert.True(t, errors.As(err, &nf))
	})

	t.Run("second fit rejected", func(t *testing.T) {
		ct, err := BuildPreprocessor([]string{"a"}, []string{"x"}, DefaultOptions())
		require.NoError(t, err)
		require.NoError(t, ct.Fit(trainFrame()))
		err = ct.Fit(trainFrame())
		assert.True(t, errors.Is(err, errors.ErrAlreadyFitted))
	})

	t.Run("non-numeric text in numeric column", func(t *testing.T) {
		ct, err := BuildPreprocessor([]string{"x"}, nil, DefaultOptions())
		require.NoError(t, err)
		err = ct.Fit(trainFrame())
		var dfErr *errors.DataFormatError
		require.True(t, errors.As(err, &dfErr))
		assert.Equal(t, "x", dfErr.Column)
	})

	t.Run("non-numeric passthrough column", func(t *testing.T) {
		ct, err := BuildPreprocessor([]string{"a"}, nil, DefaultOptions())
		require.NoError(t, err)
		err = ct.Fit(trainFrame())
		var dfErr *errors.DataFormatError
		require.True(t, errors.As(err, &dfErr))
		assert.Equal(t, "x", dfErr.Column)
	})

	t.Run("listed column absent", func(t *testing.T) {
		ct, err := BuildPreprocessor([]string{"nope"}, nil, DefaultOptions())
		require.NoError(t, err)
		var dfErr *errors.DataFormatError
		assert.True(t, errors.As(ct.Fit(trainFrame()), &dfErr))
	})

	t.Run("fitted column missing at transform", func(t *testing.T) {
		ct, err := BuildPreprocessor([]string{"a", "b"}, []string{"x"}, DefaultOptions())
		require.NoError(t, err)
		require.NoError(t, ct.Fit(trainFrame()))
		_, err = ct.Transform(trainFrame().Drop("c"))
		var dfErr *errors.DataFormatError
		require.True(t, errors.As(err, &dfErr))
		assert.Equal(t, "c", dfErr.Column)
	})

	t.Run("all-missing numeric column", func(t *testing.T) {
		df := frame([][]string{{"a", "b"}, {"", "1"}, {"NA", "2"}})
		ct, err := BuildPreprocessor([]string{"a", "b"}, nil, DefaultOptions())
		require.NoError(t, err)
		var dfErr *errors.DataFormatError
		assert.True(t, errors.As(ct.Fit(df), &dfErr))
	})

	t.Run("invalid options", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Scaler = "robust"
		_, err := BuildPreprocessor([]string{"a"}, nil, opts)
		var valErr *errors.ValidationError
		assert.True(t, errors.As(err, &valErr))
	})
}

func TestColumnTransformer_Options(t *testing.T) {
	opts := DefaultOptions()
	opts.Scaler = ScalerMinMax
	opts.Remainder = RemainderDrop

	ct, err := BuildPreprocessor([]string{"a"}, []string{"x"}, opts)
	require.NoError(t, err)
	out, err := ct.FitTransform(trainFrame())
	require.NoError(t, err)

	_, cols := out.Dims()
	assert.Equal(t, 3, cols)
	assert.Equal(t, []float64{0, 1.0 / 3, 1.0 / 3, 1}, column(out, 0))

	names, err := ct.GetFeatureNamesOut()
	require.NoError(t, err)
	assert.Equal(t, []string{"numerical__a", "categorical__x_north", "categorical__x_south"}, names)
}

func TestColumnTransformer_IntColumnsWarn(t *testing.T) {
	var warnings []error
	remove := errors.ObserveWarnings(func(w error) { warnings = append(warnings, w) })
	defer remove()

	df := dataframe.New(
		series.New([]int{1, 2, 3}, series.Int, "fan"),
		series.New([]string{"a", "b", "a"}, series.String, "city"),
	)
	ct, err := BuildPreprocessor([]string{"fan"}, []string{"city"}, DefaultOptions())
	require.NoError(t, err)
	out, err := ct.FitTransform(df)
	require.NoError(t, err)
	assert.InDelta(t, 0, stat.Mean(column(out, 0), nil), 1e-12)

	require.NotEmpty(t, warnings)
	var conv *errors.DataConversionWarning
	require.True(t, errors.As(warnings[0], &conv))
	assert.Equal(t, "int", conv.FromType)
}

func TestColumnTransformer_PersistRoundTrip(t *testing.T) {
	ct, err := BuildPreprocessor([]string{"a", "b"}, []string{"x"}, DefaultOptions())
	require.NoError(t, err)
	want, err := ct.FitTransform(trainFrame())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "preprocessor_obj.gob")
	require.NoError(t, model.SaveModel(ct, path))

	var loaded ColumnTransformer
	require.NoError(t, model.LoadModel(&loaded, path))
	assert.True(t, loaded.IsFitted())

	got, err := loaded.Transform(trainFrame())
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))

	names, err := loaded.GetFeatureNamesOut()
	require.NoError(t, err)
	assert.Len(t, names, 5)
}

package preprocessing

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/elecbill/core/model"
	"github.com/YuminosukeSato/elecbill/pkg/errors"
)

// 出力列名の接頭辞
const (
	NumericalPrefix   = "numerical__"
	CategoricalPrefix = "categorical__"
	RemainderPrefix   = "remainder__"
)

// ColumnTransformer は列名で数値ブロック、カテゴリブロック、残りの列を振り分けて変換する。
// 出力列の順序は 数値列 → one-hot列 → 残りの列（入力順）。
type ColumnTransformer struct {
	State   *model.StateManager
	Options Options

	NumericCols     []string
	CategoricalCols []string

	// 学習時に決まる
	InputCols     []string
	RemainderCols []string

	Numeric     *Pipeline
	Categorical *CategoricalPipeline
}

// BuildPreprocessor は未学習のColumnTransformerを構築する。
// 数値列: 欠損補完(median) → スケーリング(standard)
// カテゴリ列: 欠損補完(most_frequent, 観測値がなければ "missing") → one-hot(ignore)
// その他の列: passthrough
//
// passthrough される列も数値でなければならない。文字列の残り列はそのまま通さず、
// Fit/Transform が DataFormatError を返す（apply の入力も同様）。
//
// 列リストはそのまま使われ、重複や存在確認はFit時に行う。
//
//	ct, err := preprocessing.BuildPreprocessor([]string{"a", "b"}, []string{"x"}, preprocessing.DefaultOptions())
//	if err != nil { return err }
//	Xtrain, err := ct.FitTransform(trainFeatures)
//	Xtest, err := ct.Transform(testFeatures)
func BuildPreprocessor(numeric, categorical []string, opts Options) (*ColumnTransformer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	ct := &ColumnTransformer{
		State:           model.NewStateManager(),
		Options:         opts.Clone(),
		NumericCols:     append([]string(nil), numeric...),
		CategoricalCols: append([]string(nil), categorical...),
	}

	if len(numeric) > 0 {
		var scaler model.Transformer = NewStandardScalerDefault()
		if opts.Scaler == ScalerMinMax {
			scaler = NewMinMaxScalerDefault()
		}
		ct.Numeric = NewPipeline(
			Step{Name: "imputer", Transformer: NewSimpleImputer(opts.NumericImputer).WithFeatureNames(numeric)},
			Step{Name: "scaler", Transformer: scaler},
		)
	}
	if len(categorical) > 0 {
		ct.Categorical = NewCategoricalPipeline(
			NewCategoricalImputer(opts.CategoricalImputer, opts.FillValue),
			NewOneHotEncoder(opts.HandleUnknown),
		)
	}
	return ct, nil
}

// IsFitted は学習済みかどうかを返す
func (ct *ColumnTransformer) IsFitted() bool { return ct.State.IsFitted() }

// Fit は学習データの特徴量（目的変数を除く）から各ブロックのパラメータを学習する。
// 2回目の呼び出しはエラーになる。
func (ct *ColumnTransformer) Fit(X dataframe.DataFrame) error {
	if err := ct.State.RequireUnfitted("ColumnTransformer"); err != nil {
		return err
	}
	if X.Err != nil {
		return errors.Wrap(X.Err, "ColumnTransformer.Fit")
	}
	rows, _ := X.Dims()
	if rows == 0 {
		return errors.NewModelError("ColumnTransformer.Fit", "empty data", errors.ErrEmptyData)
	}

	present := make(map[string]bool)
	for _, name := range X.Names() {
		present[name] = true
	}
	listed := make(map[string]string)
	for _, group := range []struct {
		kind string
		cols []string
	}{{"numerical", ct.NumericCols}, {"categorical", ct.CategoricalCols}} {
		for _, name := range group.cols {
			if prev, dup := listed[name]; dup {
				return errors.NewValueError("ColumnTransformer.Fit",
					fmt.Sprintf("column '%s' is listed as both %s and %s", name, prev, group.kind))
			}
			listed[name] = group.kind
			if !present[name] {
				return errors.NewDataFormatError("ColumnTransformer.Fit", name, "column not found in input")
			}
		}
	}

	ct.InputCols = X.Names()
	ct.RemainderCols = nil
	for _, name := range ct.InputCols {
		if _, ok := listed[name]; !ok {
			ct.RemainderCols = append(ct.RemainderCols, name)
		}
	}
	if ct.outputWidthUpperBound() == 0 {
		return errors.NewValueError("ColumnTransformer.Fit", "no columns selected for output")
	}

	missing := ct.missingSet()
	if ct.Numeric != nil {
		num, err := numericMatrix("ColumnTransformer.Fit", X, ct.NumericCols, missing)
		if err != nil {
			return err
		}
		if err := ct.Numeric.Fit(num); err != nil {
			return err
		}
	}
	if ct.Categorical != nil {
		cols, err := categoricalColumns(X, ct.CategoricalCols, missing)
		if err != nil {
			return err
		}
		if err := ct.Categorical.Fit(cols); err != nil {
			return err
		}
	}
	if ct.passthrough() && len(ct.RemainderCols) > 0 {
		if _, err := numericMatrix("ColumnTransformer.Fit", X, ct.RemainderCols, missing); err != nil {
			return err
		}
	}

	ct.State.MarkFitted(len(ct.InputCols), rows)
	return nil
}

func (ct *ColumnTransformer) passthrough() bool {
	return ct.Options.Remainder == RemainderPassthrough
}

func (ct *ColumnTransformer) outputWidthUpperBound() int {
	n := len(ct.NumericCols) + len(ct.CategoricalCols)
	if ct.passthrough() {
		n += len(ct.RemainderCols)
	}
	return n
}

func (ct *ColumnTransformer) missingSet() map[string]struct{} {
	set := make(map[string]struct{}, len(ct.Options.MissingValues))
	for _, token := range ct.Options.MissingValues {
		set[token] = struct{}{}
	}
	return set
}

// NumOutputs は出力列数を返す
func (ct *ColumnTransformer) NumOutputs() int {
	n := len(ct.NumericCols)
	if ct.Categorical != nil {
		n += ct.Categorical.Encoder.NumOutputs()
	}
	if ct.passthrough() {
		n += len(ct.RemainderCols)
	}
	return n
}

// Transform は学習済みの状態でXを変換する。状態は変更しない。
// 学習時に使った列はすべて存在する必要があり、それ以外の列は無視される。
func (ct *ColumnTransformer) Transform(X dataframe.DataFrame) (*mat.Dense, error) {
	if err := ct.State.RequireFitted("ColumnTransformer", "Transform"); err != nil {
		return nil, err
	}
	if X.Err != nil {
		return nil, errors.Wrap(X.Err, "ColumnTransformer.Transform")
	}
	rows, _ := X.Dims()
	if rows == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Transform", "empty data", errors.ErrEmptyData)
	}

	present := make(map[string]bool)
	for _, name := range X.Names() {
		present[name] = true
	}
	for _, name := range ct.InputCols {
		if !present[name] {
			return nil, errors.NewDataFormatError("ColumnTransformer.Transform", name, "column seen during fit is missing")
		}
	}

	out := mat.NewDense(rows, ct.NumOutputs(), nil)
	offset := 0
	missing := ct.missingSet()

	if ct.Numeric != nil {
		num, err := numericMatrix("ColumnTransformer.Transform", X, ct.NumericCols, missing)
		if err != nil {
			return nil, err
		}
		block, err := ct.Numeric.Transform(num)
		if err != nil {
			return nil, err
		}
		if err := errors.CheckMatrix("ColumnTransformer.Transform[numerical]", block); err != nil {
			return nil, err
		}
		offset = copyBlock(out, block, offset)
	}

	if ct.Categorical != nil {
		cols, err := categoricalColumns(X, ct.CategoricalCols, missing)
		if err != nil {
			return nil, err
		}
		block, err := ct.Categorical.Transform(cols)
		if err != nil {
			return nil, err
		}
		if err := errors.CheckMatrix("ColumnTransformer.Transform[categorical]", block); err != nil {
			return nil, err
		}
		offset = copyBlock(out, block, offset)
	}

	if ct.passthrough() && len(ct.RemainderCols) > 0 {
		block, err := numericMatrix("ColumnTransformer.Transform", X, ct.RemainderCols, missing)
		if err != nil {
			return nil, err
		}
		copyBlock(out, block, offset)
	}
	return out, nil
}

// FitTransform は学習と変換を続けて行う
func (ct *ColumnTransformer) FitTransform(X dataframe.DataFrame) (*mat.Dense, error) {
	if err := ct.Fit(X); err != nil {
		return nil, err
	}
	return ct.Transform(X)
}

// GetFeatureNamesOut は出力列名を返す
// 例: numerical__a, categorical__x_v, remainder__c
func (ct *ColumnTransformer) GetFeatureNamesOut() ([]string, error) {
	if err := ct.State.RequireFitted("ColumnTransformer", "GetFeatureNamesOut"); err != nil {
		return nil, err
	}
	type branch struct {
		prefix string
		namer  model.FeatureNamer
	}
	var branches []branch
	if ct.Numeric != nil {
		branches = append(branches, branch{NumericalPrefix, ct.Numeric})
	}
	if ct.Categorical != nil {
		branches = append(branches, branch{CategoricalPrefix, ct.Categorical})
	}

	names := make([]string, 0, ct.NumOutputs())
	for _, b := range branches {
		out, err := b.namer.GetFeatureNamesOut()
		if err != nil {
			return nil, err
		}
		for _, name := range out {
			names = append(names, b.prefix+name)
		}
	}
	if ct.passthrough() {
		for _, name := range ct.RemainderCols {
			names = append(names, RemainderPrefix+name)
		}
	}
	return names, nil
}

func copyBlock(dst *mat.Dense, block mat.Matrix, offset int) int {
	r, c := block.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(i, offset+j, block.At(i, j))
		}
	}
	return offset + c
}

func isMissingCell(v string, nan bool, missing map[string]struct{}) bool {
	if nan {
		return true
	}
	_, ok := missing[strings.TrimSpace(v)]
	return ok
}

// numericMatrix は指定列をfloat64行列に変換する。欠損セルはNaNになる。
func numericMatrix(op string, X dataframe.DataFrame, cols []string, missing map[string]struct{}) (*mat.Dense, error) {
	rows, _ := X.Dims()
	out := mat.NewDense(rows, len(cols), nil)
	for j, name := range cols {
		s := X.Col(name)
		if s.Err != nil {
			return nil, errors.NewDataFormatError(op, name, "column not found in input")
		}

		if s.Type() == series.Int {
			errors.Warn(errors.NewDataConversionWarning("int", "float64", "column '"+name+"' is cast for "+op))
		}
		if s.Type() == series.Float || s.Type() == series.Int {
			for i, v := range s.Float() {
				if math.IsInf(v, 0) {
					return nil, errors.NewDataFormatError(op, name, fmt.Sprintf("infinite value at row %d", i))
				}
				out.Set(i, j, v)
			}
			continue
		}

		nan := s.IsNaN()
		for i, raw := range s.Records() {
			if isMissingCell(raw, nan[i], missing) {
				out.Set(i, j, math.NaN())
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, errors.NewDataFormatError(op, name, fmt.Sprintf("non-numeric value %q at row %d", raw, i))
			}
			if math.IsInf(v, 0) {
				return nil, errors.NewDataFormatError(op, name, fmt.Sprintf("infinite value at row %d", i))
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// categoricalColumns は指定列を文字列のColumnとして取り出す
func categoricalColumns(X dataframe.DataFrame, cols []string, missing map[string]struct{}) ([]Column, error) {
	out := make([]Column, len(cols))
	for j, name := range cols {
		s := X.Col(name)
		if s.Err != nil {
			return nil, errors.NewDataFormatError("ColumnTransformer", name, "column not found in input")
		}
		values := s.Records()
		nan := s.IsNaN()
		flags := make([]bool, len(values))
		for i, v := range values {
			flags[i] = isMissingCell(v, nan[i], missing)
		}
		out[j] = Column{Name: name, Values: values, Missing: flags}
	}
	return out, nil
}

package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/elecbill/core/model"
	"github.com/YuminosukeSato/elecbill/pkg/errors"
)

// SimpleImputer は数値列の欠損値(NaN)を学習データの統計量で補完する
type SimpleImputer struct {
	State *model.StateManager

	// Strategy は "median" または "mean"
	Strategy string

	// Statistics は各列の補完値
	Statistics []float64

	// FeatureNamesIn はエラーメッセージ用の列名（任意）
	FeatureNamesIn []string
}

// NewSimpleImputer は新しいSimpleImputerを作成する
//
//	imp := preprocessing.NewSimpleImputer(preprocessing.StrategyMedian)
//	XFilled, err := imp.FitTransform(X)
func NewSimpleImputer(strategy string) *SimpleImputer {
	return &SimpleImputer{
		State:    model.NewStateManager(),
		Strategy: strategy,
	}
}

// WithFeatureNames は列名を設定したSimpleImputerを返す
func (s *SimpleImputer) WithFeatureNames(names []string) *SimpleImputer {
	s.FeatureNamesIn = append([]string(nil), names...)
	return s
}

// IsFitted は学習済みかどうかを返す
func (s *SimpleImputer) IsFitted() bool { return s.State.IsFitted() }

func (s *SimpleImputer) columnName(j int) string {
	if j < len(s.FeatureNamesIn) {
		return s.FeatureNamesIn[j]
	}
	return fmt.Sprintf("x%d", j)
}

// Fit は各列のNaNを除いた値から補完値を計算する。
// 観測値が一つもない列はDataFormatErrorになる。
func (s *SimpleImputer) Fit(X mat.Matrix) error {
	if err := s.State.RequireUnfitted("SimpleImputer"); err != nil {
		return err
	}
	if s.Strategy != StrategyMedian && s.Strategy != StrategyMean {
		return errors.NewValidationError("strategy", "must be median or mean", s.Strategy)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}

	s.Statistics = make([]float64, c)
	observed := make([]float64, 0, r)
	for j := 0; j < c; j++ {
		observed = observed[:0]
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			return errors.NewDataFormatError("SimpleImputer.Fit", s.columnName(j), "column has no observed values")
		}

		switch s.Strategy {
		case StrategyMean:
			s.Statistics[j] = stat.Mean(observed, nil)
		default:
			s.Statistics[j] = median(observed)
		}
	}

	s.State.MarkFitted(c, r)
	return nil
}

// median は偶数個の場合に中央の2値の平均を返す（numpy.medianと同じ）。
// valuesは並べ替えられる。
func median(values []float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n%2 == 1 {
		return values[n/2]
	}
	return (values[n/2-1] + values[n/2]) / 2
}

// Transform はNaNを学習済みの補完値で置き換える
func (s *SimpleImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.State.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	nFeatures, _ := s.State.GetDimensions()
	if c != nFeatures {
		return nil, errors.NewDimensionError("SimpleImputer.Transform", nFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		if math.IsNaN(v) {
			return s.Statistics[j]
		}
		return v
	}, X)
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *SimpleImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// GetFeatureNamesOut は入力と同じ列名を返す。名前が未設定の列は x0, x1, ...
func (s *SimpleImputer) GetFeatureNamesOut() ([]string, error) {
	if err := s.State.RequireFitted("SimpleImputer", "GetFeatureNamesOut"); err != nil {
		return nil, err
	}
	nFeatures, _ := s.State.GetDimensions()
	names := make([]string, nFeatures)
	for j := range names {
		names[j] = s.columnName(j)
	}
	return names, nil
}

// Column はカテゴリ列ひとつ分の生の文字列データ。
// Missing[i] がtrueのセルは欠損として扱う。
type Column struct {
	Name    string
	Values  []string
	Missing []bool
}

// Len は行数を返す
func (c Column) Len() int { return len(c.Values) }

// IsMissing はi行目が欠損かどうかを返す
func (c Column) IsMissing(i int) bool {
	return i < len(c.Missing) && c.Missing[i]
}

func checkColumns(op string, cols []Column) (int, error) {
	if len(cols) == 0 {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	rows := cols[0].Len()
	for _, col := range cols[1:] {
		if col.Len() != rows {
			return 0, errors.NewDimensionError(op, rows, col.Len(), 0)
		}
	}
	return rows, nil
}

// CategoricalImputer はカテゴリ列の欠損値を最頻値（または固定値）で補完する
type CategoricalImputer struct {
	State *model.StateManager

	// Strategy は "most_frequent" または "constant"
	Strategy string

	// FillValue は constant戦略の補完値、および観測値がない列の補完値
	FillValue string

	// Statistics は各列の補完値
	Statistics []string

	// FeatureNamesIn は学習時の列名
	FeatureNamesIn []string
}

// NewCategoricalImputer は新しいCategoricalImputerを作成する
func NewCategoricalImputer(strategy, fillValue string) *CategoricalImputer {
	return &CategoricalImputer{
		State:     model.NewStateManager(),
		Strategy:  strategy,
		FillValue: fillValue,
	}
}

// IsFitted は学習済みかどうかを返す
func (c *CategoricalImputer) IsFitted() bool { return c.State.IsFitted() }

// Fit は各列の補完値を学習する。最頻値が複数ある場合は辞書順で最小の値を選ぶ。
func (c *CategoricalImputer) Fit(cols []Column) error {
	if err := c.State.RequireUnfitted("CategoricalImputer"); err != nil {
		return err
	}
	if c.Strategy != StrategyMostFrequent && c.Strategy != StrategyConstant {
		return errors.NewValidationError("strategy", "must be most_frequent or constant", c.Strategy)
	}
	rows, err := checkColumns("CategoricalImputer.Fit", cols)
	if err != nil {
		return err
	}

	c.Statistics = make([]string, len(cols))
	c.FeatureNamesIn = make([]string, len(cols))
	for j, col := range cols {
		c.FeatureNamesIn[j] = col.Name
		if c.Strategy == StrategyConstant {
			c.Statistics[j] = c.FillValue
			continue
		}
		c.Statistics[j] = mostFrequent(col, c.FillValue)
	}

	c.State.MarkFitted(len(cols), rows)
	return nil
}

func mostFrequent(col Column, fallback string) string {
	counts := make(map[string]int)
	for i, v := range col.Values {
		if !col.IsMissing(i) {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return fallback
	}

	best, bestCount := "", -1
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}

// Transform は欠損セルを補完した新しい列を返す。入力は変更しない。
func (c *CategoricalImputer) Transform(cols []Column) ([]Column, error) {
	if err := c.State.RequireFitted("CategoricalImputer", "Transform"); err != nil {
		return nil, err
	}
	if len(cols) != len(c.Statistics) {
		return nil, errors.NewDimensionError("CategoricalImputer.Transform", len(c.Statistics), len(cols), 1)
	}
	if _, err := checkColumns("CategoricalImputer.Transform", cols); err != nil {
		return nil, err
	}

	out := make([]Column, len(cols))
	for j, col := range cols {
		values := make([]string, col.Len())
		for i, v := range col.Values {
			if col.IsMissing(i) {
				v = c.Statistics[j]
			}
			values[i] = v
		}
		out[j] = Column{Name: col.Name, Values: values}
	}
	return out, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (c *CategoricalImputer) FitTransform(cols []Column) ([]Column, error) {
	if err := c.Fit(cols); err != nil {
		return nil, err
	}
	return c.Transform(cols)
}

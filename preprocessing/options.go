package preprocessing

import (
	"fmt"

	"github.com/YuminosukeSato/elecbill/pkg/errors"
)

// 数値列の欠損補完戦略
const (
	StrategyMedian = "median"
	StrategyMean   = "mean"
)

// カテゴリ列の欠損補完戦略
const (
	StrategyMostFrequent = "most_frequent"
	StrategyConstant     = "constant"
)

// スケーラーの種類
const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

// 未知カテゴリの扱い
const (
	HandleUnknownIgnore = "ignore"
	HandleUnknownError  = "error"
)

// 残りの列の扱い
const (
	RemainderPassthrough = "passthrough"
	RemainderDrop        = "drop"
)

// DefaultFillValue はカテゴリ列に観測値が一つもない場合の補完値
const DefaultFillValue = "missing"

// Options はBuildPreprocessorに渡す前処理の設定
type Options struct {
	NumericImputer     string
	Scaler             string
	CategoricalImputer string
	FillValue          string
	HandleUnknown      string
	Remainder          string
	// MissingValues は欠損として扱うセルの文字列
	MissingValues []string
}

// DefaultOptions は中央値補完 + 標準化、最頻値補完 + one-hot(ignore)、passthroughの設定を返す
func DefaultOptions() Options {
	return Options{
		NumericImputer:     StrategyMedian,
		Scaler:             ScalerStandard,
		CategoricalImputer: StrategyMostFrequent,
		FillValue:          DefaultFillValue,
		HandleUnknown:      HandleUnknownIgnore,
		Remainder:          RemainderPassthrough,
		MissingValues:      []string{"", "NA", "NaN", "nan", "null"},
	}
}

// Clone はスライスを複製したコピーを返す
func (o Options) Clone() Options {
	if o.MissingValues != nil {
		mv := make([]string, len(o.MissingValues))
		copy(mv, o.MissingValues)
		o.MissingValues = mv
	}
	return o
}

// Validate は各設定値が既知の値かどうかを検証する
func (o Options) Validate() error {
	checks := []struct {
		param   string
		value   string
		allowed []string
	}{
		{"numerical.imputer", o.NumericImputer, []string{StrategyMedian, StrategyMean}},
		{"numerical.scaler", o.Scaler, []string{ScalerStandard, ScalerMinMax}},
		{"categorical.imputer", o.CategoricalImputer, []string{StrategyMostFrequent, StrategyConstant}},
		{"categorical.handle_unknown", o.HandleUnknown, []string{HandleUnknownIgnore, HandleUnknownError}},
		{"remainder", o.Remainder, []string{RemainderPassthrough, RemainderDrop}},
	}
	for _, c := range checks {
		if !contains(c.allowed, c.value) {
			return errors.NewValidationError(c.param, fmt.Sprintf("must be one of %v", c.allowed), c.value)
		}
	}
	if o.FillValue == "" {
		return errors.NewValidationError("categorical.fill_value", "must not be empty", o.FillValue)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

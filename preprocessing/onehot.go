package preprocessing

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/elecbill/core/model"
	"github.com/YuminosukeSato/elecbill/pkg/errors"
)

// OneHotEncoder はカテゴリ列を0/1の指示変数に展開する。
// 語彙は列ごとに辞書順でソートされる。
type OneHotEncoder struct {
	State *model.StateManager

	// HandleUnknown は "ignore"（未知カテゴリを全0にして警告）または "error"
	HandleUnknown string

	// Categories は各列の語彙（ソート済み）
	Categories [][]string

	// FeatureNamesIn は学習時の列名
	FeatureNamesIn []string
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
//
//	enc := preprocessing.NewOneHotEncoder(preprocessing.HandleUnknownIgnore)
//	err := enc.Fit(cols)
//	X, err := enc.Transform(cols)
func NewOneHotEncoder(handleUnknown string) *OneHotEncoder {
	return &OneHotEncoder{
		State:         model.NewStateManager(),
		HandleUnknown: handleUnknown,
	}
}

// IsFitted は学習済みかどうかを返す
func (e *OneHotEncoder) IsFitted() bool { return e.State.IsFitted() }

// Fit は各列の語彙を学習する。欠損セルは補完済みであること。
func (e *OneHotEncoder) Fit(cols []Column) error {
	if err := e.State.RequireUnfitted("OneHotEncoder"); err != nil {
		return err
	}
	if e.HandleUnknown != HandleUnknownIgnore && e.HandleUnknown != HandleUnknownError {
		return errors.NewValidationError("handle_unknown", "must be ignore or error", e.HandleUnknown)
	}
	rows, err := checkColumns("OneHotEncoder.Fit", cols)
	if err != nil {
		return err
	}

	e.Categories = make([][]string, len(cols))
	e.FeatureNamesIn = make([]string, len(cols))
	for j, col := range cols {
		e.FeatureNamesIn[j] = col.Name
		seen := make(map[string]struct{})
		for i, v := range col.Values {
			if col.IsMissing(i) {
				return errors.NewDataFormatError("OneHotEncoder.Fit", col.Name, fmt.Sprintf("missing value at row %d; impute before encoding", i))
			}
			seen[v] = struct{}{}
		}
		vocab := make([]string, 0, len(seen))
		for v := range seen {
			vocab = append(vocab, v)
		}
		sort.Strings(vocab)
		e.Categories[j] = vocab
	}

	e.State.MarkFitted(len(cols), rows)
	return nil
}

// NumOutputs は出力列数（語彙サイズの合計）を返す
func (e *OneHotEncoder) NumOutputs() int {
	n := 0
	for _, vocab := range e.Categories {
		n += len(vocab)
	}
	return n
}

// Transform は列をone-hot行列に変換する。
// 学習時に存在しなかったカテゴリの行は該当ブロックが全0になり、
// 列ごとにUnknownCategoryWarningが発生する。
func (e *OneHotEncoder) Transform(cols []Column) (*mat.Dense, error) {
	if err := e.State.RequireFitted("OneHotEncoder", "Transform"); err != nil {
		return nil, err
	}
	if len(cols) != len(e.Categories) {
		return nil, errors.NewDimensionError("OneHotEncoder.Transform", len(e.Categories), len(cols), 1)
	}
	rows, err := checkColumns("OneHotEncoder.Transform", cols)
	if err != nil {
		return nil, err
	}
	if rows == 0 || e.NumOutputs() == 0 {
		return nil, errors.NewModelError("OneHotEncoder.Transform", "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(rows, e.NumOutputs(), nil)
	var warnings []error
	offset := 0
	for j, col := range cols {
		vocab := e.Categories[j]
		index := make(map[string]int, len(vocab))
		for k, v := range vocab {
			index[v] = k
		}

		unknown := make(map[string]struct{})
		for i, v := range col.Values {
			if col.IsMissing(i) {
				return nil, errors.NewDataFormatError("OneHotEncoder.Transform", col.Name, fmt.Sprintf("missing value at row %d; impute before encoding", i))
			}
			k, ok := index[v]
			if !ok {
				unknown[v] = struct{}{}
				continue
			}
			out.Set(i, offset+k, 1)
		}

		if len(unknown) > 0 {
			names := make([]string, 0, len(unknown))
			for v := range unknown {
				names = append(names, v)
			}
			sort.Strings(names)
			if e.HandleUnknown == HandleUnknownError {
				return nil, errors.NewValueError("OneHotEncoder.Transform",
					fmt.Sprintf("found unknown categories [%s] in column '%s'", strings.Join(names, ", "), col.Name))
			}
			warnings = append(warnings, errors.NewUnknownCategoryWarning(col.Name, names))
		}
		offset += len(vocab)
	}

	for _, w := range warnings {
		errors.Warn(w)
	}
	return out, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (e *OneHotEncoder) FitTransform(cols []Column) (*mat.Dense, error) {
	if err := e.Fit(cols); err != nil {
		return nil, err
	}
	return e.Transform(cols)
}

// GetFeatureNamesOut は "<列名>_<カテゴリ>" 形式の出力列名を返す
func (e *OneHotEncoder) GetFeatureNamesOut() ([]string, error) {
	if err := e.State.RequireFitted("OneHotEncoder", "GetFeatureNamesOut"); err != nil {
		return nil, err
	}
	names := make([]string, 0, e.NumOutputs())
	for j, vocab := range e.Categories {
		for _, v := range vocab {
			names = append(names, e.FeatureNamesIn[j]+"_"+v)
		}
	}
	return names, nil
}

package model

import "gonum.org/v1/gonum/mat"

// Transformer は数値行列を変換するステップのインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する。学習済みの状態は変更しない
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)

	// IsFitted は学習済みかどうかを返す
	IsFitted() bool
}

// FeatureNamer は変換後の列名を返せるステップのインターフェース
type FeatureNamer interface {
	GetFeatureNamesOut() ([]string, error)
}

package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/YuminosukeSato/elecbill/pkg/errors"
)

// SaveModel は学習済みのオブジェクトをgob形式でファイルに保存する
//
// インターフェース型のフィールドを持つオブジェクトは、具象型を事前に
// gob.Register しておく必要がある。
//
// 使用例:
//
//	ct := preprocessing.BuildPreprocessor(numeric, categorical, opts)
//	// ... ct.Fit(train) ...
//	err := model.SaveModel(ct, "artifacts/data_transformation/preprocessor_obj.gob")
func SaveModel(obj interface{}, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return errors.NewPersistenceError("create", filename, err)
	}

	if err := SaveModelToWriter(obj, file); err != nil {
		_ = file.Close()
		return errors.NewPersistenceError("encode", filename, err)
	}
	if err := file.Close(); err != nil {
		return errors.NewPersistenceError("close", filename, err)
	}
	return nil
}

// LoadModel はファイルからオブジェクトを読み込む
//
// 使用例:
//
//	var ct preprocessing.ColumnTransformer
//	err := model.LoadModel(&ct, "preprocessor_obj.gob")
func LoadModel(obj interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.NewPersistenceError("open", filename, err)
	}
	defer file.Close()

	if err := LoadModelFromReader(obj, file); err != nil {
		return errors.NewPersistenceError("decode", filename, err)
	}
	return nil
}

// SaveModelToWriter はオブジェクトをio.Writerに保存する
func SaveModelToWriter(obj interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(obj); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからオブジェクトを読み込む（objはポインタ）
func LoadModelFromReader(obj interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(obj); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

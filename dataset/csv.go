// Package dataset reads and writes the CSV files exchanged between pipeline
// stages: raw and split tables through gota, transformed matrices as plain
// numeric rows.
package dataset

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/elecbill/pkg/errors"
)

// ReadCSV loads a CSV file with a header row. Every column is read as text,
// without type inference; cells equal to one of missingValues become NA.
// A nil missingValues keeps gota's defaults.
func ReadCSV(path string, missingValues []string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, errors.NewPersistenceError("open", path, err)
	}
	defer f.Close()

	opts := []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	}
	if missingValues != nil {
		opts = append(opts, dataframe.NaNValues(missingValues))
	}

	df := dataframe.ReadCSV(f, opts...)
	if df.Err != nil {
		return dataframe.DataFrame{}, errors.NewDataFormatError("ReadCSV", "", path+": "+df.Err.Error())
	}
	return df, nil
}

// WriteCSV writes df with a header row, overwriting path. NA cells are written as NaN.
func WriteCSV(df dataframe.DataFrame, path string) error {
	if df.Err != nil {
		return errors.NewPersistenceError("write", path, df.Err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.NewPersistenceError("create", path, err)
	}
	if err := df.WriteCSV(f); err != nil {
		_ = f.Close()
		return errors.NewPersistenceError("write", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.NewPersistenceError("close", path, err)
	}
	return nil
}

// SplitTarget separates the target column from the feature columns. Feature
// column order is preserved.
func SplitTarget(df dataframe.DataFrame, target string) (dataframe.DataFrame, series.Series, error) {
	if !HasColumn(df, target) {
		return dataframe.DataFrame{}, series.Series{}, errors.NewDataFormatError("SplitTarget", target, "target column not found")
	}
	features := df.Drop(target)
	if features.Err != nil {
		return dataframe.DataFrame{}, series.Series{}, errors.Wrap(features.Err, "SplitTarget")
	}
	return features, df.Col(target), nil
}

// HasColumn reports whether df has a column called name.
func HasColumn(df dataframe.DataFrame, name string) bool {
	for _, n := range df.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// WriteMatrixCSV writes m without a header, one row per line, using the
// shortest representation that round-trips each float64.
func WriteMatrixCSV(m mat.Matrix, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.NewPersistenceError("create", path, err)
	}

	w := csv.NewWriter(f)
	r, c := m.Dims()
	record := make([]string, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			_ = f.Close()
			return errors.NewPersistenceError("write", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return errors.NewPersistenceError("write", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.NewPersistenceError("close", path, err)
	}
	return nil
}

// ReadMatrixCSV reads a headerless numeric CSV written by WriteMatrixCSV.
func ReadMatrixCSV(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewPersistenceError("open", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.NewDataFormatError("ReadMatrixCSV", "", path+": "+err.Error())
	}
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, errors.NewDataFormatError("ReadMatrixCSV", "", path+": no rows")
	}

	out := mat.NewDense(len(records), len(records[0]), nil)
	for i, rec := range records {
		for j, cell := range rec {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.NewDataFormatError("ReadMatrixCSV", strconv.Itoa(j),
					"non-numeric value "+strconv.Quote(cell)+" at row "+strconv.Itoa(i))
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// Package report renders diagnostic plots of the training data.
package report

import (
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/elecbill/pkg/errors"
)

// DefaultBins is the number of histogram bins.
const DefaultBins = 20

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// HistogramFileName returns the PNG file name used for column.
func HistogramFileName(column string) string {
	return unsafeFileChars.ReplaceAllString(column, "_") + "_hist.png"
}

// Histograms writes one PNG histogram per column into dir and returns the
// written paths. Missing and non-numeric cells are skipped; a column with no
// numeric values produces no file.
func Histograms(df dataframe.DataFrame, columns []string, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewPersistenceError("mkdir", dir, err)
	}

	var written []string
	for _, col := range columns {
		s := df.Col(col)
		if s.Err != nil {
			return written, errors.NewDataFormatError("Histograms", col, "column not found in input")
		}
		values := numericValues(s)
		if len(values) == 0 {
			continue
		}

		p := plot.New()
		p.Title.Text = "Distribution of " + col
		p.X.Label.Text = col
		p.Y.Label.Text = "count"

		h, err := plotter.NewHist(values, DefaultBins)
		if err != nil {
			return written, errors.Wrapf(err, "histogram for column %s", col)
		}
		p.Add(h)

		path := filepath.Join(dir, HistogramFileName(col))
		if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
			return written, errors.NewPersistenceError("write", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func numericValues(s series.Series) plotter.Values {
	nan := s.IsNaN()
	var out plotter.Values
	for i, raw := range s.Records() {
		if nan[i] {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

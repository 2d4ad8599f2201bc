// Package modelselection splits tabular data into train and test partitions.
package modelselection

import (
	"math"
	"math/rand/v2"

	"github.com/go-gota/gota/dataframe"

	"github.com/YuminosukeSato/elecbill/pkg/errors"
)

// Split holds the row indices of one train/test partition.
type Split struct {
	TrainIndices []int
	TestIndices  []int
}

// TrainTestSplit はn行を乱数シードで並べ替え、先頭 ceil(testSize*n) 行をテスト、
// 残りを訓練に割り当てる。同じ (n, testSize, seed) なら常に同じ分割になる。
func TrainTestSplit(n int, testSize float64, seed uint64) (Split, error) {
	if !(testSize > 0 && testSize < 1) {
		return Split{}, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	if n < 2 {
		return Split{}, errors.NewValueError("TrainTestSplit",
			"at least 2 samples are required to produce non-empty train and test sets")
	}

	nTest := int(math.Ceil(testSize * float64(n)))
	nTrain := n - nTest
	if nTest < 1 || nTrain < 1 {
		return Split{}, errors.NewValueError("TrainTestSplit",
			"test_size leaves the train or test set empty")
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	r := rand.New(rand.NewPCG(seed, seed))
	r.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})

	return Split{
		TestIndices:  indices[:nTest],
		TrainIndices: indices[nTest:],
	}, nil
}

// SplitFrame applies TrainTestSplit to the rows of df and returns the two
// partitions with the original column order.
func SplitFrame(df dataframe.DataFrame, testSize float64, seed uint64) (train, test dataframe.DataFrame, err error) {
	if df.Err != nil {
		return train, test, errors.Wrap(df.Err, "SplitFrame")
	}
	rows, _ := df.Dims()
	split, err := TrainTestSplit(rows, testSize, seed)
	if err != nil {
		return train, test, err
	}

	train = df.Subset(split.TrainIndices)
	if train.Err != nil {
		return train, test, errors.Wrap(train.Err, "SplitFrame: train subset")
	}
	test = df.Subset(split.TestIndices)
	if test.Err != nil {
		return train, test, errors.Wrap(test.Err, "SplitFrame: test subset")
	}
	return train, test, nil
}

package errors

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name     string
		op       string
		kind     string
		err      error
		wantMsg  string
		hasStack bool
	}{
		{
			name:     "with original error",
			op:       "Fit",
			kind:     "invalid input",
			err:      fmt.Errorf("test error"),
			wantMsg:  "elecbill: Fit: invalid input: test error",
			hasStack: true,
		},
		{
			name:     "without original error",
			op:       "Transform",
			kind:     "not fitted",
			err:      nil,
			wantMsg:  "elecbill: Transform: not fitted",
			hasStack: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			if tt.hasStack {
				formatted := fmt.Sprintf("%+v", err)
				if !strings.Contains(formatted, "errors_test.go") {
					t.Error("Expected stack trace to contain test file name")
				}
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("StandardScaler.Transform", 3, 2, 1)

	want := "elecbill: StandardScaler.Transform: expected 3 columns, got 2"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Error("Error should be castable to *DimensionError")
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("ColumnTransformer", "Transform")

	want := "elecbill: ColumnTransformer.Transform called before Fit on the training split"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestPipelineErrorTaxonomy(t *testing.T) {
	cause := fmt.Errorf("open config.yaml: no such file or directory")

	tests := []struct {
		name     string
		err      error
		wantMsg  string
		castable func(error) bool
	}{
		{
			name:    "configuration error with field",
			err:     NewConfigurationError("config.yaml", "data_transformation.root_dir", "required field is missing", nil),
			wantMsg: "elecbill: configuration error in config.yaml (field 'data_transformation.root_dir'): required field is missing",
			castable: func(err error) bool {
				var target *ConfigurationError
				return As(err, &target)
			},
		},
		{
			name:    "configuration error with cause",
			err:     NewConfigurationError("config.yaml", "", "cannot read file", cause),
			wantMsg: "elecbill: configuration error in config.yaml: cannot read file: open config.yaml: no such file or directory",
			castable: func(err error) bool {
				var target *ConfigurationError
				return As(err, &target) && Is(err, cause)
			},
		},
		{
			name:    "data format error",
			err:     NewDataFormatError("SplitAndPersist", "ElectricityBill", "target column not found"),
			wantMsg: "elecbill: SplitAndPersist: column 'ElectricityBill': target column not found",
			castable: func(err error) bool {
				var target *DataFormatError
				return As(err, &target)
			},
		},
		{
			name:    "persistence error",
			err:     NewPersistenceError("write", "/ro/train.csv", cause),
			wantMsg: "elecbill: write /ro/train.csv: open config.yaml: no such file or directory",
			castable: func(err error) bool {
				var target *PersistenceError
				return As(err, &target) && Is(err, cause)
			},
		},
		{
			name:    "validation gate error with status",
			err:     NewValidationGateError("status.txt", "False", nil),
			wantMsg: `elecbill: data schema is not valid: validation status in status.txt is "False"`,
			castable: func(err error) bool {
				var target *ValidationGateError
				return As(err, &target)
			},
		},
		{
			name:    "validation gate error without status file",
			err:     NewValidationGateError("", "", nil),
			wantMsg: "elecbill: data schema is not valid: no validation status file configured",
			castable: func(err error) bool {
				var target *ValidationGateError
				return As(err, &target)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.True(t, tt.castable(tt.err))
			assert.Contains(t, fmt.Sprintf("%+v", tt.err), "errors_test.go")
		})
	}
}

func TestWarn_RoutesToZerologFunc(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	w := NewUnknownCategoryWarning("Region", []string{"Mars"})
	Warn(w)

	require.Len(t, got, 1)
	assert.Equal(t, "found unknown categories [Mars] in column 'Region' during transform; encoded as all zeros", got[0].Error())
}

func TestWarn_FallsBackToHandler(t *testing.T) {
	var got error
	SetWarningHandler(func(w error) { got = w })
	defer SetWarningHandler(func(w error) {})

	Warn(NewDataConversionWarning("string", "float64", "numeric column"))
	require.NotNil(t, got)
	assert.Contains(t, got.Error(), "string to float64")
}

func TestObserveWarnings(t *testing.T) {
	SetWarningHandler(func(w error) {})
	defer SetWarningHandler(func(w error) {})

	var seen []string
	remove := ObserveWarnings(func(w error) { seen = append(seen, w.Error()) })

	Warn(NewUnknownCategoryWarning("Region", []string{"Mars"}))
	remove()
	Warn(NewUnknownCategoryWarning("Region", []string{"Venus"}))

	require.Len(t, seen, 1)
	assert.Contains(t, seen[0], "Mars")
}

func TestCheckMatrix(t *testing.T) {
	clean := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	assert.NoError(t, CheckMatrix("clean", clean))

	dirty := mat.NewDense(2, 3, []float64{1, 2, 3, 4, math.NaN(), math.Inf(1)})
	err := CheckMatrix("dirty", dirty)
	require.Error(t, err)

	var instErr *NumericalInstabilityError
	require.True(t, As(err, &instErr))
	assert.Equal(t, 1, instErr.Row)
	assert.Equal(t, 1, instErr.Col)
	assert.Len(t, instErr.Values, 2)
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d rows", "SplitAndPersist", 2)

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}

	if !strings.Contains(wrapped.Error(), "in SplitAndPersist: expected 2 rows") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

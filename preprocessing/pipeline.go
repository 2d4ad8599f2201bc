package preprocessing

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/elecbill/core/model"
	"github.com/YuminosukeSato/elecbill/pkg/errors"
)

func init() {
	// Pipeline.Steps holds model.Transformer values; gob needs the concrete types.
	gob.Register(&SimpleImputer{})
	gob.Register(&StandardScaler{})
	gob.Register(&MinMaxScaler{})
}

var (
	_ model.FeatureNamer = (*Pipeline)(nil)
	_ model.FeatureNamer = (*CategoricalPipeline)(nil)
	_ model.FeatureNamer = (*SimpleImputer)(nil)
)

// Step is one named stage of a Pipeline.
type Step struct {
	Name        string
	Transformer model.Transformer
}

// Pipeline chains numeric transformers. Fit fits each step on the output of
// the previous one; Transform applies the fitted steps in order.
type Pipeline struct {
	State *model.StateManager
	Steps []Step
}

// NewPipeline creates an unfitted pipeline from the given steps.
//
//	p := preprocessing.NewPipeline(
//		preprocessing.Step{Name: "imputer", Transformer: preprocessing.NewSimpleImputer(preprocessing.StrategyMedian)},
//		preprocessing.Step{Name: "scaler", Transformer: preprocessing.NewStandardScalerDefault()},
//	)
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{
		State: model.NewStateManager(),
		Steps: steps,
	}
}

// IsFitted reports whether Fit has completed.
func (p *Pipeline) IsFitted() bool { return p.State.IsFitted() }

// Fit fits every step in order.
func (p *Pipeline) Fit(X mat.Matrix) error {
	if err := p.State.RequireUnfitted("Pipeline"); err != nil {
		return err
	}
	if len(p.Steps) == 0 {
		return errors.NewValueError("Pipeline.Fit", "pipeline has no steps")
	}

	current := X
	for i, step := range p.Steps {
		if i == len(p.Steps)-1 {
			if err := step.Transformer.Fit(current); err != nil {
				return errors.Wrapf(err, "pipeline step %q", step.Name)
			}
			break
		}
		out, err := step.Transformer.FitTransform(current)
		if err != nil {
			return errors.Wrapf(err, "pipeline step %q", step.Name)
		}
		current = out
	}

	r, c := X.Dims()
	p.State.MarkFitted(c, r)
	return nil
}

// Transform applies every fitted step in order.
func (p *Pipeline) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.State.RequireFitted("Pipeline", "Transform"); err != nil {
		return nil, err
	}
	current := X
	for _, step := range p.Steps {
		out, err := step.Transformer.Transform(current)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline step %q", step.Name)
		}
		current = out
	}
	return current, nil
}

// FitTransform fits the pipeline and transforms X.
func (p *Pipeline) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// GetFeatureNamesOut returns the names reported by the last step that
// implements model.FeatureNamer. Scalers keep column names as they are.
func (p *Pipeline) GetFeatureNamesOut() ([]string, error) {
	if err := p.State.RequireFitted("Pipeline", "GetFeatureNamesOut"); err != nil {
		return nil, err
	}
	for i := len(p.Steps) - 1; i >= 0; i-- {
		if namer, ok := p.Steps[i].Transformer.(model.FeatureNamer); ok {
			return namer.GetFeatureNamesOut()
		}
	}
	return nil, errors.NewValueError("Pipeline.GetFeatureNamesOut", "no step reports feature names")
}

func (p *Pipeline) String() string {
	s := "Pipeline("
	for i, step := range p.Steps {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%v", step.Name, step.Transformer)
	}
	return s + ")"
}

// CategoricalPipeline imputes categorical columns and one-hot encodes them.
type CategoricalPipeline struct {
	State   *model.StateManager
	Imputer *CategoricalImputer
	Encoder *OneHotEncoder
}

// NewCategoricalPipeline creates an unfitted imputer → encoder chain.
func NewCategoricalPipeline(imputer *CategoricalImputer, encoder *OneHotEncoder) *CategoricalPipeline {
	return &CategoricalPipeline{
		State:   model.NewStateManager(),
		Imputer: imputer,
		Encoder: encoder,
	}
}

// IsFitted reports whether Fit has completed.
func (p *CategoricalPipeline) IsFitted() bool { return p.State.IsFitted() }

// Fit learns fill values and then the vocabulary of the imputed columns.
func (p *CategoricalPipeline) Fit(cols []Column) error {
	if err := p.State.RequireUnfitted("CategoricalPipeline"); err != nil {
		return err
	}
	imputed, err := p.Imputer.FitTransform(cols)
	if err != nil {
		return errors.Wrap(err, `pipeline step "imputer"`)
	}
	if err := p.Encoder.Fit(imputed); err != nil {
		return errors.Wrap(err, `pipeline step "onehot"`)
	}
	p.State.MarkFitted(len(cols), cols[0].Len())
	return nil
}

// Transform imputes and encodes cols with the fitted state.
func (p *CategoricalPipeline) Transform(cols []Column) (*mat.Dense, error) {
	if err := p.State.RequireFitted("CategoricalPipeline", "Transform"); err != nil {
		return nil, err
	}
	imputed, err := p.Imputer.Transform(cols)
	if err != nil {
		return nil, errors.Wrap(err, `pipeline step "imputer"`)
	}
	out, err := p.Encoder.Transform(imputed)
	if err != nil {
		return nil, errors.Wrap(err, `pipeline step "onehot"`)
	}
	return out, nil
}

// GetFeatureNamesOut returns the encoder's output names.
func (p *CategoricalPipeline) GetFeatureNamesOut() ([]string, error) {
	return p.Encoder.GetFeatureNamesOut()
}

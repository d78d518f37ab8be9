package models

// CheckKind identifies a built-in success check applied to task output.
type CheckKind string

const (
	// CheckNonEmpty passes when the output contains any non-whitespace text.
	CheckNonEmpty CheckKind = "non_empty"
	// CheckContains passes when the output contains the criterion argument,
	// case-insensitively.
	CheckContains CheckKind = "contains"
	// CheckMinWords passes when the output has at least the argument's number
	// of words.
	CheckMinWords CheckKind = "min_words"
	// CheckNoErrorMarker passes when the output does not start with an
	// error marker line ("ERROR:").
	CheckNoErrorMarker CheckKind = "no_error_marker"
)

// Valid returns true if the check kind is a known value.
func (k CheckKind) Valid() bool {
	switch k {
	case CheckNonEmpty, CheckContains, CheckMinWords, CheckNoErrorMarker:
		return true
	default:
		return false
	}
}

// Criterion is one success check in a worker's quality declaration.
// The evaluator computes a weighted pass percentage over all criteria;
// a failing blocking criterion forces a RED verdict regardless of the
// aggregate.
type Criterion struct {
	// Name identifies the criterion in feedback messages.
	Name string `json:"name" yaml:"name"`
	// Check selects the built-in check to apply.
	Check CheckKind `json:"check" yaml:"check"`
	// Arg is the check argument, where the check takes one.
	Arg string `json:"arg,omitempty" yaml:"arg,omitempty"`
	// Weight is the relative weight of this criterion. Zero means 1.
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	// Blocking forces a RED verdict when this criterion fails.
	Blocking bool `json:"blocking,omitempty" yaml:"blocking,omitempty"`
}

// EffectiveWeight returns the criterion weight, defaulting to 1.
func (c Criterion) EffectiveWeight() float64 {
	if c.Weight <= 0 {
		return 1
	}
	return c.Weight
}

package models

import "strings"

// Capability declares what one worker type can do and how its output is
// judged. Routing matches goals against these declarations through an
// explicit registry lookup; there is no runtime type inspection.
type Capability struct {
	// Name is the worker type, e.g. "research" or "development".
	Name string `json:"name" yaml:"name"`
	// Description is a short human-readable summary.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Keywords are matched against the goal text during routing.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	// Categories are coarse capability labels matched as whole words.
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	// ParallelSafe indicates tasks of this type may share a wave with
	// other tasks touching the same resources.
	ParallelSafe bool `json:"parallel_safe" yaml:"parallel_safe"`
	// Resources names shared resources this worker touches, used for the
	// same-wave tie-break rule.
	Resources []string `json:"resources,omitempty" yaml:"resources,omitempty"`
	// CostPerTask is the estimated cost of one task in EUR.
	CostPerTask float64 `json:"cost_per_task" yaml:"cost_per_task"`
	// Synthesis marks an aggregator that consumes upstream task outputs
	// and is scheduled after its producers.
	Synthesis bool `json:"synthesis,omitempty" yaml:"synthesis,omitempty"`
	// Criteria are the success checks applied to this worker's output.
	Criteria []Criterion `json:"criteria,omitempty" yaml:"criteria,omitempty"`
}

// Matches returns true if the goal text matches any of the capability's
// keywords or categories. Keywords match as substrings, categories as
// whole words.
func (c Capability) Matches(goal string) bool {
	lower := strings.ToLower(goal)
	for _, kw := range c.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	if len(c.Categories) == 0 {
		return false
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	for _, cat := range c.Categories {
		cat = strings.ToLower(cat)
		for _, w := range words {
			if w == cat {
				return true
			}
		}
	}
	return false
}

// SharesResource returns true if the two capabilities declare a common
// resource.
func (c Capability) SharesResource(other Capability) bool {
	for _, r := range c.Resources {
		for _, o := range other.Resources {
			if r == o {
				return true
			}
		}
	}
	return false
}

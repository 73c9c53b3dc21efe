package datagen

import "fmt"

// FieldStatistics holds per-field featurewise statistics and the global
// label range of one fit pass. Image-like fields carry one value per
// channel, flat fields one value per component.
type FieldStatistics struct {
	N    map[string]int
	Mean map[string][]float64
	Std  map[string][]float64

	MinOutput float64
	MaxOutput float64
}

// NumClasses returns the one-hot width implied by the fitted label range.
func (s *FieldStatistics) NumClasses() int {
	return int(s.MaxOutput) + 1
}

// DegenerateInputError reports a fit pass that saw too few samples for a
// field to finalize the std estimate.
type DegenerateInputError struct {
	Field string
	N     int
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("field %v: %v samples are not enough to estimate std", e.Field, e.N)
}

package datagen

import "github.com/pkg/errors"

// OneHot encodes an integer class label as a vector with a single 1 at
// the label's index.
func OneHot(label, numClasses int) ([]float32, error) {
	if label < 0 || label >= numClasses {
		return nil, errors.Errorf("label %v out of range [0,%v)", label, numClasses)
	}
	var v = make([]float32, numClasses)
	v[label] = 1
	return v, nil
}

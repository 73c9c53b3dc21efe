package datagen

import (
	"github.com/pkg/errors"
)

// ErrZCANotImplemented is returned when whitening-style decorrelation is
// requested. It is reported eagerly instead of being silently skipped.
var ErrZCANotImplemented = errors.New("zca whitening is not implemented for tensor datasets")

// Generator owns an augmentation configuration and the statistics fitted
// on a dataset. It produces randomly transformed, standardized samples
// and batch iterators over tensor datasets.
//
// Fit is not safe for concurrent use; a fitted generator is read-only and
// may be shared by concurrent iterator consumers.
type Generator struct {
	config Config
	stats  *FieldStatistics
}

func NewGenerator(config Config) (*Generator, error) {
	if config.ZCAWhitening {
		return nil, ErrZCANotImplemented
	}
	return &Generator{config: config}, nil
}

// Statistics returns the fitted statistics, or nil before Fit.
func (g *Generator) Statistics() *FieldStatistics {
	return g.stats
}

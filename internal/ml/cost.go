package ml

import "math"

type IModelCost interface {
	Cost(predicted, target float64) float64
	CostPrime(predicted, target float64) float64
}

type MSECost struct{}

func (*MSECost) Cost(predicted, target float64) float64 {
	var x = predicted - target
	return x * x
}

func (*MSECost) CostPrime(predicted, target float64) float64 {
	return 2 * (predicted - target)
}

// CrossEntropy returns the cross-entropy of a probability vector against
// a one-hot target.
func CrossEntropy(probs []float64, target []float32) float64 {
	var cost float64
	for i, p := range probs {
		if target[i] != 0 {
			cost -= float64(target[i]) * math.Log(p+1e-12)
		}
	}
	return cost
}

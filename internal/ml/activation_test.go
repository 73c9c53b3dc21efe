package ml

import (
	"math"
	"testing"
)

func TestSoftmax(t *testing.T) {
	var probs = []float64{1, 2, 3}
	Softmax(probs)
	var sum float64
	for _, p := range probs {
		if p <= 0 || p >= 1 {
			t.Fatalf("probability out of (0,1): %v", probs)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("probabilities sum to %v, want 1", sum)
	}
	if !(probs[0] < probs[1] && probs[1] < probs[2]) {
		t.Errorf("softmax must preserve order: %v", probs)
	}
}

func TestSoftmaxLargeLogits(t *testing.T) {
	var probs = []float64{1000, 1001, 999}
	Softmax(probs)
	for _, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			t.Fatalf("softmax overflowed: %v", probs)
		}
	}
	if probs[1] < probs[0] || probs[1] < probs[2] {
		t.Errorf("largest logit must get the largest probability: %v", probs)
	}
}

func TestCrossEntropy(t *testing.T) {
	var confident = CrossEntropy([]float64{0.99, 0.01}, []float32{1, 0})
	var wrong = CrossEntropy([]float64{0.01, 0.99}, []float32{1, 0})
	if confident >= wrong {
		t.Errorf("confident correct prediction must cost less: %v >= %v", confident, wrong)
	}
	if confident > 0.02 {
		t.Errorf("near-perfect prediction cost = %v, want near 0", confident)
	}
	if zero := CrossEntropy([]float64{0, 1}, []float32{1, 0}); math.IsInf(zero, 0) || math.IsNaN(zero) {
		t.Errorf("zero probability must stay finite: %v", zero)
	}
}

func TestActivations(t *testing.T) {
	var relu ReLuActivation
	if relu.Sigma(-2) != 0 || relu.Sigma(3) != 3 {
		t.Error("relu")
	}
	if relu.SigmaPrime(-2) != 0 || relu.SigmaPrime(3) != 1 {
		t.Error("relu prime")
	}
	var sigmoid SigmoidActivation
	if math.Abs(sigmoid.Sigma(0)-0.5) > 1e-12 {
		t.Error("sigmoid(0) != 0.5")
	}
	if math.Abs(sigmoid.SigmaPrime(0)-0.25) > 1e-12 {
		t.Error("sigmoid'(0) != 0.25")
	}
}

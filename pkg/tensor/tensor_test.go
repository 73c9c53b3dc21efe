package tensor

import (
	"testing"
)

func TestVolume(t *testing.T) {
	var tests = []struct {
		shape []int
		want  int
	}{
		{[]int{}, 1},
		{[]int{5}, 5},
		{[]int{2, 3}, 6},
		{[]int{10, 32, 32, 3}, 30720},
	}
	for _, test := range tests {
		var got = Volume(test.shape)
		if got != test.want {
			t.Errorf("Volume(%v) = %v, want %v", test.shape, got, test.want)
		}
	}
}

func TestIsImage(t *testing.T) {
	var tests = []struct {
		shape []int
		want  bool
	}{
		{[]int{32, 32, 3}, true},
		{[]int{32, 32, 1}, true},
		{[]int{32, 32, 4}, true},
		{[]int{32, 32, 5}, false},
		{[]int{32, 32}, false},
		{[]int{10, 32, 32, 3}, false},
	}
	for _, test := range tests {
		var x = New(test.shape...)
		if got := x.IsImage(); got != test.want {
			t.Errorf("IsImage(%v) = %v, want %v", test.shape, got, test.want)
		}
	}
}

func TestDatapointSharesBacking(t *testing.T) {
	var chunk = New(3, 2, 2, 1)
	for i := range chunk.Data {
		chunk.Data[i] = float32(i)
	}
	var dp = chunk.Datapoint(1)
	if dp.Rank() != 3 || dp.Size() != 4 {
		t.Fatalf("datapoint shape = %v", dp.Shape)
	}
	if dp.Data[0] != 4 {
		t.Errorf("datapoint 1 starts at %v, want 4", dp.Data[0])
	}
	dp.Data[0] = -1
	if chunk.Data[4] != -1 {
		t.Error("datapoint must share the chunk's backing array")
	}
	var clone = chunk.Datapoint(2).Clone()
	clone.Data[0] = -2
	if chunk.Data[8] == -2 {
		t.Error("clone must not share the chunk's backing array")
	}
}

func TestAtSet(t *testing.T) {
	var x = New(2, 3, 4)
	x.Set(7, 1, 2, 3)
	if got := x.At(1, 2, 3); got != 7 {
		t.Errorf("At(1,2,3) = %v, want 7", got)
	}
	if got := x.Data[1*12+2*4+3]; got != 7 {
		t.Errorf("row-major offset holds %v, want 7", got)
	}
}

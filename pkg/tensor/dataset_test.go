package tensor

import (
	"math/rand"
	"testing"
)

// writeTestDataset builds a small dataset with an image field and a label
// field, 25 datapoints in chunks of 10, so the last chunk is short.
func writeTestDataset(t *testing.T, numDatapoints, perFile int) (string, []float32) {
	t.Helper()
	var dir = t.TempDir()
	var fields = []FieldSchema{
		{Name: "im", Shape: []int{4, 4, 1}},
		{Name: "label", Shape: []int{1}},
	}
	w, err := NewWriter(dir, fields, perFile)
	if err != nil {
		t.Fatal(err)
	}
	var rnd = rand.New(rand.NewSource(1))
	var labels = make([]float32, numDatapoints)
	for i := 0; i < numDatapoints; i++ {
		var im = make([]float32, 16)
		for j := range im {
			im[j] = float32(rnd.NormFloat64())
		}
		labels[i] = float32(i % 3)
		err = w.Add(map[string][]float32{
			"im":    im,
			"label": {labels[i]},
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if err = w.Close(); err != nil {
		t.Fatal(err)
	}
	return dir, labels
}

func TestWriterRoundTrip(t *testing.T) {
	dir, labels := writeTestDataset(t, 25, 10)
	ds, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if ds.NumDatapoints() != 25 {
		t.Errorf("NumDatapoints = %v, want 25", ds.NumDatapoints())
	}
	if ds.NumTensors() != 3 {
		t.Errorf("NumTensors = %v, want 3", ds.NumTensors())
	}
	if !ds.HasField("im") || !ds.HasField("label") || ds.HasField("pose") {
		t.Error("wrong field set")
	}
	for i := 0; i < 25; i++ {
		dp, err := ds.Datapoint(i, []string{"label"})
		if err != nil {
			t.Fatal(err)
		}
		if got := dp["label"].Data[0]; got != labels[i] {
			t.Errorf("label %v = %v, want %v", i, got, labels[i])
		}
	}
}

func TestTailChunk(t *testing.T) {
	dir, _ := writeTestDataset(t, 25, 10)
	ds, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	tail, err := ds.Tensor("im", 2)
	if err != nil {
		t.Fatal(err)
	}
	if tail.NumDatapoints() != 5 {
		t.Errorf("tail chunk has %v datapoints, want 5", tail.NumDatapoints())
	}
	var indices = ds.DatapointIndicesForTensor(2)
	if len(indices) != 5 || indices[0] != 20 || indices[4] != 24 {
		t.Errorf("tail chunk indices = %v", indices)
	}
	if got := ds.DatapointIndicesForTensor(0); len(got) != 10 || got[0] != 0 {
		t.Errorf("first chunk indices = %v", got)
	}
}

func TestChunkReadErrors(t *testing.T) {
	dir, _ := writeTestDataset(t, 25, 10)
	ds, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = ds.Tensor("pose", 0); err == nil {
		t.Error("expected error for unknown field")
	}
	if _, err = ds.Tensor("im", 3); err == nil {
		t.Error("expected error for chunk index out of range")
	}
	if _, err = ds.Datapoint(25, []string{"im"}); err == nil {
		t.Error("expected error for datapoint index out of range")
	}
}

func TestOpenMissingDir(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Error("expected error for missing manifest")
	}
}

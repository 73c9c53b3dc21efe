package tensor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

const (
	manifestName = "manifest.json"
	tensorDir    = "tensors"
	chunkExt     = ".tsr.xz"

	chunkCacheSize = 16
)

// FieldSchema describes one named field of a dataset.
// Shape is the per-datapoint shape.
type FieldSchema struct {
	Name  string `json:"name"`
	Shape []int  `json:"shape"`
}

type manifest struct {
	Fields            []FieldSchema `json:"fields"`
	DatapointsPerFile int           `json:"datapoints_per_file"`
	NumDatapoints     int           `json:"num_datapoints"`
}

// Dataset is a read-only chunked tensor dataset on disk. Every field is
// stored as a sequence of chunk files, each holding the same contiguous
// range of datapoints. Chunk reads are safe for concurrent use.
type Dataset struct {
	dir      string
	manifest manifest
	fields   map[string]FieldSchema

	mu    sync.Mutex
	cache map[string]Tensor
}

func Open(dir string) (*Dataset, error) {
	raw, err := os.ReadFile(filepath.Join(dir, manifestName))
	if err != nil {
		return nil, errors.Wrapf(err, "open dataset %v", dir)
	}
	var m manifest
	if err = json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrapf(err, "parse dataset manifest %v", dir)
	}
	if m.DatapointsPerFile <= 0 {
		return nil, errors.Errorf("dataset %v has invalid datapoints_per_file %v", dir, m.DatapointsPerFile)
	}
	var fields = make(map[string]FieldSchema)
	for _, f := range m.Fields {
		fields[f.Name] = f
	}
	return &Dataset{
		dir:      dir,
		manifest: m,
		fields:   fields,
		cache:    make(map[string]Tensor),
	}, nil
}

func (d *Dataset) NumDatapoints() int {
	return d.manifest.NumDatapoints
}

func (d *Dataset) DatapointsPerFile() int {
	return d.manifest.DatapointsPerFile
}

// NumTensors returns the chunk count per field.
func (d *Dataset) NumTensors() int {
	var perFile = d.manifest.DatapointsPerFile
	return (d.manifest.NumDatapoints + perFile - 1) / perFile
}

func (d *Dataset) FieldNames() []string {
	var names = make([]string, 0, len(d.manifest.Fields))
	for _, f := range d.manifest.Fields {
		names = append(names, f.Name)
	}
	return names
}

func (d *Dataset) HasField(name string) bool {
	_, ok := d.fields[name]
	return ok
}

// DatapointShape returns the per-datapoint shape of a field.
func (d *Dataset) DatapointShape(field string) ([]int, error) {
	f, ok := d.fields[field]
	if !ok {
		return nil, errors.Errorf("field %v not in dataset", field)
	}
	return f.Shape, nil
}

// Tensor loads one chunk of a field.
func (d *Dataset) Tensor(field string, chunkIndex int) (Tensor, error) {
	if !d.HasField(field) {
		return Tensor{}, errors.Errorf("field %v not in dataset", field)
	}
	if chunkIndex < 0 || chunkIndex >= d.NumTensors() {
		return Tensor{}, errors.Errorf("chunk index %v out of range [0,%v)", chunkIndex, d.NumTensors())
	}
	var key = fmt.Sprintf("%v:%v", field, chunkIndex)
	d.mu.Lock()
	t, ok := d.cache[key]
	d.mu.Unlock()
	if ok {
		return t, nil
	}
	t, err := readChunk(d.chunkPath(field, chunkIndex))
	if err != nil {
		return Tensor{}, err
	}
	d.mu.Lock()
	if len(d.cache) >= chunkCacheSize {
		for k := range d.cache {
			delete(d.cache, k)
			break
		}
	}
	d.cache[key] = t
	d.mu.Unlock()
	return t, nil
}

// DatapointIndicesForTensor returns the global datapoint indices covered
// by a chunk.
func (d *Dataset) DatapointIndicesForTensor(chunkIndex int) []int {
	var start = chunkIndex * d.manifest.DatapointsPerFile
	var stop = start + d.manifest.DatapointsPerFile
	if stop > d.manifest.NumDatapoints {
		stop = d.manifest.NumDatapoints
	}
	if start >= stop {
		return nil
	}
	var indices = make([]int, stop-start)
	for i := range indices {
		indices[i] = start + i
	}
	return indices
}

// Datapoint loads one datapoint of the requested fields.
// The returned tensors are freshly allocated copies.
func (d *Dataset) Datapoint(index int, fieldNames []string) (map[string]Tensor, error) {
	if index < 0 || index >= d.manifest.NumDatapoints {
		return nil, errors.Errorf("datapoint index %v out of range [0,%v)", index, d.manifest.NumDatapoints)
	}
	var chunkIndex = index / d.manifest.DatapointsPerFile
	var offset = index % d.manifest.DatapointsPerFile
	var result = make(map[string]Tensor, len(fieldNames))
	for _, name := range fieldNames {
		chunk, err := d.Tensor(name, chunkIndex)
		if err != nil {
			return nil, err
		}
		result[name] = chunk.Datapoint(offset).Clone()
	}
	return result, nil
}

func (d *Dataset) chunkPath(field string, chunkIndex int) string {
	return filepath.Join(d.dir, tensorDir, fmt.Sprintf("%s_%05d%s", field, chunkIndex, chunkExt))
}

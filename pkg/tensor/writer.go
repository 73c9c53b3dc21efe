package tensor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Writer builds a chunked tensor dataset on disk, one datapoint at a time.
// Chunks are flushed every DatapointsPerFile datapoints; Close flushes the
// final partial chunk and writes the manifest.
type Writer struct {
	dir      string
	fields   []FieldSchema
	perFile  int
	buffers  map[string][]float32
	buffered int
	total    int
	chunk    int
}

func NewWriter(dir string, fields []FieldSchema, datapointsPerFile int) (*Writer, error) {
	if datapointsPerFile <= 0 {
		return nil, errors.Errorf("datapoints per file must be positive, got %v", datapointsPerFile)
	}
	if len(fields) == 0 {
		return nil, errors.New("dataset needs at least one field")
	}
	if err := os.MkdirAll(filepath.Join(dir, tensorDir), 0o755); err != nil {
		return nil, errors.Wrap(err, "create dataset dir")
	}
	var buffers = make(map[string][]float32)
	for _, f := range fields {
		buffers[f.Name] = make([]float32, 0, datapointsPerFile*Volume(f.Shape))
	}
	return &Writer{
		dir:     dir,
		fields:  fields,
		perFile: datapointsPerFile,
		buffers: buffers,
	}, nil
}

// Add appends one datapoint. Every declared field must be present with
// exactly the declared per-datapoint volume.
func (w *Writer) Add(datapoint map[string][]float32) error {
	for _, f := range w.fields {
		data, ok := datapoint[f.Name]
		if !ok {
			return errors.Errorf("datapoint is missing field %v", f.Name)
		}
		if len(data) != Volume(f.Shape) {
			return errors.Errorf("field %v has %v values, want %v", f.Name, len(data), Volume(f.Shape))
		}
	}
	for _, f := range w.fields {
		w.buffers[f.Name] = append(w.buffers[f.Name], datapoint[f.Name]...)
	}
	w.buffered++
	w.total++
	if w.buffered == w.perFile {
		return w.flush()
	}
	return nil
}

func (w *Writer) flush() error {
	if w.buffered == 0 {
		return nil
	}
	for _, f := range w.fields {
		var shape = append([]int{w.buffered}, f.Shape...)
		var path = filepath.Join(w.dir, tensorDir, fmt.Sprintf("%s_%05d%s", f.Name, w.chunk, chunkExt))
		var t = Tensor{Shape: shape, Data: w.buffers[f.Name]}
		if err := writeChunk(path, t); err != nil {
			return errors.Wrapf(err, "flush chunk %v of field %v", w.chunk, f.Name)
		}
		w.buffers[f.Name] = w.buffers[f.Name][:0]
	}
	w.buffered = 0
	w.chunk++
	return nil
}

func (w *Writer) Close() error {
	if err := w.flush(); err != nil {
		return err
	}
	var m = manifest{
		Fields:            w.fields,
		DatapointsPerFile: w.perFile,
		NumDatapoints:     w.total,
	}
	raw, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(w.dir, manifestName), raw, 0o644)
}

package tensor

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// Binary specification for a chunk file:
// - All the data is stored in little-endian layout inside an xz stream
// - The magic number/version consists of 4 bytes:
//   - 84 (which is the ASCII code for T), uint8
//   - 83 (which is the ASCII code for S), uint8
//   - 82 (which is the ASCII code for R), uint8
//   - 1 The current version number, uint8
//
// - 4 bytes (uint32) for the rank
// - 4 bytes (uint32) per dimension
// - The payload as raw float32 values

var chunkMagic = [4]byte{84, 83, 82, 1}

func writeChunk(path string, t Tensor) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create chunk file")
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	zw, err := xz.NewWriter(bw)
	if err != nil {
		return errors.Wrap(err, "open xz stream")
	}

	_, err = zw.Write(chunkMagic[:])
	if err != nil {
		return err
	}
	var header = make([]uint32, 0, 1+len(t.Shape))
	header = append(header, uint32(len(t.Shape)))
	for _, d := range t.Shape {
		header = append(header, uint32(d))
	}
	err = binary.Write(zw, binary.LittleEndian, header)
	if err != nil {
		return err
	}
	err = binary.Write(zw, binary.LittleEndian, t.Data)
	if err != nil {
		return err
	}
	if err = zw.Close(); err != nil {
		return errors.Wrap(err, "close xz stream")
	}
	return bw.Flush()
}

func readChunk(path string) (Tensor, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tensor{}, errors.Wrap(err, "open chunk file")
	}
	defer f.Close()

	zr, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		return Tensor{}, errors.Wrap(err, "open xz stream")
	}

	var magic [4]byte
	if _, err = io.ReadFull(zr, magic[:]); err != nil {
		return Tensor{}, errors.Wrapf(err, "read chunk header %v", path)
	}
	if magic != chunkMagic {
		return Tensor{}, errors.Errorf("bad chunk magic in %v", path)
	}
	var rank uint32
	if err = binary.Read(zr, binary.LittleEndian, &rank); err != nil {
		return Tensor{}, err
	}
	var dims = make([]uint32, rank)
	if err = binary.Read(zr, binary.LittleEndian, dims); err != nil {
		return Tensor{}, err
	}
	var shape = make([]int, rank)
	for i, d := range dims {
		shape[i] = int(d)
	}
	var t = New(shape...)
	if err = binary.Read(zr, binary.LittleEndian, t.Data); err != nil {
		return Tensor{}, errors.Wrapf(err, "read chunk payload %v", path)
	}
	return t, nil
}

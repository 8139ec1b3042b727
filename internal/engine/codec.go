package engine

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/pkg/errors"

	"mazeq/internal/atomicfile"
)

// Q-table file: u64 dimX | u64 dimY | u64 numActions | f32[dimX*dimY*numActions],
// little endian, values in table order.

const qtableHeaderSize = 3 * 8

var ErrSizeMismatch = errors.New("q-table file size does not match its header")

func EncodeQTable(w io.Writer, q *QTable) error {
	header := [3]uint64{uint64(q.cols), uint64(q.rows), uint64(q.actions)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return errors.Wrap(err, "write q-table header")
	}
	if err := binary.Write(w, binary.LittleEndian, q.vals); err != nil {
		return errors.Wrap(err, "write q-table values")
	}
	return nil
}

// DecodeQTable reads a table. size is the total byte length of the input
// when known, or negative; a known size must match the header exactly.
func DecodeQTable(r io.Reader, size int64) (*QTable, error) {
	var header [3]uint64
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "corrupt q-table header")
	}
	cols, rows, actions := header[0], header[1], header[2]
	if cols == 0 || rows == 0 || actions == 0 {
		return nil, errors.Wrapf(ErrInvalidDims, "header %dx%dx%d", cols, rows, actions)
	}
	const maxEntries = 1 << 30
	if cols > maxEntries || rows > maxEntries || actions > maxEntries ||
		cols*rows > maxEntries || cols*rows*actions > maxEntries {
		return nil, errors.Errorf("q-table %dx%dx%d is too large", cols, rows, actions)
	}
	n := cols * rows * actions
	if size >= 0 {
		if want := int64(qtableHeaderSize + 4*n); size != want {
			return nil, errors.Wrapf(ErrSizeMismatch, "got %d bytes, want %d", size, want)
		}
	}
	q, err := NewQTable(int(cols), int(rows), int(actions))
	if err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, q.vals); err != nil {
		return nil, errors.Wrapf(err, "read q-table values (%d expected)", n)
	}
	return q, nil
}

// SaveQTable writes q to path. A failed save never leaves a truncated table
// behind.
func SaveQTable(path string, q *QTable) error {
	err := atomicfile.Write(path, func(w io.Writer) error { return EncodeQTable(w, q) })
	return errors.Wrap(err, "save q-table")
}

func LoadQTable(path string) (*QTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "load q-table")
	}
	defer f.Close()
	size := int64(-1)
	if info, err := f.Stat(); err == nil && info.Mode().IsRegular() {
		size = info.Size()
	}
	q, err := DecodeQTable(bufio.NewReader(f), size)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return q, nil
}

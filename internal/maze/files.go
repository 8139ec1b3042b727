package maze

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"mazeq/internal/atomicfile"
)

// Raw format: u64 rows | u64 cols | u8[rows*cols], little endian.

const maxCells = 1 << 28

var (
	ErrNotNPY         = errors.New("not a numpy array file")
	ErrUnsupportedNPY = errors.New("unsupported numpy array layout")
)

// ReadRaw decodes a maze in the raw format.
func ReadRaw(r io.Reader) (*Maze, error) {
	var header [2]uint64
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errors.Wrap(err, "read raw maze header")
	}
	rows, cols := header[0], header[1]
	if rows == 0 || cols == 0 {
		return nil, ErrEmptyMaze
	}
	if rows > maxCells || cols > maxCells || rows*cols > maxCells {
		return nil, errors.Errorf("raw maze %dx%d is too large", rows, cols)
	}
	buf := make([]byte, rows*cols)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrapf(err, "read raw maze cells (%d expected)", len(buf))
	}
	cells := make([]CellKind, len(buf))
	for i, b := range buf {
		cells[i] = CellKind(b)
	}
	return FromCells(int(rows), int(cols), cells)
}

// WriteRaw encodes m in the raw format.
func WriteRaw(w io.Writer, m *Maze) error {
	header := [2]uint64{uint64(m.rows), uint64(m.cols)}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return errors.Wrap(err, "write raw maze header")
	}
	buf := make([]byte, len(m.cells))
	for i, k := range m.cells {
		buf[i] = byte(k)
	}
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "write raw maze cells")
	}
	return nil
}

func LoadRaw(path string) (*Maze, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open raw maze")
	}
	defer f.Close()
	m, err := ReadRaw(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return m, nil
}

// SaveRaw writes m to path. The file only appears once fully written.
func SaveRaw(path string, m *Maze) error {
	return atomicfile.Write(path, func(w io.Writer) error { return WriteRaw(w, m) })
}

// NPY import: magic, major/minor version, u16 header length, a python dict
// literal header, payload at the next 16 byte boundary.

const npyMagic = "\x93NUMPY"

var (
	npyShapeRe   = regexp.MustCompile(`'shape'\s*:\s*\(\s*(\d+)\s*,\s*(\d+)\s*,?\s*\)`)
	npyDescrRe   = regexp.MustCompile(`'descr'\s*:\s*'([^']*)'`)
	npyFortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
)

// ReadNPY decodes a 2-D numpy array of integers into a maze. Each element is
// truncated to its low byte.
func ReadNPY(r io.Reader) (*Maze, error) {
	var pre [10]byte
	if _, err := io.ReadFull(r, pre[:]); err != nil {
		return nil, errors.Wrap(err, "read npy preamble")
	}
	if string(pre[:6]) != npyMagic {
		return nil, ErrNotNPY
	}
	major := pre[6]
	headerLen := int(binary.LittleEndian.Uint16(pre[8:10]))
	prefix := len(pre)
	if major >= 2 {
		// v2+ widens the header length to u32; pre[8:10] holds its low half.
		var hi [2]byte
		if _, err := io.ReadFull(r, hi[:]); err != nil {
			return nil, errors.Wrap(err, "read npy header length")
		}
		headerLen = int(binary.LittleEndian.Uint32([]byte{pre[8], pre[9], hi[0], hi[1]}))
		prefix += 2
	}
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, errors.Wrap(err, "read npy header")
	}
	rows, cols, width, signed, err := parseNPYHeader(string(header))
	if err != nil {
		return nil, err
	}
	total := prefix + headerLen
	padding := (16 - total%16) % 16
	if _, err := io.CopyN(io.Discard, r, int64(padding)); err != nil {
		return nil, errors.Wrap(err, "skip npy padding")
	}
	if rows > maxCells || cols > maxCells || rows*cols > maxCells {
		return nil, errors.Errorf("npy maze %dx%d is too large", rows, cols)
	}
	payload := make([]byte, rows*cols*width)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrapf(err, "read npy payload (%d bytes expected)", len(payload))
	}
	cells := make([]CellKind, rows*cols)
	for i := range cells {
		elem := payload[i*width : (i+1)*width]
		var v int64
		switch width {
		case 1:
			v = int64(elem[0])
			if signed {
				v = int64(int8(elem[0]))
			}
		case 4:
			v = int64(int32(binary.LittleEndian.Uint32(elem)))
		case 8:
			v = int64(binary.LittleEndian.Uint64(elem))
		}
		cells[i] = CellKind(uint8(v))
	}
	return FromCells(rows, cols, cells)
}

func parseNPYHeader(header string) (rows, cols, width int, signed bool, err error) {
	descr := npyDescrRe.FindStringSubmatch(header)
	if descr == nil {
		return 0, 0, 0, false, errors.Wrap(ErrUnsupportedNPY, "missing descr")
	}
	switch descr[1] {
	case "<i4":
		width, signed = 4, true
	case "<i8":
		width, signed = 8, true
	case "|u1":
		width = 1
	case "|i1":
		width, signed = 1, true
	default:
		return 0, 0, 0, false, errors.Wrapf(ErrUnsupportedNPY, "descr %q", descr[1])
	}
	if f := npyFortranRe.FindStringSubmatch(header); f != nil && f[1] == "True" {
		return 0, 0, 0, false, errors.Wrap(ErrUnsupportedNPY, "fortran order")
	}
	shape := npyShapeRe.FindStringSubmatch(header)
	if shape == nil {
		return 0, 0, 0, false, errors.Wrapf(ErrUnsupportedNPY, "shape in header %q", strings.TrimSpace(header))
	}
	rows, _ = strconv.Atoi(shape[1])
	cols, _ = strconv.Atoi(shape[2])
	if rows == 0 || cols == 0 {
		return 0, 0, 0, false, ErrEmptyMaze
	}
	return rows, cols, width, signed, nil
}

// WriteNPY encodes m as a version 1.0 '<i4' numpy array.
func WriteNPY(w io.Writer, m *Maze) error {
	dict := "{'descr': '<i4', 'fortran_order': False, 'shape': (" +
		strconv.Itoa(m.rows) + ", " + strconv.Itoa(m.cols) + "), }"
	total := len(npyMagic) + 4 + len(dict) + 1
	padding := (16 - total%16) % 16
	header := dict + strings.Repeat(" ", padding) + "\n"

	var buf bytes.Buffer
	buf.WriteString(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	for _, k := range m.cells {
		_ = binary.Write(&buf, binary.LittleEndian, int32(k))
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "write npy maze")
	}
	return nil
}

func LoadNPY(path string) (*Maze, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open npy maze")
	}
	defer f.Close()
	m, err := ReadNPY(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return m, nil
}

// Load reads path as a numpy array and falls back to the raw format. The
// error on failure wraps both causes.
func Load(path string) (*Maze, error) {
	m, npyErr := LoadNPY(path)
	if npyErr == nil {
		return m, nil
	}
	m, rawErr := LoadRaw(path)
	if rawErr == nil {
		return m, nil
	}
	return nil, errors.Wrapf(fmt.Errorf("npy: %w; raw: %w", npyErr, rawErr), "invalid maze file %s", path)
}

// Save writes m as npy when path ends in .npy and in the raw format otherwise.
func Save(path string, m *Maze) error {
	if strings.EqualFold(filepath.Ext(path), ".npy") {
		return atomicfile.Write(path, func(w io.Writer) error { return WriteNPY(w, m) })
	}
	return SaveRaw(path, m)
}

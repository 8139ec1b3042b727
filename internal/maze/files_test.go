package maze

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *Maze {
	t.Helper()
	m, err := Parse(
		"#####",
		"#S..#",
		"#.#G#",
	)
	require.NoError(t, err)
	return m
}

func TestRawRoundTrip(t *testing.T) {
	m := sample(t)
	var buf bytes.Buffer
	require.NoError(t, WriteRaw(&buf, m))
	raw := buf.Bytes()
	require.Len(t, raw, 16+15)
	assert.Equal(t, uint64(3), binary.LittleEndian.Uint64(raw[0:8]))
	assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(raw[8:16]))
	assert.Equal(t, byte(Start), raw[16+6])

	got, err := ReadRaw(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, m.Cells(), got.Cells())

	_, err = ReadRaw(bytes.NewReader(raw[:len(raw)-1]))
	assert.Error(t, err, "short payload")

	zero := make([]byte, 16)
	_, err = ReadRaw(bytes.NewReader(zero))
	assert.ErrorIs(t, err, ErrEmptyMaze)
}

func TestNPYRoundTrip(t *testing.T) {
	m := sample(t)
	var buf bytes.Buffer
	require.NoError(t, WriteNPY(&buf, m))
	raw := buf.Bytes()
	assert.True(t, bytes.HasPrefix(raw, []byte(npyMagic)))
	headerLen := int(binary.LittleEndian.Uint16(raw[8:10]))
	assert.Zero(t, (10+headerLen)%16, "payload is 16 byte aligned")
	assert.Len(t, raw, 10+headerLen+4*15)

	got, err := ReadNPY(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, m.Rows(), got.Rows())
	assert.Equal(t, m.Cols(), got.Cols())
	assert.Equal(t, m.Cells(), got.Cells())
}

// npyBytes builds an npy v1 file around an arbitrary header dict.
func npyBytes(dict string, payload []byte) []byte {
	total := 10 + len(dict) + 1
	header := dict + strings.Repeat(" ", (16-total%16)%16) + "\n"
	var buf bytes.Buffer
	buf.WriteString(npyMagic)
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(payload)
	return buf.Bytes()
}

func TestReadNPYDescr(t *testing.T) {
	t.Run("u1", func(t *testing.T) {
		raw := npyBytes("{'descr': '|u1', 'fortran_order': False, 'shape': (1, 3), }", []byte{9, 0, 2})
		m, err := ReadNPY(bytes.NewReader(raw))
		require.NoError(t, err)
		assert.Equal(t, []CellKind{Start, Open, Goal}, m.Cells())
	})
	t.Run("i8 truncates to low byte", func(t *testing.T) {
		payload := make([]byte, 16)
		binary.LittleEndian.PutUint64(payload[0:], 9)
		binary.LittleEndian.PutUint64(payload[8:], 0x101)
		raw := npyBytes("{'descr': '<i8', 'fortran_order': False, 'shape': (2, 1), }", payload)
		m, err := ReadNPY(bytes.NewReader(raw))
		require.NoError(t, err)
		assert.Equal(t, []CellKind{Start, Wall}, m.Cells())
	})
	t.Run("float rejected", func(t *testing.T) {
		raw := npyBytes("{'descr': '<f8', 'fortran_order': False, 'shape': (1, 1), }", make([]byte, 8))
		_, err := ReadNPY(bytes.NewReader(raw))
		assert.ErrorIs(t, err, ErrUnsupportedNPY)
	})
	t.Run("fortran rejected", func(t *testing.T) {
		raw := npyBytes("{'descr': '<i4', 'fortran_order': True, 'shape': (1, 1), }", make([]byte, 4))
		_, err := ReadNPY(bytes.NewReader(raw))
		assert.ErrorIs(t, err, ErrUnsupportedNPY)
	})
	t.Run("one dimensional rejected", func(t *testing.T) {
		raw := npyBytes("{'descr': '<i4', 'fortran_order': False, 'shape': (4,), }", make([]byte, 16))
		_, err := ReadNPY(bytes.NewReader(raw))
		assert.ErrorIs(t, err, ErrUnsupportedNPY)
	})
	t.Run("not npy", func(t *testing.T) {
		_, err := ReadNPY(bytes.NewReader(make([]byte, 32)))
		assert.ErrorIs(t, err, ErrNotNPY)
	})
}

func TestLoadFallsBackToRaw(t *testing.T) {
	dir := t.TempDir()
	m := sample(t)

	rawPath := filepath.Join(dir, "level.maze")
	require.NoError(t, Save(rawPath, m))
	got, err := Load(rawPath)
	require.NoError(t, err)
	assert.Equal(t, m.Cells(), got.Cells())

	npyPath := filepath.Join(dir, "level.npy")
	require.NoError(t, Save(npyPath, m))
	got, err = Load(npyPath)
	require.NoError(t, err)
	assert.Equal(t, m.Cells(), got.Cells())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files left behind")

	junk := filepath.Join(dir, "junk.maze")
	require.NoError(t, os.WriteFile(junk, []byte("hello"), 0o644))
	_, err = Load(junk)
	assert.Error(t, err)
	_, err = Load(filepath.Join(dir, "missing.maze"))
	assert.Error(t, err)
}

func TestLoadErrorWrapsBothCauses(t *testing.T) {
	empty := filepath.Join(t.TempDir(), "empty.maze")
	require.NoError(t, os.WriteFile(empty, make([]byte, 16), 0o644))

	_, err := Load(empty)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotNPY)
	assert.ErrorIs(t, err, ErrEmptyMaze)
	assert.Contains(t, err.Error(), "invalid maze file")
}

package fio

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileIO_WriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.data")
	fio, err := NewFileIOManager(path)
	assert.Nil(t, err)
	assert.NotNil(t, fio)

	n, err := fio.Write([]byte(""))
	assert.Equal(t, 0, n)
	assert.Nil(t, err)
	n, err = fio.Write([]byte("123"))
	assert.Equal(t, 3, n)
	assert.Nil(t, err)
	n, err = fio.Write([]byte("456"))
	assert.Equal(t, 3, n)
	assert.Nil(t, err)
	assert.Nil(t, fio.Sync())

	b := make([]byte, 3)
	n, err = fio.Read(b, 2)
	assert.Equal(t, "345", string(b))
	assert.Equal(t, 3, n)
	assert.Nil(t, err)

	size, err := fio.Size()
	assert.Nil(t, err)
	assert.Equal(t, int64(6), size)
	assert.Nil(t, fio.Close())
}

func TestMMap_Read(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.data")
	assert.Nil(t, os.WriteFile(path, []byte("hello mmap"), DataFilePerm))

	m, err := NewIOManager(path, MemoryMap)
	assert.Nil(t, err)
	defer m.Close()

	size, err := m.Size()
	assert.Nil(t, err)
	assert.Equal(t, int64(10), size)

	all, err := io.ReadAll(io.NewSectionReader(ReaderAt{m}, 0, size))
	assert.Nil(t, err)
	assert.Equal(t, "hello mmap", string(all))
}

func TestMMap_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.data")
	m, err := NewMMapIOManager(path)
	assert.Nil(t, err)
	size, err := m.Size()
	assert.Nil(t, err)
	assert.Equal(t, int64(0), size)
	assert.Nil(t, m.Close())
}

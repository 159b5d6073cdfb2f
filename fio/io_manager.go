package fio

const DataFilePerm = 0644

type FileIOType = byte

const (
	// StandardFIO 标准文件 IO
	StandardFIO FileIOType = iota
	// MemoryMap 内存文件映射，只读
	MemoryMap
)

// IOManager is an interface that represents the file I/O operations of snapshot files.
type IOManager interface {
	Read([]byte, int64) (int, error)
	Write([]byte) (int, error)
	// Sync can persist data to the disk
	Sync() error
	Close() error
	Size() (int64, error)
}

// NewIOManager opens filename with the given io type
func NewIOManager(filename string, ioType FileIOType) (IOManager, error) {
	switch ioType {
	case StandardFIO:
		return NewFileIOManager(filename)
	case MemoryMap:
		return NewMMapIOManager(filename)
	default:
		panic("unsupported io type")
	}
}

// ReaderAt adapts an IOManager to io.ReaderAt
type ReaderAt struct {
	IOManager
}

func (r ReaderAt) ReadAt(b []byte, off int64) (int, error) {
	return r.Read(b, off)
}

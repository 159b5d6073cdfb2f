package persist

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/datastruct/sortedset"
	"github.com/Tuanzi-bug/TuanRedis/fio"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/database"
	"github.com/hdt3213/godis/lib/logger"
	"github.com/hdt3213/rdb/encoder"
	"github.com/hdt3213/rdb/model"
	"github.com/hdt3213/rdb/parser"
)

// RDBFile keeps snapshots in dir/filename using the redis rdb format.
// Stream keys cannot be written in this format and are left out.
type RDBFile struct {
	dir      string
	filename string
}

// NewRDBFile creates a RDBFile
func NewRDBFile(dir, filename string) *RDBFile {
	return &RDBFile{dir: dir, filename: filename}
}

// Path returns the rdb file location
func (f *RDBFile) Path() string {
	return filepath.Join(f.dir, f.filename)
}

// Save writes records to a temp file and renames it over the rdb file
func (f *RDBFile) Save(records []database.Record) error {
	fileLock, err := lockDir(f.dir)
	if err != nil {
		return err
	}
	defer func() {
		_ = fileLock.Unlock()
	}()

	tmpPath := f.Path() + ".tmp"
	_ = os.Remove(tmpPath)
	file, err := fio.NewFileIOManager(tmpPath)
	if err != nil {
		return fmt.Errorf("create rdb file: %w", err)
	}
	if err := EncodeRDB(file, records); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, f.Path())
}

// Load reads the rdb file through a read only memory mapping
func (f *RDBFile) Load() ([]database.Record, error) {
	if !fileExists(f.Path()) {
		return nil, nil
	}
	fileLock, err := lockDir(f.dir)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = fileLock.Unlock()
	}()

	mm, err := fio.NewIOManager(f.Path(), fio.MemoryMap)
	if err != nil {
		return nil, fmt.Errorf("open rdb file: %w", err)
	}
	defer mm.Close()
	size, err := mm.Size()
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	return DecodeRDB(io.NewSectionReader(fio.ReaderAt{IOManager: mm}, 0, size), time.Now())
}

// EncodeRDB writes records as a complete rdb payload into w
func EncodeRDB(w io.Writer, records []database.Record) error {
	writable := make([]database.Record, 0, len(records))
	var ttlCount uint64
	for _, record := range records {
		if record.Type == database.TypeStream {
			logger.Warn(fmt.Sprintf("rdb snapshot skips stream key %s", record.Key))
			continue
		}
		if record.ExpireAt != nil {
			ttlCount++
		}
		writable = append(writable, record)
	}

	enc := encoder.NewEncoder(w)
	if err := enc.WriteHeader(); err != nil {
		return fmt.Errorf("write rdb header: %w", err)
	}
	auxMap := map[string]string{
		"redis-ver":  "7.2.0",
		"redis-bits": "64",
		"ctime":      strconv.FormatInt(time.Now().Unix(), 10),
	}
	for key, value := range auxMap {
		if err := enc.WriteAux(key, value); err != nil {
			return fmt.Errorf("write rdb aux field %s: %w", key, err)
		}
	}
	if err := enc.WriteDBHeader(0, uint64(len(writable)), ttlCount); err != nil {
		return fmt.Errorf("write rdb db header: %w", err)
	}
	for _, record := range writable {
		var options []interface{}
		if record.ExpireAt != nil {
			options = append(options, encoder.WithTTL(uint64(record.ExpireAt.UnixMilli())))
		}
		var err error
		switch record.Type {
		case database.TypeString:
			err = enc.WriteStringObject(record.Key, record.Value.([]byte), options...)
		case database.TypeList:
			err = enc.WriteListObject(record.Key, record.Value.([][]byte), options...)
		case database.TypeZSet:
			elements := record.Value.([]*sortedset.Element)
			entries := make([]*model.ZSetEntry, len(elements))
			for i, element := range elements {
				entries[i] = &model.ZSetEntry{Member: element.Member, Score: element.Score}
			}
			err = enc.WriteZSetObject(record.Key, entries, options...)
		}
		if err != nil {
			return fmt.Errorf("write rdb key %s: %w", record.Key, err)
		}
	}
	if err := enc.WriteEnd(); err != nil {
		return fmt.Errorf("write rdb end: %w", err)
	}
	return nil
}

// DecodeRDB parses a rdb payload, keys already expired at now are skipped
func DecodeRDB(r io.Reader, now time.Time) ([]database.Record, error) {
	var records []database.Record
	decoder := parser.NewDecoder(r)
	err := decoder.Parse(func(o parser.RedisObject) bool {
		expireAt := o.GetExpiration()
		if expireAt != nil && !expireAt.After(now) {
			return true
		}
		record := database.Record{
			Key:      o.GetKey(),
			ExpireAt: expireAt,
		}
		switch obj := o.(type) {
		case *parser.StringObject:
			record.Type = database.TypeString
			record.Value = obj.Value
		case *parser.ListObject:
			record.Type = database.TypeList
			record.Value = obj.Values
		case *parser.ZSetObject:
			elements := make([]*sortedset.Element, len(obj.Entries))
			for i, entry := range obj.Entries {
				elements[i] = &sortedset.Element{Member: entry.Member, Score: entry.Score}
			}
			record.Type = database.TypeZSet
			record.Value = elements
		default:
			logger.Warn(fmt.Sprintf("rdb load skips key %s of type %s", o.GetKey(), o.GetType()))
			return true
		}
		records = append(records, record)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("parse rdb: %w", err)
	}
	return records, nil
}

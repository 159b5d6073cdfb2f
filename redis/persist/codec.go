package persist

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/datastruct/sortedset"
	"github.com/Tuanzi-bug/TuanRedis/datastruct/stream"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/database"
)

// 数据类型标记，写在每条记录的第一个字节
const (
	typeString byte = iota
	typeList
	typeZSet
	typeStream
)

var typeMarks = map[database.DataType]byte{
	database.TypeString: typeString,
	database.TypeList:   typeList,
	database.TypeZSet:   typeZSet,
	database.TypeStream: typeStream,
}

var markTypes = map[byte]database.DataType{
	typeString: database.TypeString,
	typeList:   database.TypeList,
	typeZSet:   database.TypeZSet,
	typeStream: database.TypeStream,
}

// recordEncoder appends varint framed fields to a buffer
type recordEncoder struct {
	buf []byte
}

func (e *recordEncoder) putVarint(v int64) {
	e.buf = binary.AppendVarint(e.buf, v)
}

func (e *recordEncoder) putUvarint(v uint64) {
	e.buf = binary.AppendUvarint(e.buf, v)
}

func (e *recordEncoder) putBytes(b []byte) {
	e.putUvarint(uint64(len(b)))
	e.buf = append(e.buf, b...)
}

// recordDecoder reads fields written by recordEncoder, the first failure sticks
type recordDecoder struct {
	buf   []byte
	index int
	err   error
}

func (d *recordDecoder) varint() int64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Varint(d.buf[d.index:])
	if n <= 0 {
		d.err = ErrCorruptRecord
		return 0
	}
	d.index += n
	return v
}

func (d *recordDecoder) uvarint() uint64 {
	if d.err != nil {
		return 0
	}
	v, n := binary.Uvarint(d.buf[d.index:])
	if n <= 0 {
		d.err = ErrCorruptRecord
		return 0
	}
	d.index += n
	return v
}

func (d *recordDecoder) bytes() []byte {
	size := d.uvarint()
	if d.err != nil {
		return nil
	}
	if uint64(len(d.buf)-d.index) < size {
		d.err = ErrCorruptRecord
		return nil
	}
	b := make([]byte, size)
	copy(b, d.buf[d.index:])
	d.index += int(size)
	return b
}

// 长度字段不可信，按剩余字节数限制预分配
func (d *recordDecoder) count() int {
	n := d.uvarint()
	if n > uint64(len(d.buf)-d.index) {
		d.err = ErrCorruptRecord
		return 0
	}
	return int(n)
}

// encodeRecord serializes a record value as
// type | expire ms varint (0 for none) | payload
func encodeRecord(record database.Record) []byte {
	e := &recordEncoder{buf: make([]byte, 0, 64)}
	e.buf = append(e.buf, typeMarks[record.Type])
	var expire int64
	if record.ExpireAt != nil {
		expire = record.ExpireAt.UnixMilli()
	}
	e.putVarint(expire)

	switch record.Type {
	case database.TypeString:
		e.buf = append(e.buf, record.Value.([]byte)...)
	case database.TypeList:
		values := record.Value.([][]byte)
		e.putUvarint(uint64(len(values)))
		for _, v := range values {
			e.putBytes(v)
		}
	case database.TypeZSet:
		elements := record.Value.([]*sortedset.Element)
		e.putUvarint(uint64(len(elements)))
		for _, element := range elements {
			e.putBytes([]byte(element.Member))
			e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(element.Score))
		}
	case database.TypeStream:
		entries := record.Value.([]*stream.Entry)
		e.putUvarint(uint64(len(entries)))
		for _, entry := range entries {
			e.putUvarint(entry.ID.Ms)
			e.putUvarint(entry.ID.Seq)
			e.putUvarint(uint64(len(entry.Fields)))
			for _, field := range entry.Fields {
				e.putBytes(field)
			}
		}
	}
	return e.buf
}

func decodeRecord(key string, buf []byte) (database.Record, error) {
	record := database.Record{Key: key}
	if len(buf) == 0 {
		return record, ErrCorruptRecord
	}
	dataType, ok := markTypes[buf[0]]
	if !ok {
		return record, ErrCorruptRecord
	}
	record.Type = dataType
	d := &recordDecoder{buf: buf, index: 1}
	if expire := d.varint(); expire > 0 {
		expireAt := time.UnixMilli(expire)
		record.ExpireAt = &expireAt
	}
	if d.err != nil {
		return record, d.err
	}

	switch dataType {
	case database.TypeString:
		value := make([]byte, len(buf)-d.index)
		copy(value, buf[d.index:])
		record.Value = value
	case database.TypeList:
		n := d.count()
		values := make([][]byte, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			values = append(values, d.bytes())
		}
		record.Value = values
	case database.TypeZSet:
		n := d.count()
		elements := make([]*sortedset.Element, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			member := d.bytes()
			if d.err != nil || len(buf)-d.index < 8 {
				d.err = ErrCorruptRecord
				break
			}
			score := math.Float64frombits(binary.BigEndian.Uint64(buf[d.index:]))
			d.index += 8
			elements = append(elements, &sortedset.Element{Member: string(member), Score: score})
		}
		record.Value = elements
	case database.TypeStream:
		n := d.count()
		entries := make([]*stream.Entry, 0, n)
		for i := 0; i < n && d.err == nil; i++ {
			id := stream.ID{Ms: d.uvarint(), Seq: d.uvarint()}
			fieldCount := d.count()
			fields := make([][]byte, 0, fieldCount)
			for j := 0; j < fieldCount && d.err == nil; j++ {
				fields = append(fields, d.bytes())
			}
			entries = append(entries, &stream.Entry{ID: id, Fields: fields})
		}
		record.Value = entries
	}
	return record, d.err
}

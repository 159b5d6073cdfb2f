// Package stream implements the payload of redis stream keys.
package stream

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/btree"
)

const treeDegree = 32

// Entry is one record of a stream, Fields holds field value pairs in insertion order
type Entry struct {
	ID     ID
	Fields [][]byte
}

func entryLess(a, b *Entry) bool {
	return a.ID.Less(b.ID)
}

// Stream is an append-only sequence of entries with strictly increasing ids
type Stream struct {
	tree *btree.BTreeG[*Entry]
	last ID
}

// Make makes an empty Stream
func Make() *Stream {
	return &Stream{
		tree: btree.NewG[*Entry](treeDegree, entryLess),
	}
}

// Len returns the number of entries
func (s *Stream) Len() int {
	return s.tree.Len()
}

// LastID returns the id of the newest entry, 0-0 for an empty stream
func (s *Stream) LastID() ID {
	return s.last
}

// NextID resolves an XADD id argument against the current top item.
// raw is "*", "<ms>-*" or "<ms>-<seq>", nowMs is the wall clock in milliseconds.
func (s *Stream) NextID(raw string, nowMs uint64) (ID, error) {
	empty := s.tree.Len() == 0
	if raw == "*" {
		if empty || nowMs > s.last.Ms {
			return ID{Ms: nowMs}, nil
		}
		// 时钟回拨时沿用最后一个 ms，序号用尽则进位到下一个 ms
		if s.last.Seq < math.MaxUint64 {
			return ID{Ms: s.last.Ms, Seq: s.last.Seq + 1}, nil
		}
		if s.last.Ms < math.MaxUint64 {
			return ID{Ms: s.last.Ms + 1}, nil
		}
		return ID{}, ErrIDTooSmall
	}
	msPart, seqPart, ok := strings.Cut(raw, "-")
	if !ok {
		return ID{}, ErrInvalidID
	}
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return ID{}, ErrInvalidID
	}
	if seqPart == "*" {
		switch {
		case empty:
			if ms == 0 {
				return ID{Ms: 0, Seq: 1}, nil
			}
			return ID{Ms: ms}, nil
		case ms > s.last.Ms:
			return ID{Ms: ms}, nil
		case ms == s.last.Ms && s.last.Seq < math.MaxUint64:
			return ID{Ms: ms, Seq: s.last.Seq + 1}, nil
		default:
			return ID{}, ErrIDTooSmall
		}
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return ID{}, ErrInvalidID
	}
	id := ID{Ms: ms, Seq: seq}
	if id.IsZero() {
		return ID{}, ErrZeroID
	}
	if !empty && !s.last.Less(id) {
		return ID{}, ErrIDTooSmall
	}
	return id, nil
}

// Add resolves raw and appends a new entry
func (s *Stream) Add(raw string, fields [][]byte, nowMs uint64) (*Entry, error) {
	id, err := s.NextID(raw, nowMs)
	if err != nil {
		return nil, err
	}
	entry := &Entry{ID: id, Fields: fields}
	s.tree.ReplaceOrInsert(entry)
	s.last = id
	return entry, nil
}

// Append appends an entry with a known id, used when restoring snapshots
func (s *Stream) Append(entry *Entry) error {
	if entry.ID.IsZero() {
		return ErrZeroID
	}
	if s.tree.Len() > 0 && !s.last.Less(entry.ID) {
		return ErrIDTooSmall
	}
	s.tree.ReplaceOrInsert(entry)
	s.last = entry.ID
	return nil
}

// Range returns entries with start <= id <= end in id order, count <= 0 means no limit
func (s *Stream) Range(start, end ID, count int) []*Entry {
	result := make([]*Entry, 0)
	if end.Less(start) {
		return result
	}
	s.tree.AscendGreaterOrEqual(&Entry{ID: start}, func(entry *Entry) bool {
		if end.Less(entry.ID) {
			return false
		}
		result = append(result, entry)
		return count <= 0 || len(result) < count
	})
	return result
}

// After returns entries with id strictly greater than after, count <= 0 means no limit
func (s *Stream) After(after ID, count int) []*Entry {
	result := make([]*Entry, 0)
	s.tree.AscendGreaterOrEqual(&Entry{ID: after}, func(entry *Entry) bool {
		if !after.Less(entry.ID) {
			return true
		}
		result = append(result, entry)
		return count <= 0 || len(result) < count
	})
	return result
}

// ForEach visits all entries in id order
func (s *Stream) ForEach(consumer func(entry *Entry) bool) {
	s.tree.Ascend(func(entry *Entry) bool {
		return consumer(entry)
	})
}

// Package list implements the payload of redis list keys.
package list

// List is a deque of byte strings. Elements are kept in a ring buffer so that
// pushing and popping at either end is amortized O(1).
type List struct {
	items [][]byte
	head  int
	size  int
}

// New creates an empty List
func New() *List {
	return &List{}
}

// Make creates a List holding values in order
func Make(values ...[]byte) *List {
	l := &List{}
	for _, v := range values {
		l.PushBack(v)
	}
	return l
}

// Len returns the number of elements
func (l *List) Len() int {
	return l.size
}

func (l *List) grow() {
	if l.size < len(l.items) {
		return
	}
	capacity := len(l.items) * 2
	if capacity == 0 {
		capacity = 8
	}
	items := make([][]byte, capacity)
	for i := 0; i < l.size; i++ {
		items[i] = l.items[(l.head+i)%len(l.items)]
	}
	l.items = items
	l.head = 0
}

// PushBack appends val at the tail
func (l *List) PushBack(val []byte) {
	l.grow()
	l.items[(l.head+l.size)%len(l.items)] = val
	l.size++
}

// PushFront inserts val at the head
func (l *List) PushFront(val []byte) {
	l.grow()
	l.head = (l.head - 1 + len(l.items)) % len(l.items)
	l.items[l.head] = val
	l.size++
}

// PopFront removes and returns the head element
func (l *List) PopFront() ([]byte, bool) {
	if l.size == 0 {
		return nil, false
	}
	val := l.items[l.head]
	l.items[l.head] = nil
	l.head = (l.head + 1) % len(l.items)
	l.size--
	return val, true
}

// Get returns the element at index, index must be in [0, Len())
func (l *List) Get(index int) []byte {
	return l.items[(l.head+index)%len(l.items)]
}

// Range returns elements between start and stop, both inclusive.
// Negative indexes count from the tail, out of range indexes are clamped.
func (l *List) Range(start, stop int) [][]byte {
	begin, end, ok := ClampRange(start, stop, l.size)
	if !ok {
		return [][]byte{}
	}
	result := make([][]byte, 0, end-begin)
	for i := begin; i < end; i++ {
		result = append(result, l.Get(i))
	}
	return result
}

// Values returns all elements from head to tail
func (l *List) Values() [][]byte {
	return l.Range(0, -1)
}

// ClampRange converts redis style inclusive [start, stop] indexes into a half open
// [begin, end) range over a sequence of size elements.
func ClampRange(start, stop, size int) (int, int, bool) {
	if start < 0 {
		start = size + start
		if start < 0 {
			start = 0
		}
	}
	if stop < 0 {
		stop = size + stop
	}
	if stop >= size {
		stop = size - 1
	}
	if start >= size || stop < 0 || start > stop {
		return 0, 0, false
	}
	return start, stop + 1, true
}

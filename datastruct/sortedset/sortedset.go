// Package sortedset implements the payload of redis zset keys.
package sortedset

import (
	"github.com/google/btree"
)

const treeDegree = 32

// Element is a member of SortedSet with its score
type Element struct {
	Member string
	Score  float64
}

// less orders elements by score ascending, ties broken by member lexicographic order
func less(a, b *Element) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Member < b.Member
}

// SortedSet keeps members ordered by (score, member).
// Ranks are computed from the ordered index on every call and never cached,
// because a single score update may move any member.
type SortedSet struct {
	dict map[string]*Element
	tree *btree.BTreeG[*Element]
}

// Make makes a new SortedSet
func Make() *SortedSet {
	return &SortedSet{
		dict: make(map[string]*Element),
		tree: btree.NewG[*Element](treeDegree, less),
	}
}

// Add puts member into set, and returns whether it has inserted new node
func (ss *SortedSet) Add(member string, score float64) bool {
	element, ok := ss.dict[member]
	if ok {
		if element.Score == score {
			return false
		}
		ss.tree.Delete(element)
	}
	element = &Element{Member: member, Score: score}
	ss.dict[member] = element
	ss.tree.ReplaceOrInsert(element)
	return !ok
}

// Len returns number of members in set
func (ss *SortedSet) Len() int64 {
	return int64(len(ss.dict))
}

// Get returns the given member
func (ss *SortedSet) Get(member string) (*Element, bool) {
	element, ok := ss.dict[member]
	return element, ok
}

// Remove removes the given member from set
func (ss *SortedSet) Remove(member string) bool {
	element, ok := ss.dict[member]
	if !ok {
		return false
	}
	ss.tree.Delete(element)
	delete(ss.dict, member)
	return true
}

// GetRank returns the 0-based position of member in (score, member) order
func (ss *SortedSet) GetRank(member string) (int64, bool) {
	element, ok := ss.dict[member]
	if !ok {
		return -1, false
	}
	var rank int64
	ss.tree.AscendLessThan(element, func(*Element) bool {
		rank++
		return true
	})
	return rank, true
}

// ForEach visits members in order, from position start (inclusive) to stop (exclusive)
func (ss *SortedSet) ForEach(start, stop int64, consumer func(element *Element) bool) {
	if start < 0 || stop > ss.Len() || start >= stop {
		return
	}
	var i int64
	ss.tree.Ascend(func(element *Element) bool {
		if i >= stop {
			return false
		}
		if i >= start && !consumer(element) {
			return false
		}
		i++
		return true
	})
}

// Range returns members in positions [start, stop)
func (ss *SortedSet) Range(start, stop int64) []*Element {
	if start < 0 || stop > ss.Len() || start >= stop {
		return []*Element{}
	}
	result := make([]*Element, 0, stop-start)
	ss.ForEach(start, stop, func(element *Element) bool {
		result = append(result, element)
		return true
	})
	return result
}

package stream

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidID is returned for an ID that is not <ms>-<seq>, <ms>-*, <ms> or *
	ErrInvalidID = errors.New("ERR Invalid stream ID specified as stream command argument")
	// ErrZeroID is returned when XADD is given 0-0
	ErrZeroID = errors.New("ERR The ID specified in XADD must be greater than 0-0")
	// ErrIDTooSmall is returned when XADD is given an ID not greater than the top item
	ErrIDTooSmall = errors.New("ERR The ID specified in XADD is equal or smaller than the target stream top item")
)

// MinID and MaxID are the bounds used by "-" and "+"
var (
	MinID = ID{}
	MaxID = ID{Ms: math.MaxUint64, Seq: math.MaxUint64}
)

// ID identifies a stream entry, ids are compared on (Ms, Seq) numerically
type ID struct {
	Ms  uint64
	Seq uint64
}

func (id ID) String() string {
	return strconv.FormatUint(id.Ms, 10) + "-" + strconv.FormatUint(id.Seq, 10)
}

// Less reports whether id sorts before other
func (id ID) Less(other ID) bool {
	if id.Ms != other.Ms {
		return id.Ms < other.Ms
	}
	return id.Seq < other.Seq
}

// IsZero reports whether id is 0-0
func (id ID) IsZero() bool {
	return id.Ms == 0 && id.Seq == 0
}

// ParseID parses <ms>-<seq>, a bare <ms> means <ms>-0
func ParseID(s string) (ID, error) {
	return parseID(s, 0)
}

func parseID(s string, defaultSeq uint64) (ID, error) {
	msPart, seqPart, hasSeq := strings.Cut(s, "-")
	ms, err := strconv.ParseUint(msPart, 10, 64)
	if err != nil {
		return ID{}, ErrInvalidID
	}
	if !hasSeq {
		return ID{Ms: ms, Seq: defaultSeq}, nil
	}
	seq, err := strconv.ParseUint(seqPart, 10, 64)
	if err != nil {
		return ID{}, ErrInvalidID
	}
	return ID{Ms: ms, Seq: seq}, nil
}

// ParseRangeStart parses the start bound of XRANGE, "-" is the lowest id and <ms> means <ms>-0
func ParseRangeStart(s string) (ID, error) {
	if s == "-" {
		return MinID, nil
	}
	return parseID(s, 0)
}

// ParseRangeEnd parses the end bound of XRANGE, "+" is the highest id and <ms> means <ms>-<max seq>
func ParseRangeEnd(s string) (ID, error) {
	if s == "+" {
		return MaxID, nil
	}
	return parseID(s, math.MaxUint64)
}

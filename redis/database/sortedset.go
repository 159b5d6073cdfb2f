package database

import (
	"math"
	"strconv"
	"strings"

	"github.com/Tuanzi-bug/TuanRedis/datastruct/list"
	"github.com/Tuanzi-bug/TuanRedis/datastruct/sortedset"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/database"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/hdt3213/godis/lib/utils"
)

var notFloatErr = protocol.MakeErrReply("ERR value is not a valid float")

func (db *DB) getAsSortedSet(key string) (*sortedset.SortedSet, protocol.ErrorReply) {
	entity, exists := db.getEntity(key)
	if !exists {
		return nil, nil
	}
	sortedSet, ok := entity.Data.(*sortedset.SortedSet)
	if !ok {
		return nil, protocol.MakeWrongTypeErrReply()
	}
	return sortedSet, nil
}

func (db *DB) getOrInitSortedSet(key string) (sortedSet *sortedset.SortedSet, inited bool, errReply protocol.ErrorReply) {
	sortedSet, errReply = db.getAsSortedSet(key)
	if errReply != nil {
		return nil, false, errReply
	}
	inited = false
	if sortedSet == nil {
		sortedSet = sortedset.Make()
		db.putEntity(key, &database.DataEntity{Data: sortedSet})
		inited = true
	}
	return sortedSet, inited, nil
}

func formatScore(score float64) []byte {
	if math.IsInf(score, 1) {
		return []byte("inf")
	}
	if math.IsInf(score, -1) {
		return []byte("-inf")
	}
	return []byte(strconv.FormatFloat(score, 'f', -1, 64))
}

// execZAdd adds members into sorted set and returns the number of new members
// ZADD key score member [score member ...]
func execZAdd(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	if len(args)%2 != 1 {
		return protocol.MakeSyntaxErrReply()
	}
	key := string(args[0])
	size := (len(args) - 1) / 2
	elements := make([]*sortedset.Element, size)
	// 先校验全部分数再写入
	for i := 0; i < size; i++ {
		score, err := strconv.ParseFloat(string(args[2*i+1]), 64)
		if err != nil || math.IsNaN(score) {
			return notFloatErr
		}
		elements[i] = &sortedset.Element{
			Member: string(args[2*i+2]),
			Score:  score,
		}
	}

	sortedSet, _, errReply := db.getOrInitSortedSet(key)
	if errReply != nil {
		return errReply
	}
	i := 0
	for _, e := range elements {
		if sortedSet.Add(e.Member, e.Score) {
			i++
		}
	}
	db.propagate(utils.ToCmdLine3("zadd", args...))
	return protocol.MakeIntReply(int64(i))
}

// execZScore gets score of a member in sortedset
func execZScore(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	sortedSet, errReply := db.getAsSortedSet(string(args[0]))
	if errReply != nil {
		return errReply
	}
	if sortedSet == nil {
		return protocol.MakeNullBulkReply()
	}
	element, exists := sortedSet.Get(string(args[1]))
	if !exists {
		return protocol.MakeNullBulkReply()
	}
	return protocol.MakeBulkReply(formatScore(element.Score))
}

// execZRank gets index of a member in sortedset, ascending order, start from 0
func execZRank(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	sortedSet, errReply := db.getAsSortedSet(string(args[0]))
	if errReply != nil {
		return errReply
	}
	if sortedSet == nil {
		return protocol.MakeNullBulkReply()
	}
	rank, exists := sortedSet.GetRank(string(args[1]))
	if !exists {
		return protocol.MakeNullBulkReply()
	}
	return protocol.MakeIntReply(rank)
}

// execZCard gets number of members in sortedset
func execZCard(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	sortedSet, errReply := db.getAsSortedSet(string(args[0]))
	if errReply != nil {
		return errReply
	}
	if sortedSet == nil {
		return protocol.MakeIntReply(0)
	}
	return protocol.MakeIntReply(sortedSet.Len())
}

// execZRange gets members in range, sorted by score in ascending order
// ZRANGE key start stop [WITHSCORES]
func execZRange(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	withScores := false
	if len(args) > 4 {
		return protocol.MakeSyntaxErrReply()
	}
	if len(args) == 4 {
		if strings.ToUpper(string(args[3])) != "WITHSCORES" {
			return protocol.MakeSyntaxErrReply()
		}
		withScores = true
	}
	start, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return notIntegerErr
	}
	stop, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return notIntegerErr
	}
	sortedSet, errReply := db.getAsSortedSet(string(args[0]))
	if errReply != nil {
		return errReply
	}
	if sortedSet == nil {
		return protocol.MakeEmptyMultiBulkReply()
	}
	begin, end, ok := list.ClampRange(clampInt(start), clampInt(stop), int(sortedSet.Len()))
	if !ok {
		return protocol.MakeEmptyMultiBulkReply()
	}
	slice := sortedSet.Range(int64(begin), int64(end))
	result := make([][]byte, 0, len(slice)*2)
	for _, element := range slice {
		result = append(result, []byte(element.Member))
		if withScores {
			result = append(result, formatScore(element.Score))
		}
	}
	return protocol.MakeMultiBulkReply(result)
}

// execZRem removes given members, the key is deleted when the set becomes empty
func execZRem(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	key := string(args[0])
	sortedSet, errReply := db.getAsSortedSet(key)
	if errReply != nil {
		return errReply
	}
	if sortedSet == nil {
		return protocol.MakeIntReply(0)
	}
	var deleted int64 = 0
	for _, field := range args[1:] {
		if sortedSet.Remove(string(field)) {
			deleted++
		}
	}
	if sortedSet.Len() == 0 {
		db.removeEntity(key)
	}
	if deleted > 0 {
		db.propagate(utils.ToCmdLine3("zrem", args...))
	}
	return protocol.MakeIntReply(deleted)
}

func init() {
	registerCommand(cmdZAdd, "ZAdd", execZAdd, -4, flagWrite)
	registerCommand(cmdZScore, "ZScore", execZScore, 3, 0)
	registerCommand(cmdZRank, "ZRank", execZRank, 3, 0)
	registerCommand(cmdZCard, "ZCard", execZCard, 2, 0)
	registerCommand(cmdZRange, "ZRange", execZRange, -4, 0)
	registerCommand(cmdZRem, "ZRem", execZRem, -3, flagWrite)
}

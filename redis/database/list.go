package database

import (
	"math"
	"strconv"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/datastruct/list"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/database"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/hdt3213/godis/lib/utils"
)

func (db *DB) getAsList(key string) (*list.List, protocol.ErrorReply) {
	entity, ok := db.getEntity(key)
	if !ok {
		return nil, nil
	}
	l, ok := entity.Data.(*list.List)
	if !ok {
		return nil, protocol.MakeWrongTypeErrReply()
	}
	return l, nil
}

func (db *DB) getOrInitList(key string) (l *list.List, isNew bool, errReply protocol.ErrorReply) {
	l, errReply = db.getAsList(key)
	if errReply != nil {
		return nil, false, errReply
	}
	isNew = false
	if l == nil {
		l = list.New()
		db.putEntity(key, &database.DataEntity{Data: l})
		isNew = true
	}
	return l, isNew, nil
}

func pushGeneric(db *DB, args [][]byte, name string, push func(l *list.List, val []byte)) redis.Reply {
	key := string(args[0])
	l, _, errReply := db.getOrInitList(key)
	if errReply != nil {
		return errReply
	}
	for _, value := range args[1:] {
		push(l, value)
	}
	size := l.Len()
	db.propagate(utils.ToCmdLine3(name, args...))
	db.serveListWaiters(key, l)
	return protocol.MakeIntReply(int64(size))
}

// execRPush inserts elements at tail of list
func execRPush(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	return pushGeneric(db, args, "rpush", (*list.List).PushBack)
}

// execLPush inserts elements at head of list, the last argument ends up first
func execLPush(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	return pushGeneric(db, args, "lpush", (*list.List).PushFront)
}

// execLPop removes the first element of list and returns it, or up to count elements
func execLPop(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	if len(args) > 2 {
		return protocol.MakeSyntaxErrReply()
	}
	key := string(args[0])
	count := -1
	if len(args) == 2 {
		n, err := strconv.ParseInt(string(args[1]), 10, 64)
		if err != nil || n < 0 || n > math.MaxInt32 {
			return protocol.MakeErrReply("ERR value is out of range, must be positive")
		}
		count = int(n)
	}

	l, errReply := db.getAsList(key)
	if errReply != nil {
		return errReply
	}
	if l == nil {
		if count < 0 {
			return protocol.MakeNullBulkReply()
		}
		return protocol.MakeNullArrayReply()
	}
	if count < 0 {
		val, _ := l.PopFront()
		if l.Len() == 0 {
			db.removeEntity(key)
		}
		db.propagate(utils.ToCmdLine3("lpop", args[0]))
		return protocol.MakeBulkReply(val)
	}
	popped := make([][]byte, 0, count)
	for i := 0; i < count && l.Len() > 0; i++ {
		val, _ := l.PopFront()
		popped = append(popped, val)
	}
	if l.Len() == 0 {
		db.removeEntity(key)
	}
	if len(popped) > 0 {
		db.propagate(utils.ToCmdLine3("lpop", args...))
	}
	return protocol.MakeMultiBulkReply(popped)
}

// execLRange gets elements of list in given range, both ends inclusive
func execLRange(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	key := string(args[0])
	start, err := strconv.ParseInt(string(args[1]), 10, 64)
	if err != nil {
		return notIntegerErr
	}
	stop, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return notIntegerErr
	}
	l, errReply := db.getAsList(key)
	if errReply != nil {
		return errReply
	}
	if l == nil {
		return protocol.MakeEmptyMultiBulkReply()
	}
	return protocol.MakeMultiBulkReply(l.Range(clampInt(start), clampInt(stop)))
}

// execLLen gets length of list
func execLLen(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	l, errReply := db.getAsList(string(args[0]))
	if errReply != nil {
		return errReply
	}
	if l == nil {
		return protocol.MakeIntReply(0)
	}
	return protocol.MakeIntReply(int64(l.Len()))
}

var timeoutRangeErr = protocol.MakeErrReply("ERR timeout is out of range")

// parseMillisTimeout converts a millisecond timeout, 0 means forever
func parseMillisTimeout(arg []byte) (time.Duration, protocol.ErrorReply) {
	ms, err := strconv.ParseInt(string(arg), 10, 64)
	if err != nil {
		return 0, notIntegerErr
	}
	if ms < 0 {
		return 0, protocol.MakeErrReply("ERR timeout is negative")
	}
	if ms > math.MaxInt64/int64(time.Millisecond) {
		return 0, timeoutRangeErr
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// parseBlockTimeout parses a timeout given in seconds, fractions allowed
func parseBlockTimeout(arg []byte) (time.Duration, protocol.ErrorReply) {
	seconds, err := strconv.ParseFloat(string(arg), 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, protocol.MakeErrReply("ERR timeout is not a float or out of range")
	}
	if seconds < 0 {
		return 0, protocol.MakeErrReply("ERR timeout is negative")
	}
	if seconds*float64(time.Second) >= math.MaxInt64 {
		return 0, timeoutRangeErr
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// execBLPop pops the head of the first non-empty list, or blocks until one is pushed
// BLPOP key [key ...] timeout
func execBLPop(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	timeout, errReply := parseBlockTimeout(args[len(args)-1])
	if errReply != nil {
		return errReply
	}
	keys := make([]string, 0, len(args)-1)
	for _, arg := range args[:len(args)-1] {
		keys = append(keys, string(arg))
	}
	for _, key := range keys {
		l, errReply := db.getAsList(key)
		if errReply != nil {
			return errReply
		}
		if l == nil || l.Len() == 0 {
			continue
		}
		val, _ := l.PopFront()
		if l.Len() == 0 {
			db.removeEntity(key)
		}
		db.propagate(utils.ToCmdLine("lpop", key))
		return protocol.MakeMultiBulkReply([][]byte{[]byte(key), val})
	}
	return &blockedReply{
		kind:    waitListPop,
		keys:    keys,
		timeout: timeout,
	}
}

func clampInt(n int64) int {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	if n < math.MinInt32 {
		return math.MinInt32
	}
	return int(n)
}

func init() {
	registerCommand(cmdRPush, "RPush", execRPush, -3, flagWrite)
	registerCommand(cmdLPush, "LPush", execLPush, -3, flagWrite)
	registerCommand(cmdLPop, "LPop", execLPop, -2, flagWrite)
	registerCommand(cmdLRange, "LRange", execLRange, 4, 0)
	registerCommand(cmdLLen, "LLen", execLLen, 2, 0)
	registerCommand(cmdBLPop, "BLPop", execBLPop, -3, flagWrite|flagBlocking)
}

package database

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/redis/interface/database"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/hdt3213/godis/lib/utils"
)

const (
	upsertPolicy = iota // default
	insertPolicy        // set nx
	updatePolicy        // set xx
)

var (
	notIntegerErr = protocol.MakeErrReply("ERR value is not an integer or out of range")
	overflowErr   = protocol.MakeErrReply("ERR increment or decrement would overflow")
)

func (db *DB) getAsString(key string) ([]byte, protocol.ErrorReply) {
	entity, ok := db.getEntity(key)
	if !ok {
		return nil, nil
	}
	bytes, ok := entity.Data.([]byte)
	if !ok {
		return nil, protocol.MakeWrongTypeErrReply()
	}
	return bytes, nil
}

// execGet returns string value bound to the given key
func execGet(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	key := string(args[0])
	bytes, err := db.getAsString(key)
	if err != nil {
		return err
	}
	if bytes == nil {
		return protocol.MakeNullBulkReply()
	}
	return protocol.MakeBulkReply(bytes)
}

// execSet sets string value and time to live to the given key
// SET key value [EX seconds | PX milliseconds | EXAT unix-seconds | PXAT unix-ms] [NX | XX]
func execSet(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	key := string(args[0])
	value := args[1]
	policy := upsertPolicy
	var expireAt time.Time
	hasTTL := false

	// parse options
	for i := 2; i < len(args); i++ {
		arg := strings.ToUpper(string(args[i]))
		switch arg {
		case "NX":
			if policy == updatePolicy {
				return protocol.MakeSyntaxErrReply()
			}
			policy = insertPolicy
		case "XX":
			if policy == insertPolicy {
				return protocol.MakeSyntaxErrReply()
			}
			policy = updatePolicy
		case "EX", "PX", "EXAT", "PXAT":
			if hasTTL || i+1 >= len(args) {
				return protocol.MakeSyntaxErrReply()
			}
			n, err := strconv.ParseInt(string(args[i+1]), 10, 64)
			if err != nil {
				return notIntegerErr
			}
			if n <= 0 {
				return protocol.MakeErrReply("ERR invalid expire time in 'set' command")
			}
			switch arg {
			case "EX":
				expireAt = time.Now().Add(time.Duration(n) * time.Second)
			case "PX":
				expireAt = time.Now().Add(time.Duration(n) * time.Millisecond)
			case "EXAT":
				expireAt = time.Unix(n, 0)
			case "PXAT":
				expireAt = time.UnixMilli(n)
			}
			hasTTL = true
			i++
		default:
			return protocol.MakeSyntaxErrReply()
		}
	}

	_, exists := db.getEntity(key)
	if (policy == insertPolicy && exists) || (policy == updatePolicy && !exists) {
		return protocol.MakeNullBulkReply()
	}
	db.putEntity(key, &database.DataEntity{Data: value})
	if hasTTL {
		db.expire(key, expireAt)
		db.propagate(utils.ToCmdLine3("set", args[0], value,
			[]byte("PXAT"), []byte(strconv.FormatInt(expireAt.UnixMilli(), 10))))
	} else {
		db.persist(key)
		db.propagate(utils.ToCmdLine3("set", args[0], value))
	}
	return protocol.MakeOkReply()
}

// execIncr increments the integer value of key by one, the ttl is kept
func execIncr(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	key := string(args[0])
	bytes, errReply := db.getAsString(key)
	if errReply != nil {
		return errReply
	}
	var value int64
	if bytes != nil {
		var err error
		value, err = strconv.ParseInt(string(bytes), 10, 64)
		if err != nil {
			return notIntegerErr
		}
		if value == math.MaxInt64 {
			return overflowErr
		}
	}
	value++
	db.putEntity(key, &database.DataEntity{
		Data: []byte(strconv.FormatInt(value, 10)),
	})
	db.propagate(utils.ToCmdLine3("incr", args[0]))
	return protocol.MakeIntReply(value)
}

func init() {
	registerCommand(cmdSet, "Set", execSet, -3, flagWrite)
	registerCommand(cmdGet, "Get", execGet, 2, 0)
	registerCommand(cmdIncr, "Incr", execIncr, 2, flagWrite)
}

package database

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/datastruct/stream"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/database"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/hdt3213/godis/lib/utils"
)

type streamReadResult struct {
	key     string
	entries []*stream.Entry
}

func (db *DB) getAsStream(key string) (*stream.Stream, protocol.ErrorReply) {
	entity, exists := db.getEntity(key)
	if !exists {
		return nil, nil
	}
	s, ok := entity.Data.(*stream.Stream)
	if !ok {
		return nil, protocol.MakeWrongTypeErrReply()
	}
	return s, nil
}

// makeEntryReply renders an entry as [id, [field, value, ...]]
func makeEntryReply(entry *stream.Entry) redis.Reply {
	return protocol.MakeMultiRawReply([]redis.Reply{
		protocol.MakeBulkReply([]byte(entry.ID.String())),
		protocol.MakeMultiBulkReply(entry.Fields),
	})
}

func makeEntriesReply(entries []*stream.Entry) redis.Reply {
	replies := make([]redis.Reply, len(entries))
	for i, entry := range entries {
		replies[i] = makeEntryReply(entry)
	}
	return protocol.MakeMultiRawReply(replies)
}

// makeStreamReadReply renders XREAD results as [[key, [entry ...]] ...]
func makeStreamReadReply(results []streamReadResult) redis.Reply {
	replies := make([]redis.Reply, len(results))
	for i, result := range results {
		replies[i] = protocol.MakeMultiRawReply([]redis.Reply{
			protocol.MakeBulkReply([]byte(result.key)),
			makeEntriesReply(result.entries),
		})
	}
	return protocol.MakeMultiRawReply(replies)
}

func streamErrReply(err error) redis.Reply {
	return protocol.MakeErrReply(err.Error())
}

// execXAdd appends an entry to a stream and returns its id
// XADD key id field value [field value ...]
func execXAdd(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	if len(args)%2 != 0 {
		return protocol.MakeArgNumErrReply("xadd")
	}
	key := string(args[0])
	s, errReply := db.getAsStream(key)
	if errReply != nil {
		return errReply
	}
	created := false
	if s == nil {
		s = stream.Make()
		created = true
	}
	fields := make([][]byte, len(args)-2)
	copy(fields, args[2:])
	entry, err := s.Add(string(args[1]), fields, uint64(time.Now().UnixMilli()))
	if err != nil {
		return streamErrReply(err)
	}
	// 追加成功后才创建 key
	if created {
		db.putEntity(key, &database.DataEntity{Data: s})
	}
	id := []byte(entry.ID.String())
	cmdLine := utils.ToCmdLine3("xadd", args[0], id)
	db.propagate(append(cmdLine, fields...))
	db.serveStreamWaiters(key, s)
	return protocol.MakeBulkReply(id)
}

// parseCount parses the argument of COUNT, non-positive values mean no limit
func parseCount(arg []byte) (int, protocol.ErrorReply) {
	n, err := strconv.ParseInt(string(arg), 10, 64)
	if err != nil {
		return 0, notIntegerErr
	}
	if n > math.MaxInt32 {
		n = math.MaxInt32
	}
	return int(n), nil
}

// execXRange returns entries with ids between start and end, both inclusive
// XRANGE key start end [COUNT count]
func execXRange(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	start, err := stream.ParseRangeStart(string(args[1]))
	if err != nil {
		return streamErrReply(err)
	}
	end, err := stream.ParseRangeEnd(string(args[2]))
	if err != nil {
		return streamErrReply(err)
	}
	count := 0
	if len(args) > 3 {
		if len(args) != 5 || strings.ToUpper(string(args[3])) != "COUNT" {
			return protocol.MakeSyntaxErrReply()
		}
		var errReply protocol.ErrorReply
		count, errReply = parseCount(args[4])
		if errReply != nil {
			return errReply
		}
		if count <= 0 {
			return protocol.MakeEmptyMultiBulkReply()
		}
	}
	s, errReply := db.getAsStream(string(args[0]))
	if errReply != nil {
		return errReply
	}
	if s == nil {
		return protocol.MakeEmptyMultiBulkReply()
	}
	return makeEntriesReply(s.Range(start, end, count))
}

// execXLen returns the number of entries of a stream
func execXLen(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	s, errReply := db.getAsStream(string(args[0]))
	if errReply != nil {
		return errReply
	}
	if s == nil {
		return protocol.MakeIntReply(0)
	}
	return protocol.MakeIntReply(int64(s.Len()))
}

// execXRead returns entries newer than the given ids, optionally blocking until one arrives
// XREAD [COUNT count] [BLOCK milliseconds] STREAMS key [key ...] id [id ...]
func execXRead(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	count := 0
	block := false
	var timeout time.Duration
	i := 0
	for ; i < len(args); i++ {
		option := strings.ToUpper(string(args[i]))
		if option == "STREAMS" {
			break
		}
		if i+1 >= len(args) {
			return protocol.MakeSyntaxErrReply()
		}
		switch option {
		case "COUNT":
			var errReply protocol.ErrorReply
			count, errReply = parseCount(args[i+1])
			if errReply != nil {
				return errReply
			}
		case "BLOCK":
			var errReply protocol.ErrorReply
			timeout, errReply = parseMillisTimeout(args[i+1])
			if errReply != nil {
				return errReply
			}
			block = true
		default:
			return protocol.MakeSyntaxErrReply()
		}
		i++
	}
	if i >= len(args) {
		return protocol.MakeSyntaxErrReply()
	}
	rest := args[i+1:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return protocol.MakeErrReply("ERR Unbalanced 'xread' list of streams: for each stream key an ID or '$' must be specified.")
	}

	n := len(rest) / 2
	keys := make([]string, n)
	after := make(map[string]stream.ID, n)
	streams := make([]*stream.Stream, n)
	for j := 0; j < n; j++ {
		key := string(rest[j])
		s, errReply := db.getAsStream(key)
		if errReply != nil {
			return errReply
		}
		keys[j] = key
		streams[j] = s
		idArg := string(rest[n+j])
		if idArg == "$" {
			// $ 在调用时解析为当前最后一个 ID
			if s != nil {
				after[key] = s.LastID()
			} else {
				after[key] = stream.MinID
			}
			continue
		}
		id, err := stream.ParseID(idArg)
		if err != nil {
			return streamErrReply(err)
		}
		after[key] = id
	}

	var results []streamReadResult
	for j, key := range keys {
		if streams[j] == nil {
			continue
		}
		entries := streams[j].After(after[key], count)
		if len(entries) > 0 {
			results = append(results, streamReadResult{key: key, entries: entries})
		}
	}
	if len(results) > 0 {
		return makeStreamReadReply(results)
	}
	if !block {
		return protocol.MakeNullArrayReply()
	}
	return &blockedReply{
		kind:    waitStreamRead,
		keys:    keys,
		after:   after,
		count:   count,
		timeout: timeout,
	}
}

func init() {
	registerCommand(cmdXAdd, "XAdd", execXAdd, -5, flagWrite)
	registerCommand(cmdXRange, "XRange", execXRange, -4, 0)
	registerCommand(cmdXLen, "XLen", execXLen, 2, 0)
	registerCommand(cmdXRead, "XRead", execXRead, -4, flagBlocking)
}

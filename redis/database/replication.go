package database

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/persist"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/hdt3213/godis/lib/logger"
)

// execWait blocks until numreplicas acknowledged the writes so far, WAIT numreplicas timeout
func execWait(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	numReplicas, err := strconv.Atoi(string(args[0]))
	if err != nil {
		return notIntegerErr
	}
	timeout, errReply := parseMillisTimeout(args[1])
	if errReply != nil {
		return errReply
	}
	acked := db.feed.Wait(numReplicas, timeout, c.Done())
	return protocol.MakeIntReply(int64(acked))
}

// execReplConf handles the replica handshake and acknowledgements
func execReplConf(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	if len(args)%2 != 0 {
		return protocol.MakeSyntaxErrReply()
	}
	for i := 0; i < len(args); i += 2 {
		option := strings.ToLower(string(args[i]))
		switch option {
		case "ack":
			offset, err := strconv.ParseInt(string(args[i+1]), 10, 64)
			if err != nil {
				return notIntegerErr
			}
			db.feed.Ack(c, offset)
			// ACK 不需要回复
			return &protocol.NoReply{}
		case "listening-port", "capa", "ip-address", "getack":
		default:
			return protocol.MakeErrReply("ERR Unrecognized REPLCONF option: " + string(args[i]))
		}
	}
	return protocol.MakeOkReply()
}

// execPSync always answers with a full resync: the snapshot followed by the write stream.
// The reply is queued on the replica's outbox and written after the lock is released.
func execPSync(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	var payload bytes.Buffer
	if err := persist.EncodeRDB(&payload, db.snapshot()); err != nil {
		logger.Error(fmt.Sprintf("encode snapshot for %s failed: %v", c.RemoteAddr(), err))
		return protocol.MakeErrReply("ERR " + err.Error())
	}
	header := fmt.Sprintf("+FULLRESYNC %s %d\r\n$%d\r\n", db.feed.ReplID(), db.feed.CurrentOffset(), payload.Len())
	preamble := append([]byte(header), payload.Bytes()...)
	// 持有 db 锁，快照与起始 offset 一致
	db.feed.AddReplica(c, preamble)
	return &protocol.NoReply{}
}

func init() {
	registerCommand(cmdWait, "Wait", execWait, 3, flagNoLock|flagNoTx)
	registerCommand(cmdReplConf, "ReplConf", execReplConf, -1, flagNoLock|flagNoTx)
	registerCommand(cmdPSync, "PSync", execPSync, 3, flagNoTx)
}

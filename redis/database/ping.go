package database

import (
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
)

// execPing replies PONG, or echoes its argument
func execPing(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	if len(args) == 0 {
		return protocol.MakePongReply()
	}
	if len(args) == 1 {
		return protocol.MakeBulkReply(args[0])
	}
	return protocol.MakeArgNumErrReply("ping")
}

// execEcho returns its argument
func execEcho(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	return protocol.MakeBulkReply(args[0])
}

func init() {
	registerCommand(cmdPing, "Ping", execPing, -1, flagNoLock|flagPubSub)
	registerCommand(cmdEcho, "Echo", execEcho, 2, flagNoLock)
}

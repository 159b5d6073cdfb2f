package database

import (
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
)

// execMulti starts a transaction
func execMulti(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	if c.InMultiState() {
		return protocol.MakeErrReply("ERR MULTI calls can not be nested")
	}
	c.SetMultiState(true)
	return protocol.MakeOkReply()
}

// execDiscard drops the queued commands
func execDiscard(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	if !c.InMultiState() {
		return protocol.MakeErrReply("ERR DISCARD without MULTI")
	}
	c.SetMultiState(false)
	return protocol.MakeOkReply()
}

// execExec replays the queued commands under a single lock acquisition.
// Errors of single commands become elements of the result and do not stop the replay.
func execExec(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	if !c.InMultiState() {
		return protocol.MakeErrReply("ERR EXEC without MULTI")
	}
	cmdLines := c.GetQueuedCmdLine()
	c.SetMultiState(false)
	if len(cmdLines) == 0 {
		return protocol.MakeEmptyMultiBulkReply()
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	results := make([]redis.Reply, 0, len(cmdLines))
	for _, cmdLine := range cmdLines {
		results = append(results, db.execQueued(c, cmdLine))
	}
	return protocol.MakeMultiRawReply(results)
}

// execQueued runs one queued command, mu must be held
func (db *DB) execQueued(c redis.Connection, cmdLine [][]byte) redis.Reply {
	name := string(cmdLine[0])
	kind, ok := lookupCommand(name)
	if !ok {
		return protocol.MakeUnknownCommandErrReply(name)
	}
	cmd := commandTable[kind]
	if !validateArity(cmd.arity, cmdLine) {
		return protocol.MakeArgNumErrReply(cmd.name)
	}
	if cmd.flags&flagNoTx > 0 {
		return protocol.MakeErrReply("ERR Command not allowed inside a transaction")
	}
	reply := cmd.executor(db, c, cmdLine[1:])
	// 事务中的阻塞命令不会阻塞，按超时处理
	if _, ok := reply.(*blockedReply); ok {
		return protocol.MakeNullArrayReply()
	}
	return reply
}

func init() {
	registerCommand(cmdMulti, "Multi", execMulti, 1, flagNoLock|flagNoTx)
	registerCommand(cmdExec, "Exec", execExec, 1, flagNoLock|flagNoTx)
	registerCommand(cmdDiscard, "Discard", execDiscard, 1, flagNoLock|flagNoTx)
}

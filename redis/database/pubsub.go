package database

import (
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
)

func toChannels(args [][]byte) []string {
	channels := make([]string, len(args))
	for i, arg := range args {
		channels[i] = string(arg)
	}
	return channels
}

func execSubscribe(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	return db.hub.Subscribe(c, toChannels(args))
}

func execUnsubscribe(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	return db.hub.UnSubscribe(c, toChannels(args))
}

func execPublish(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	return protocol.MakeIntReply(int64(db.hub.Publish(string(args[0]), args[1])))
}

func init() {
	registerCommand(cmdSubscribe, "Subscribe", execSubscribe, -2, flagNoLock|flagNoTx|flagPubSub)
	registerCommand(cmdUnsubscribe, "Unsubscribe", execUnsubscribe, -1, flagNoLock|flagNoTx|flagPubSub)
	registerCommand(cmdPublish, "Publish", execPublish, 3, flagNoLock)
}

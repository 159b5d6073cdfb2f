package database

import (
	"strings"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/gobwas/glob"
	"github.com/hdt3213/godis/lib/utils"
)

// execDel removes keys from db
func execDel(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	keys := make([]string, len(args))
	for i, v := range args {
		keys[i] = string(v)
	}
	deleted := db.removes(keys...)
	if deleted > 0 {
		db.propagate(utils.ToCmdLine3("del", args...))
	}
	return protocol.MakeIntReply(int64(deleted))
}

// execExists counts the given keys that exist
func execExists(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	result := int64(0)
	for _, arg := range args {
		if _, exists := db.getEntity(string(arg)); exists {
			result++
		}
	}
	return protocol.MakeIntReply(result)
}

// execType returns the type of entity, including: string, list, zset and stream
func execType(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	entity, exists := db.getEntity(string(args[0]))
	if !exists {
		return protocol.MakeStatusReply("none")
	}
	if dataType := typeOf(entity); dataType != "" {
		return protocol.MakeStatusReply(string(dataType))
	}
	return &protocol.UnknownErrReply{}
}

// literalPrefix returns the part of pattern before its first wildcard
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[{\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}

// toGlobPattern rewrites a redis pattern for gobwas/glob: braces and commas are
// literal in redis, and a negated class is written [^...] instead of [!...]
func toGlobPattern(pattern string) string {
	var sb strings.Builder
	inClass := false
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '\\' && i+1 < len(pattern):
			sb.WriteByte(ch)
			i++
			sb.WriteByte(pattern[i])
		case inClass:
			if ch == ']' {
				inClass = false
			}
			sb.WriteByte(ch)
		case ch == '[':
			inClass = true
			sb.WriteByte(ch)
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				sb.WriteByte('!')
				i++
			}
		case ch == '{' || ch == '}' || ch == ',':
			sb.WriteByte('\\')
			sb.WriteByte(ch)
		default:
			sb.WriteByte(ch)
		}
	}
	return sb.String()
}

// execKeys returns all non-expired keys matching the glob pattern, in key order
func execKeys(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	pattern := string(args[0])
	g, err := glob.Compile(toGlobPattern(pattern))
	if err != nil {
		return protocol.MakeEmptyMultiBulkReply()
	}
	now := time.Now()
	result := make([][]byte, 0)
	var expired []string
	db.data.ForEachPrefix(literalPrefix(pattern), func(key string, val interface{}) bool {
		if !g.Match(key) {
			return true
		}
		if db.isExpired(key, now) {
			expired = append(expired, key)
			return true
		}
		result = append(result, []byte(key))
		return true
	})
	// 遍历结束后再删除，避免在遍历中修改树
	for _, key := range expired {
		db.expireKey(key)
	}
	return protocol.MakeMultiBulkReply(result)
}

// execDBSize returns the number of keys, keys not swept yet included
func execDBSize(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	return protocol.MakeIntReply(int64(db.data.Len()))
}

func init() {
	registerCommand(cmdDel, "Del", execDel, -2, flagWrite)
	registerCommand(cmdExists, "Exists", execExists, -2, 0)
	registerCommand(cmdType, "Type", execType, 2, 0)
	registerCommand(cmdKeys, "Keys", execKeys, 2, 0)
	registerCommand(cmdDBSize, "DBSize", execDBSize, 1, 0)
}

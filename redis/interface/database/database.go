package database

import (
	"time"

	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
)

// CmdLine is alias for [][]byte, represents a command line  CmdLine是[][]byte的别名，表示一行命令
type CmdLine = [][]byte

// DB is the interface for redis style storage engine  DB是redis风格存储引擎的接口
type DB interface {
	Exec(client redis.Connection, cmdLine [][]byte) redis.Reply
	AfterClientClose(c redis.Connection)
	Close() error
}

// DataEntity stores data bound to a key, including a string, list, sorted set and stream
// 存储与键绑定的数据
type DataEntity struct {
	Data interface{}
}

// DataType names the type of value stored at a key, as reported by TYPE
type DataType string

const (
	TypeString DataType = "string"
	TypeList   DataType = "list"
	TypeZSet   DataType = "zset"
	TypeStream DataType = "stream"
)

// Record is a key exported to or imported from a snapshot.
// Value is []byte for strings, [][]byte for lists, []*sortedset.Element for sorted sets
// and []*stream.Entry for streams.
type Record struct {
	Key      string
	Type     DataType
	Value    interface{}
	ExpireAt *time.Time
}

package database

import (
	"strings"
	"testing"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/redis/connection"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/database"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/parser"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	db := MakeDB(Options{SampleInterval: 10 * time.Millisecond})
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func execLine(db *DB, c redis.Connection, line string) string {
	return string(db.Exec(c, toArgs(line)).ToBytes())
}

func toArgs(line string) [][]byte {
	fields := strings.Fields(line)
	args := make([][]byte, len(fields))
	for i, field := range fields {
		args[i] = []byte(field)
	}
	return args
}

func TestCommandTable(t *testing.T) {
	for kind := CommandKind(0); kind < commandCount; kind++ {
		require.NotNil(t, commandTable[kind], "command kind %d is not registered", kind)
		found, ok := lookupCommand(strings.ToUpper(kind.Name()))
		assert.True(t, ok)
		assert.Equal(t, kind, found)
	}
	assert.Equal(t, "", commandCount.Name())
}

func TestExec_BadCommands(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	assert.Equal(t, "-ERR empty command\r\n", string(db.Exec(c, nil).ToBytes()))
	assert.True(t, strings.HasPrefix(execLine(db, c, "FOO bar"), "-ERR unknown command"))
	assert.Equal(t, "-ERR wrong number of arguments for 'get' command\r\n", execLine(db, c, "GET"))
	assert.Equal(t, "-ERR wrong number of arguments for 'set' command\r\n", execLine(db, c, "set a"))
}

func TestString(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	assert.Equal(t, "$-1\r\n", execLine(db, c, "GET a"))
	assert.Equal(t, "+OK\r\n", execLine(db, c, "SET a hello"))
	assert.Equal(t, "$5\r\nhello\r\n", execLine(db, c, "get a"))
	assert.Equal(t, "$-1\r\n", execLine(db, c, "SET a x NX"))
	assert.Equal(t, "+OK\r\n", execLine(db, c, "SET a x XX"))
	assert.Equal(t, "$-1\r\n", execLine(db, c, "SET b x XX"))
	assert.Equal(t, "-ERR syntax error\r\n", execLine(db, c, "SET a x NX XX"))
	assert.Equal(t, "-ERR invalid expire time in 'set' command\r\n", execLine(db, c, "SET a x PX 0"))
	assert.Equal(t, "-ERR value is not an integer or out of range\r\n", execLine(db, c, "SET a x EX ten"))
}

func TestSet_Expire(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	assert.Equal(t, "+OK\r\n", execLine(db, c, "SET k v PX 100"))
	assert.Equal(t, "$1\r\nv\r\n", execLine(db, c, "GET k"))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, "$-1\r\n", execLine(db, c, "GET k"))
	assert.Equal(t, "*0\r\n", execLine(db, c, "KEYS *"))
	assert.Equal(t, ":0\r\n", execLine(db, c, "EXISTS k"))

	// a plain SET clears the ttl
	execLine(db, c, "SET k v PX 50")
	execLine(db, c, "SET k w")
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, "$1\r\nw\r\n", execLine(db, c, "GET k"))
}

func TestSampler_RemovesExpired(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	for _, key := range []string{"a", "b", "c"} {
		execLine(db, c, "SET "+key+" v PX 20")
	}
	execLine(db, c, "SET keep v")
	assert.Eventually(t, func() bool {
		db.mu.Lock()
		defer db.mu.Unlock()
		return db.data.Len() == 1 && len(db.ttlMap) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestIncr(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	assert.Equal(t, ":1\r\n", execLine(db, c, "INCR n"))
	assert.Equal(t, ":2\r\n", execLine(db, c, "INCR n"))
	execLine(db, c, "SET s abc")
	assert.Equal(t, "-ERR value is not an integer or out of range\r\n", execLine(db, c, "INCR s"))
	execLine(db, c, "SET max 9223372036854775807")
	assert.Equal(t, "-ERR increment or decrement would overflow\r\n", execLine(db, c, "INCR max"))
	execLine(db, c, "RPUSH l a")
	assert.True(t, strings.HasPrefix(execLine(db, c, "INCR l"), "-WRONGTYPE"))
}

func TestKeys(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	execLine(db, c, "SET user:1 a")
	execLine(db, c, "SET user:2 b")
	execLine(db, c, "SET order:1 c")
	assert.Equal(t, "*2\r\n$6\r\nuser:1\r\n$6\r\nuser:2\r\n", execLine(db, c, "KEYS user:*"))
	assert.Equal(t, "*1\r\n$7\r\norder:1\r\n", execLine(db, c, "KEYS *der*"))
	assert.Equal(t, "*1\r\n$6\r\nuser:2\r\n", execLine(db, c, "KEYS user:[^1]"))
	assert.Equal(t, ":3\r\n", execLine(db, c, "DBSIZE"))
	assert.Equal(t, ":2\r\n", execLine(db, c, "DEL user:1 user:2 missing"))
	assert.Equal(t, ":1\r\n", execLine(db, c, "EXISTS order:1 user:1"))
}

func TestType(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	execLine(db, c, "SET s v")
	execLine(db, c, "RPUSH l v")
	execLine(db, c, "ZADD z 1 m")
	execLine(db, c, "XADD x * f v")
	assert.Equal(t, "+string\r\n", execLine(db, c, "TYPE s"))
	assert.Equal(t, "+list\r\n", execLine(db, c, "TYPE l"))
	assert.Equal(t, "+zset\r\n", execLine(db, c, "TYPE z"))
	assert.Equal(t, "+stream\r\n", execLine(db, c, "TYPE x"))
	assert.Equal(t, "+none\r\n", execLine(db, c, "TYPE nothing"))
}

func TestPropagation(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	execLine(db, c, "set a 1")
	// *3\r\n$3\r\nset\r\n$1\r\na\r\n$1\r\n1\r\n
	assert.Equal(t, int64(27), db.feed.CurrentOffset())

	// reads and failed writes are not propagated
	execLine(db, c, "GET a")
	execLine(db, c, "SET a 2 NX")
	execLine(db, c, "INCR missing-arg extra")
	assert.Equal(t, int64(27), db.feed.CurrentOffset())
	assert.Equal(t, int64(1), db.dirty)
}

func TestSnapshot_LoadEntries(t *testing.T) {
	src := newTestDB(t)
	c := connection.NewFakeConn()
	execLine(src, c, "SET s v EX 100")
	execLine(src, c, "SET plain v")
	execLine(src, c, "RPUSH l a b c")
	execLine(src, c, "ZADD z 2 b 1 a")
	execLine(src, c, "XADD x 1-1 f v")
	execLine(src, c, "XADD x 2-0 g w")
	records := src.Snapshot()
	require.Len(t, records, 5)

	dst := newTestDB(t)
	dst.LoadEntries(records)
	assert.Equal(t, "$1\r\nv\r\n", execLine(dst, c, "GET s"))
	assert.Equal(t, "*3\r\n$1\r\na\r\n$1\r\nb\r\n$1\r\nc\r\n", execLine(dst, c, "LRANGE l 0 -1"))
	assert.Equal(t, "*2\r\n$1\r\na\r\n$1\r\nb\r\n", execLine(dst, c, "ZRANGE z 0 -1"))
	assert.Equal(t, ":2\r\n", execLine(dst, c, "XLEN x"))
	assert.Equal(t, "-ERR The ID specified in XADD is equal or smaller than the target stream top item\r\n",
		execLine(dst, c, "XADD x 2-0 h v"))
	dst.mu.Lock()
	_, hasTTL := dst.ttlMap["s"]
	_, plainTTL := dst.ttlMap["plain"]
	dst.mu.Unlock()
	assert.True(t, hasTTL)
	assert.False(t, plainTTL)
}

func TestExec_ErrorRepliesStayOneFrame(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	cmdLines := [][][]byte{
		{[]byte("FOO\r\n+OK")},
		{[]byte("CONFIG"), []byte("x\r\n:1")},
		{[]byte("REPLCONF"), []byte("bad\r\n"), []byte("1")},
	}
	for _, cmdLine := range cmdLines {
		replies, err := parser.ParseBytes(db.Exec(c, cmdLine).ToBytes())
		require.NoError(t, err)
		require.Len(t, replies, 1)
		assert.True(t, protocol.IsErrorReply(replies[0]))
	}
}

func TestKeys_BracesAreLiteral(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	execLine(db, c, "SET a 1")
	execLine(db, c, "SET {a,b} 2")
	execLine(db, c, "SET x,y 3")
	assert.Equal(t, "*1\r\n$5\r\n{a,b}\r\n", execLine(db, c, "KEYS {a,b}"))
	assert.Equal(t, "*1\r\n$5\r\n{a,b}\r\n", execLine(db, c, "KEYS {*}"))
	assert.Equal(t, "*1\r\n$3\r\nx,y\r\n", execLine(db, c, "KEYS x,?"))
	assert.Equal(t, "*1\r\n$1\r\na\r\n", execLine(db, c, "KEYS [^x]"))
}

func TestToGlobPattern(t *testing.T) {
	assert.Equal(t, `\{a\,b\}`, toGlobPattern("{a,b}"))
	assert.Equal(t, `[!ab]*`, toGlobPattern("[^ab]*"))
	assert.Equal(t, `[{,]`, toGlobPattern("[{,]"))
	assert.Equal(t, `\*x`, toGlobPattern(`\*x`))
}

func TestLoadEntries_Malformed(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	assert.NotPanics(t, func() {
		db.LoadEntries([]database.Record{
			{Key: "s", Type: database.TypeString, Value: 42},
			{Key: "l", Type: database.TypeList, Value: []byte("x")},
			{Key: "z", Type: database.TypeZSet, Value: nil},
			{Key: "x", Type: database.TypeStream, Value: "nope"},
			{Key: "u", Type: database.DataType("hash"), Value: []byte("v")},
			{Key: "ok", Type: database.TypeString, Value: []byte("v")},
		})
	})
	assert.Equal(t, ":1\r\n", execLine(db, c, "DBSIZE"))
	assert.Equal(t, "$1\r\nv\r\n", execLine(db, c, "GET ok"))
}

func TestExpire_CollectionKeys(t *testing.T) {
	db := MakeDB(Options{SampleInterval: time.Hour})
	defer func() {
		_ = db.Close()
	}()
	c := connection.NewFakeConn()
	execLine(db, c, "RPUSH l a b")
	execLine(db, c, "ZADD z 1 a")
	execLine(db, c, "XADD x 1-1 f v")
	db.mu.Lock()
	for _, key := range []string{"l", "z", "x"} {
		db.expire(key, time.Now().Add(-time.Second))
	}
	db.mu.Unlock()

	assert.Equal(t, "*0\r\n", execLine(db, c, "LRANGE l 0 -1"))
	assert.Equal(t, "*0\r\n", execLine(db, c, "ZRANGE z 0 -1"))
	assert.Equal(t, "*0\r\n", execLine(db, c, "XRANGE x - +"))
	for _, key := range []string{"l", "z", "x"} {
		assert.Equal(t, "+none\r\n", execLine(db, c, "TYPE "+key))
		db.mu.Lock()
		_, exists := db.data.Get(key)
		_, hasTTL := db.ttlMap[key]
		db.mu.Unlock()
		assert.False(t, exists, key)
		assert.False(t, hasTTL, key)
	}
	assert.Equal(t, ":0\r\n", execLine(db, c, "DBSIZE"))
}

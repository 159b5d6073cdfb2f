package database

import (
	"testing"

	"github.com/Tuanzi-bug/TuanRedis/redis/connection"
	"github.com/stretchr/testify/assert"
)

func TestZAdd(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	assert.Equal(t, ":2\r\n", execLine(db, c, "ZADD z 1.5 a 2 b"))
	// updating a score does not count as added
	assert.Equal(t, ":0\r\n", execLine(db, c, "ZADD z 3 a"))
	assert.Equal(t, ":2\r\n", execLine(db, c, "ZCARD z"))
	assert.Equal(t, "$1\r\n3\r\n", execLine(db, c, "ZSCORE z a"))
	assert.Equal(t, "$-1\r\n", execLine(db, c, "ZSCORE z missing"))
	assert.Equal(t, "-ERR value is not a valid float\r\n", execLine(db, c, "ZADD z 1 c x d"))
	// a rejected ZADD adds nothing
	assert.Equal(t, ":2\r\n", execLine(db, c, "ZCARD z"))
	assert.Equal(t, "-ERR syntax error\r\n", execLine(db, c, "ZADD z 1 a 2"))
}

func TestZRange(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	execLine(db, c, "ZADD z 2 b 1 a 2 a2 0.5 c")
	assert.Equal(t, "*4\r\n$1\r\nc\r\n$1\r\na\r\n$2\r\na2\r\n$1\r\nb\r\n", execLine(db, c, "ZRANGE z 0 -1"))
	assert.Equal(t, "*4\r\n$1\r\na\r\n$1\r\n1\r\n$2\r\na2\r\n$1\r\n2\r\n", execLine(db, c, "ZRANGE z 1 2 WITHSCORES"))
	assert.Equal(t, "*0\r\n", execLine(db, c, "ZRANGE z 5 10"))
	assert.Equal(t, ":0\r\n", execLine(db, c, "ZRANK z c"))
	assert.Equal(t, ":3\r\n", execLine(db, c, "ZRANK z b"))
	assert.Equal(t, "$-1\r\n", execLine(db, c, "ZRANK z missing"))
	assert.Equal(t, "$-1\r\n", execLine(db, c, "ZRANK missing a"))
}

func TestZRem(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	execLine(db, c, "ZADD z 1 a 2 b")
	assert.Equal(t, ":1\r\n", execLine(db, c, "ZREM z a missing"))
	assert.Equal(t, ":0\r\n", execLine(db, c, "ZRANK z b"))
	assert.Equal(t, ":1\r\n", execLine(db, c, "ZREM z b"))
	assert.Equal(t, "+none\r\n", execLine(db, c, "TYPE z"))
	assert.Equal(t, ":0\r\n", execLine(db, c, "ZREM z b"))
}

func TestZScore_Infinity(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	execLine(db, c, "ZADD z +inf top -inf bottom 0 mid")
	assert.Equal(t, "$3\r\ninf\r\n", execLine(db, c, "ZSCORE z top"))
	assert.Equal(t, "$4\r\n-inf\r\n", execLine(db, c, "ZSCORE z bottom"))
	assert.Equal(t, "*6\r\n$6\r\nbottom\r\n$4\r\n-inf\r\n$3\r\nmid\r\n$1\r\n0\r\n$3\r\ntop\r\n$3\r\ninf\r\n",
		execLine(db, c, "ZRANGE z 0 -1 WITHSCORES"))
}

package database

import (
	"testing"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/redis/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execAsync runs line in its own goroutine and delivers the reply
func execAsync(db *DB, c *connection.FakeConn, line string) <-chan string {
	ch := make(chan string, 1)
	go func() {
		ch <- execLine(db, c, line)
	}()
	return ch
}

func waitBlocked(t *testing.T, db *DB, key string, n int) {
	require.Eventually(t, func() bool {
		return db.blocking.waiting(key) == n
	}, time.Second, 5*time.Millisecond)
}

func TestBLPop_Immediate(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	execLine(db, c, "RPUSH b x")
	assert.Equal(t, "*2\r\n$1\r\nb\r\n$1\r\nx\r\n", execLine(db, c, "BLPOP a b 1"))
	assert.Equal(t, ":0\r\n", execLine(db, c, "EXISTS b"))
	assert.Equal(t, "-ERR timeout is negative\r\n", execLine(db, c, "BLPOP a -1"))
	assert.Equal(t, "-ERR timeout is not a float or out of range\r\n", execLine(db, c, "BLPOP a x"))
}

func TestBLPop_WokenByPush(t *testing.T) {
	db := newTestDB(t)
	blocked := connection.NewFakeConn()
	pusher := connection.NewFakeConn()
	result := execAsync(db, blocked, "BLPOP l 0")
	waitBlocked(t, db, "l", 1)

	assert.Equal(t, ":1\r\n", execLine(db, pusher, "RPUSH l v"))
	select {
	case reply := <-result:
		assert.Equal(t, "*2\r\n$1\r\nl\r\n$1\r\nv\r\n", reply)
	case <-time.After(time.Second):
		t.Fatal("BLPOP was not woken")
	}
	// the element went to the waiter
	assert.Equal(t, ":0\r\n", execLine(db, pusher, "LLEN l"))
	assert.Equal(t, 0, db.blocking.size())
}

func TestBLPop_Timeout(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	start := time.Now()
	assert.Equal(t, "*-1\r\n", execLine(db, c, "BLPOP l 0.1"))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assert.Equal(t, 0, db.blocking.waiting("l"))

	// a later push stays in the list
	execLine(db, c, "RPUSH l v")
	assert.Equal(t, ":1\r\n", execLine(db, c, "LLEN l"))
}

func TestBLPop_FIFO(t *testing.T) {
	db := newTestDB(t)
	first := connection.NewFakeConn()
	second := connection.NewFakeConn()
	r1 := execAsync(db, first, "BLPOP l 0")
	waitBlocked(t, db, "l", 1)
	r2 := execAsync(db, second, "BLPOP l 0")
	waitBlocked(t, db, "l", 2)

	execLine(db, connection.NewFakeConn(), "RPUSH l a b")
	assert.Equal(t, "*2\r\n$1\r\nl\r\n$1\r\na\r\n", <-r1)
	assert.Equal(t, "*2\r\n$1\r\nl\r\n$1\r\nb\r\n", <-r2)
}

func TestBLPop_MultipleKeys(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	result := execAsync(db, c, "BLPOP a b 0")
	waitBlocked(t, db, "b", 1)
	execLine(db, connection.NewFakeConn(), "LPUSH b v")
	assert.Equal(t, "*2\r\n$1\r\nb\r\n$1\r\nv\r\n", <-result)
	// the registration on the other key is gone too
	assert.Equal(t, 0, db.blocking.waiting("a"))
}

func TestBLPop_CancelOnClose(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	result := execAsync(db, c, "BLPOP l 0")
	waitBlocked(t, db, "l", 1)

	_ = c.Close()
	db.AfterClientClose(c)
	select {
	case reply := <-result:
		assert.Equal(t, "", reply)
	case <-time.After(time.Second):
		t.Fatal("BLPOP was not cancelled")
	}
	assert.Equal(t, 0, db.blocking.size())

	other := connection.NewFakeConn()
	execLine(db, other, "RPUSH l v")
	assert.Equal(t, ":1\r\n", execLine(db, other, "LLEN l"))
}

func TestXRead_Block(t *testing.T) {
	db := newTestDB(t)
	reader := connection.NewFakeConn()
	writer := connection.NewFakeConn()
	execLine(db, writer, "XADD s 1-0 a 1")
	result := execAsync(db, reader, "XREAD BLOCK 0 STREAMS s $")
	waitBlocked(t, db, "s", 1)

	execLine(db, writer, "XADD s 2-0 b 2")
	select {
	case reply := <-result:
		assert.Equal(t, "*1\r\n*2\r\n$1\r\ns\r\n*1\r\n*2\r\n$3\r\n2-0\r\n*2\r\n$1\r\nb\r\n$1\r\n2\r\n", reply)
	case <-time.After(time.Second):
		t.Fatal("XREAD was not woken")
	}
}

func TestXRead_BlockTimeout(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	assert.Equal(t, "*-1\r\n", execLine(db, c, "XREAD BLOCK 50 STREAMS s 0"))
	assert.Equal(t, 0, db.blocking.size())
}

func TestClose_CancelsWaiters(t *testing.T) {
	db := MakeDB(Options{})
	c := connection.NewFakeConn()
	result := execAsync(db, c, "BLPOP l 0")
	waitBlocked(t, db, "l", 1)
	require.NoError(t, db.Close())
	assert.Equal(t, "", <-result)
}

func TestBlockTimeout_OutOfRange(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	assert.Equal(t, "-ERR timeout is out of range\r\n", execLine(db, c, "BLPOP l 1e30"))
	assert.Equal(t, "-ERR timeout is out of range\r\n", execLine(db, c, "XREAD BLOCK 9223372036854775807 STREAMS s 0"))
	assert.Equal(t, "-ERR timeout is out of range\r\n", execLine(db, c, "WAIT 1 9223372036854775807"))
	assert.Equal(t, "-ERR timeout is negative\r\n", execLine(db, c, "XREAD BLOCK -1 STREAMS s 0"))
	assert.Equal(t, 0, db.blocking.size())
}

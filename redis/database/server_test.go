package database

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/redis/connection"
	"github.com/Tuanzi-bug/TuanRedis/redis/persist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPingEcho(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	assert.Equal(t, "+PONG\r\n", execLine(db, c, "PING"))
	assert.Equal(t, "$2\r\nhi\r\n", execLine(db, c, "PING hi"))
	assert.Equal(t, "$5\r\nhello\r\n", execLine(db, c, "ECHO hello"))
	assert.Equal(t, "-ERR wrong number of arguments for 'echo' command\r\n", execLine(db, c, "ECHO"))
}

func TestInfo(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	execLine(db, c, "SET a 1 EX 100")
	execLine(db, c, "SET b 1")
	info := execLine(db, c, "INFO")
	assert.Contains(t, info, "# Server\r\n")
	assert.Contains(t, info, "role:master\r\n")
	assert.Contains(t, info, "master_replid:"+db.feed.ReplID())
	assert.Contains(t, info, "db0:keys=2,expires=1\r\n")

	replication := execLine(db, c, "INFO replication")
	assert.Contains(t, replication, "connected_slaves:0")
	assert.NotContains(t, replication, "# Keyspace")
}

func TestConfigGet(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	assert.Equal(t, "*2\r\n$10\r\ndbfilename\r\n$8\r\ndump.rdb\r\n", execLine(db, c, "CONFIG GET dbfilename"))
	assert.Equal(t, "*0\r\n", execLine(db, c, "CONFIG GET nothing"))
	multi := execLine(db, c, "CONFIG GET d*")
	assert.Contains(t, multi, "$3\r\ndir\r\n")
	assert.Contains(t, multi, "$10\r\ndbfilename\r\n")
	assert.True(t, strings.HasPrefix(execLine(db, c, "CONFIG SET port 1"), "-ERR unknown subcommand"))
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	snapshotter, err := persist.NewSnapshotter(persist.BackendBolt, dir, "dump.db")
	require.NoError(t, err)
	db := MakeDB(Options{Snapshotter: snapshotter})
	c := connection.NewFakeConn()
	execLine(db, c, "SET a 1")
	execLine(db, c, "XADD s 1-0 f v")
	assert.Equal(t, "+OK\r\n", execLine(db, c, "SAVE"))
	assert.Equal(t, int64(0), db.dirty)
	// writes after the save are flushed on close
	execLine(db, c, "RPUSH l x")
	require.NoError(t, db.Close())

	records, err := snapshotter.Load()
	require.NoError(t, err)
	assert.Len(t, records, 3)

	noSnapshot := newTestDB(t)
	assert.Equal(t, "-ERR snapshot is disabled\r\n", execLine(noSnapshot, c, "SAVE"))
}

func TestPubSub(t *testing.T) {
	db := newTestDB(t)
	sub := connection.NewFakeConn()
	pub := connection.NewFakeConn()
	assert.Equal(t, "", execLine(db, sub, "SUBSCRIBE news"))
	assert.Equal(t, "*3\r\n$9\r\nsubscribe\r\n$4\r\nnews\r\n:1\r\n", string(sub.Bytes()))
	assert.True(t, strings.HasPrefix(execLine(db, sub, "GET a"), "-ERR Can't execute 'get'"))
	assert.Equal(t, "+PONG\r\n", execLine(db, sub, "PING"))

	assert.Equal(t, ":1\r\n", execLine(db, pub, "PUBLISH news hello"))
	assert.Equal(t, "*3\r\n$7\r\nmessage\r\n$4\r\nnews\r\n$5\r\nhello\r\n", string(sub.Bytes()))
	assert.Equal(t, ":0\r\n", execLine(db, pub, "PUBLISH other hello"))

	execLine(db, sub, "UNSUBSCRIBE")
	assert.Equal(t, "*3\r\n$11\r\nunsubscribe\r\n$4\r\nnews\r\n:0\r\n", string(sub.Bytes()))
	assert.Equal(t, "$-1\r\n", execLine(db, sub, "GET a"))
}

func TestWait_NoReplicas(t *testing.T) {
	db := newTestDB(t)
	c := connection.NewFakeConn()
	execLine(db, c, "SET a 1")
	assert.Equal(t, ":0\r\n", execLine(db, c, "WAIT 1 100"))
	assert.Equal(t, "-ERR value is not an integer or out of range\r\n", execLine(db, c, "WAIT x 0"))
}

func TestPSync(t *testing.T) {
	db := newTestDB(t)
	client := connection.NewFakeConn()
	replica := connection.NewFakeConn()
	execLine(db, client, "SET before 1")
	offset := db.feed.CurrentOffset()

	assert.Equal(t, "+OK\r\n", execLine(db, replica, "REPLCONF listening-port 6380"))
	assert.Equal(t, "", execLine(db, replica, "PSYNC ? -1"))
	assert.True(t, replica.IsReplica())
	assert.Equal(t, 1, db.feed.ReplicaCount())
	execLine(db, client, "SET after 2")

	var received bytes.Buffer
	prefix := "+FULLRESYNC " + db.feed.ReplID() + " " + strconv.FormatInt(offset, 10) + "\r\n$"
	write := "*3\r\n$3\r\nset\r\n$5\r\nafter\r\n$1\r\n2\r\n"
	assert.Eventually(t, func() bool {
		received.Write(replica.Bytes())
		return strings.HasSuffix(received.String(), write)
	}, time.Second, 5*time.Millisecond)
	assert.True(t, strings.HasPrefix(received.String(), prefix))

	// acks count bytes from the full resync
	assert.Equal(t, "", execLine(db, replica, "REPLCONF ACK "+strconv.FormatInt(db.feed.CurrentOffset()-offset, 10)))
	assert.Equal(t, ":1\r\n", execLine(db, client, "WAIT 1 1000"))

	db.AfterClientClose(replica)
	assert.Equal(t, 0, db.feed.ReplicaCount())
}

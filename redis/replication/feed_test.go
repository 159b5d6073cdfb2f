package replication

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/redis/connection"
	"github.com/hdt3213/godis/lib/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_Offset(t *testing.T) {
	f := NewFeed()
	defer f.Close()
	assert.Len(t, f.ReplID(), 40)
	assert.Equal(t, int64(0), f.CurrentOffset())

	f.OnWrite(utils.ToCmdLine("SET", "a", "1"))
	// *3\r\n$3\r\nSET\r\n$1\r\na\r\n$1\r\n1\r\n
	assert.Equal(t, int64(27), f.CurrentOffset())
}

func TestFeed_ReplicaReceivesOnlyNewWrites(t *testing.T) {
	f := NewFeed()
	f.OnWrite(utils.ToCmdLine("SET", "before", "1"))
	replica := connection.NewFakeConn()
	f.AddReplica(replica, nil)
	assert.True(t, replica.IsReplica())
	assert.Equal(t, 1, f.ReplicaCount())
	f.OnWrite(utils.ToCmdLine("INCR", "a"))
	// Close drains the outbox
	require.NoError(t, f.Close())
	assert.Equal(t, 0, f.ReplicaCount())
	assert.Equal(t, "*2\r\n$4\r\nINCR\r\n$1\r\na\r\n", string(replica.Bytes()))

	// writes after close are dropped
	offset := f.CurrentOffset()
	f.OnWrite(utils.ToCmdLine("INCR", "a"))
	assert.Equal(t, offset, f.CurrentOffset())

	f.RemoveReplica(replica)
	assert.Equal(t, 0, f.ReplicaCount())
}

func TestFeed_PreambleFirst(t *testing.T) {
	f := NewFeed()
	replica := connection.NewFakeConn()
	f.AddReplica(replica, []byte("+FULLRESYNC id 0\r\n"))
	f.OnWrite(utils.ToCmdLine("INCR", "a"))
	require.NoError(t, f.Close())
	assert.Equal(t, "+FULLRESYNC id 0\r\n*2\r\n$4\r\nINCR\r\n$1\r\na\r\n", string(replica.Bytes()))
}

// stuckConn never finishes a write until it is closed
type stuckConn struct {
	*connection.FakeConn
	release chan struct{}
	once    sync.Once
}

func (c *stuckConn) Write(b []byte) (int, error) {
	<-c.release
	return 0, io.ErrClosedPipe
}

func (c *stuckConn) Close() error {
	c.once.Do(func() {
		close(c.release)
	})
	return c.FakeConn.Close()
}

func TestFeed_LaggingReplicaDropped(t *testing.T) {
	f := newFeed(2)
	stuck := &stuckConn{FakeConn: connection.NewFakeConn(), release: make(chan struct{})}
	f.AddReplica(stuck, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			f.OnWrite(utils.ToCmdLine("INCR", "a"))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnWrite blocked on a stuck replica")
	}
	assert.Eventually(t, func() bool {
		return f.ReplicaCount() == 0
	}, time.Second, 5*time.Millisecond)
	// the lagging replica is disconnected
	assert.Eventually(t, func() bool {
		select {
		case <-stuck.Done():
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, f.Close())
}

func TestFeed_Wait(t *testing.T) {
	f := NewFeed()
	defer f.Close()
	assert.Equal(t, 0, f.Wait(1, 10*time.Millisecond, nil))

	replica := connection.NewFakeConn()
	f.AddReplica(replica, nil)
	assert.Equal(t, 1, f.Wait(1, 0, nil))

	f.OnWrite(utils.ToCmdLine("SET", "a", "1"))
	begin := time.Now()
	assert.Equal(t, 0, f.Wait(1, 50*time.Millisecond, nil))
	assert.GreaterOrEqual(t, time.Since(begin), 50*time.Millisecond)

	go func() {
		time.Sleep(20 * time.Millisecond)
		f.Ack(replica, f.CurrentOffset())
	}()
	assert.Equal(t, 1, f.Wait(1, time.Second, nil))
}

package connection

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnection_DoneOnReadError(t *testing.T) {
	server, client := net.Pipe()
	c := NewConn(server)

	go func() {
		_, _ = client.Write([]byte("ping"))
		_ = client.Close()
	}()
	buf := make([]byte, 4)
	n, err := c.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	_, err = c.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel not closed")
	}
	assert.NoError(t, c.Close())
}

func TestConnection_MultiState(t *testing.T) {
	c := NewFakeConn()
	assert.False(t, c.InMultiState())
	c.SetMultiState(true)
	c.EnqueueCmd([][]byte{[]byte("SET"), []byte("a"), []byte("1")})
	assert.True(t, c.InMultiState())
	assert.Len(t, c.GetQueuedCmdLine(), 1)

	c.SetMultiState(false)
	assert.False(t, c.InMultiState())
	assert.Empty(t, c.GetQueuedCmdLine())

	c.SetReplica()
	assert.True(t, c.IsReplica())
	assert.False(t, c.InMultiState())
}

func TestConnection_Subscribe(t *testing.T) {
	c := NewFakeConn()
	c.Subscribe("a")
	c.Subscribe("b")
	c.Subscribe("a")
	assert.Equal(t, 2, c.SubsCount())
	assert.ElementsMatch(t, []string{"a", "b"}, c.GetChannels())
	c.UnSubscribe("a")
	assert.Equal(t, []string{"b"}, c.GetChannels())
}

func TestFakeConn_Bytes(t *testing.T) {
	c := NewFakeConn()
	_, _ = c.Write([]byte("+OK\r\n"))
	assert.Equal(t, "+OK\r\n", string(c.Bytes()))
	assert.Empty(t, c.Bytes())
	_ = c.Close()
	_, open := <-c.Done()
	assert.False(t, open)
}

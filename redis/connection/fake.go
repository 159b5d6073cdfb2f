package connection

import (
	"bytes"
	"sync"
)

// FakeConn implements redis.Connection for tests, replies are kept in memory
type FakeConn struct {
	Connection
	bufMu sync.Mutex
	buf   bytes.Buffer
}

// NewFakeConn creates a FakeConn
func NewFakeConn() *FakeConn {
	return &FakeConn{
		Connection: Connection{done: make(chan struct{})},
	}
}

// Write writes data to the in-memory buffer
func (c *FakeConn) Write(b []byte) (int, error) {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	return c.buf.Write(b)
}

// Bytes returns and drains the written data
func (c *FakeConn) Bytes() []byte {
	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	b := make([]byte, c.buf.Len())
	copy(b, c.buf.Bytes())
	c.buf.Reset()
	return b
}

// Close marks the connection done
func (c *FakeConn) Close() error {
	c.markDone()
	return nil
}

func (c *FakeConn) RemoteAddr() string {
	return "fake"
}

func (c *FakeConn) Name() string {
	return "fake"
}

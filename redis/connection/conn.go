package connection

import (
	"net"
	"sync"
	"time"

	"github.com/hdt3213/godis/lib/sync/wait"
)

// 用位运算标记连接状态
const (
	// flagMulti means this connection is within a transaction
	flagMulti = uint64(1 << iota)
	// flagReplica means this connection is a replica receiving the write feed
	flagReplica
)

// Connection represents a connection with a redis-cli
type Connection struct {
	conn net.Conn
	// 等待数据发送完成，用于正常关机
	sendingData wait.Wait
	// 标记连接状态
	flags uint64
	// lock while server sending response
	writeMu sync.Mutex
	// guards subs
	mu sync.Mutex

	// 订阅的频道
	subs  map[string]bool
	queue [][][]byte

	// closed once the socket fails or is closed
	done      chan struct{}
	closeOnce sync.Once
}

func NewConn(conn net.Conn) *Connection {
	return &Connection{
		conn: conn,
		done: make(chan struct{}),
	}
}

// Read reads request bytes from the socket, a read failure marks the connection done
func (c *Connection) Read(p []byte) (int, error) {
	n, err := c.conn.Read(p)
	if err != nil {
		c.markDone()
	}
	return n, err
}

// Write  sends response to client over tcp connection
func (c *Connection) Write(bytes []byte) (int, error) {
	if len(bytes) == 0 {
		return 0, nil
	}
	// 添加一个链接
	c.sendingData.Add(1)
	defer func() {
		c.sendingData.Done()
	}()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(bytes)
}

func (c *Connection) markDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed once the connection is closed or its socket failed
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection
func (c *Connection) Close() error {
	// 超时等待数据发送完成
	c.sendingData.WaitWithTimeout(10 * time.Second)
	c.markDone()
	_ = c.conn.Close()
	c.mu.Lock()
	c.subs = nil
	c.mu.Unlock()
	return nil
}

// RemoteAddr returns the remote network address
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *Connection) Name() string {
	if c.conn != nil {
		return c.conn.RemoteAddr().String()
	}
	return ""
}

// Subscribe add current connection into subscribers of the given channel 添加当前连接到给定频道的订阅者
func (c *Connection) Subscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs == nil {
		c.subs = make(map[string]bool)
	}
	c.subs[channel] = true
}

// UnSubscribe remove current connection from subscribers of the given channel 从给定频道的订阅者中删除当前连接
func (c *Connection) UnSubscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) == 0 {
		return
	}
	delete(c.subs, channel)
}

func (c *Connection) SubsCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// GetChannels returns all channels that the connection is subscribed to 返回连接订阅的所有频道
func (c *Connection) GetChannels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs == nil {
		return make([]string, 0)
	}
	channels := make([]string, len(c.subs))
	i := 0
	for channel := range c.subs {
		channels[i] = channel
		i++
	}
	return channels
}

// InMultiState tells is connection in an uncommitted transaction  告诉连接是否处于未提交的事务中
func (c *Connection) InMultiState() bool {
	return c.flags&flagMulti > 0
}

func (c *Connection) SetMultiState(b bool) {
	if b {
		c.flags |= flagMulti
	} else {
		c.flags &= ^flagMulti
		c.queue = nil
	}
}

// GetQueuedCmdLine returns queued commands of current transaction 返回当前事务的排队命令
func (c *Connection) GetQueuedCmdLine() [][][]byte {
	return c.queue
}

func (c *Connection) EnqueueCmd(cmdLine [][]byte) {
	c.queue = append(c.queue, cmdLine)
}

func (c *Connection) ClearQueuedCmds() {
	c.queue = nil
}

// SetReplica marks the connection as a replica after a successful PSYNC
func (c *Connection) SetReplica() {
	c.flags |= flagReplica
}

func (c *Connection) IsReplica() bool {
	return c.flags&flagReplica > 0
}

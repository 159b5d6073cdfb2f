package client

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/parser"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/hdt3213/godis/lib/logger"
	"github.com/hdt3213/godis/lib/sync/wait"
	"github.com/hdt3213/godis/lib/utils"
)

const (
	created = iota
	running
	closed
)

// Client is a pipeline mode redis client
type Client struct {
	conn        net.Conn
	pendingReqs chan *request // wait to send
	waitingReqs chan *request // waiting response

	status  int32
	working *sync.WaitGroup // its counter presents unfinished requests(pending and waiting)
}

// request is a message sends to redis server
type request struct {
	args    [][]byte
	reply   redis.Reply
	waiting *wait.Wait
	err     error
}

const (
	chanSize = 256
	maxWait  = 3 * time.Second
)

var errConnLost = errors.New("connection lost")

// MakeClient creates a new client
func MakeClient(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn:        conn,
		pendingReqs: make(chan *request, chanSize),
		waitingReqs: make(chan *request, chanSize),
		working:     &sync.WaitGroup{},
	}, nil
}

// Start starts the writer and reader goroutines
func (client *Client) Start() {
	go client.handleWrite()
	go client.handleRead()
	atomic.StoreInt32(&client.status, running)
}

// Close stops the client after the unfinished requests are answered
func (client *Client) Close() {
	if !atomic.CompareAndSwapInt32(&client.status, running, closed) {
		return
	}
	// stop new request
	close(client.pendingReqs)

	// wait stop process
	client.working.Wait()

	// clean
	_ = client.conn.Close()
	close(client.waitingReqs)
}

func (client *Client) handleWrite() {
	for req := range client.pendingReqs {
		client.doRequest(req)
	}
}

func (client *Client) doRequest(req *request) {
	if req == nil || len(req.args) == 0 {
		return
	}
	bytes := protocol.MakeMultiBulkReply(req.args).ToBytes()
	if _, err := client.conn.Write(bytes); err != nil {
		req.err = err
		req.waiting.Done()
		return
	}
	client.waitingReqs <- req
}

// Send sends a request to redis server
func (client *Client) Send(args [][]byte) redis.Reply {
	return client.SendWithTimeout(args, maxWait)
}

// SendCommand is a shortcut of Send for string arguments
func (client *Client) SendCommand(args ...string) redis.Reply {
	return client.Send(utils.ToCmdLine(args...))
}

// SendWithTimeout sends a request and waits at most timeout for the reply,
// blocking commands like BLPOP need a timeout longer than their own
func (client *Client) SendWithTimeout(args [][]byte, timeout time.Duration) redis.Reply {
	if atomic.LoadInt32(&client.status) != running {
		return protocol.MakeErrReply("client closed")
	}
	req := &request{
		args:    args,
		waiting: &wait.Wait{},
	}
	req.waiting.Add(1)
	client.working.Add(1)
	defer client.working.Done()
	client.pendingReqs <- req
	if req.waiting.WaitWithTimeout(timeout) {
		return protocol.MakeErrReply("server time out")
	}
	if req.err != nil {
		return protocol.MakeErrReply("request failed " + req.err.Error())
	}
	return req.reply
}

// finishRequest hands reply to the oldest waiting request
func (client *Client) finishRequest(reply redis.Reply) {
	request := <-client.waitingReqs
	if request == nil {
		return
	}
	request.reply = reply
	request.waiting.Done()
}

// failWaiting fails every request still waiting for a reply until Close
func (client *Client) failWaiting(err error) {
	for request := range client.waitingReqs {
		request.err = err
		request.waiting.Done()
	}
}

func (client *Client) handleRead() {
	// 回复按请求顺序到达
	ch := parser.ParseStream(client.conn)
	for payload := range ch {
		if payload.Err == nil {
			client.finishRequest(payload.Data)
			continue
		}
		if atomic.LoadInt32(&client.status) == closed {
			return
		}
		var perr *parser.ProtocolError
		if errors.As(payload.Err, &perr) {
			logger.Error("malformed reply: " + perr.Msg)
		} else if payload.Err != io.EOF {
			logger.Error("read reply: " + payload.Err.Error())
		}
		client.failWaiting(errConnLost)
		return
	}
	if atomic.LoadInt32(&client.status) != closed {
		client.failWaiting(errConnLost)
	}
}

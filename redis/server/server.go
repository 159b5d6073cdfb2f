package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/Tuanzi-bug/TuanRedis/redis/connection"
	database2 "github.com/Tuanzi-bug/TuanRedis/redis/database"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/database"
	"github.com/Tuanzi-bug/TuanRedis/redis/parser"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/hdt3213/godis/lib/logger"
	"github.com/hdt3213/godis/lib/sync/atomic"
)

// Handler implements tcp.Handler and serves as a redis server
type Handler struct {
	activeConn sync.Map // *client -> placeholder
	db         database.DB
	closing    atomic.Boolean // refusing new client and new request
}

var (
	unknownErrReplyBytes = []byte("-ERR unknown\r\n")
)

// MakeHandler creates a Handler instance backed by a standalone server
func MakeHandler() *Handler {
	return MakeHandlerWithDB(database2.NewStandaloneServer())
}

// MakeHandlerWithDB creates a Handler serving the given db
func MakeHandlerWithDB(db database.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) closeClient(client *connection.Connection) {
	_ = client.Close()
	h.db.AfterClientClose(client)
	h.activeConn.Delete(client)
}

// Handle receives and executes redis commands
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	if h.closing.Get() {
		// closing handler refuse new connection
		_ = conn.Close()
		return
	}
	// 创建一个新的连接
	client := connection.NewConn(conn)
	h.activeConn.Store(client, struct{}{}) // remember alive connection
	ch := parser.ParseStream(client)
	for payload := range ch {
		if payload.Err != nil {
			var perr *parser.ProtocolError
			if errors.As(payload.Err, &perr) {
				// 协议错误后无法定位下一帧，尽力回复后关闭连接
				_, _ = client.Write((&protocol.ProtocolErrReply{Msg: perr.Msg}).ToBytes())
				logger.Warn(fmt.Sprintf("protocol error from %s: %s", client.RemoteAddr(), perr.Msg))
			} else if payload.Err != io.EOF && !errors.Is(payload.Err, io.ErrUnexpectedEOF) && !errors.Is(payload.Err, net.ErrClosed) {
				logger.Warn(fmt.Sprintf("read from %s: %v", client.RemoteAddr(), payload.Err))
			}
			h.closeClient(client)
			logger.Info("connection closed: " + client.RemoteAddr())
			return
		}
		if payload.Data == nil {
			continue
		}
		r, ok := payload.Data.(*protocol.MultiBulkReply)
		if !ok {
			_, _ = client.Write(protocol.MakeErrReply("ERR require multi bulk protocol").ToBytes())
			continue
		}
		result := h.db.Exec(client, r.Args)
		if result != nil {
			_, _ = client.Write(result.ToBytes())
		} else {
			_, _ = client.Write(unknownErrReplyBytes)
		}
	}
}

// Close stops handler
func (h *Handler) Close() error {
	logger.Info("handler shutting down...")
	h.closing.Set(true)
	h.activeConn.Range(func(key, value interface{}) bool {
		client := key.(*connection.Connection)
		_ = client.Close()
		return true
	})
	return h.db.Close()
}

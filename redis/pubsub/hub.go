// Package pubsub delivers published messages to subscribed connections.
package pubsub

import (
	"fmt"
	"sync"

	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/hdt3213/godis/lib/logger"
)

var (
	subscribeBytes   = []byte("subscribe")
	unsubscribeBytes = []byte("unsubscribe")
	messageBytes     = []byte("message")
)

// Hub stores the subscribers of every channel
type Hub struct {
	mu   sync.Mutex
	subs map[string][]redis.Connection
}

// MakeHub creates a Hub
func MakeHub() *Hub {
	return &Hub{
		subs: make(map[string][]redis.Connection),
	}
}

func makeMsg(kind []byte, channel string, code int64) []byte {
	var channelReply redis.Reply = protocol.MakeBulkReply([]byte(channel))
	if channel == "" {
		channelReply = protocol.MakeNullBulkReply()
	}
	return protocol.MakeMultiRawReply([]redis.Reply{
		protocol.MakeBulkReply(kind),
		channelReply,
		protocol.MakeIntReply(code),
	}).ToBytes()
}

// Deliver writes an encoded frame to a subscriber
func (h *Hub) Deliver(c redis.Connection, payload []byte) {
	if _, err := c.Write(payload); err != nil {
		logger.Warn(fmt.Sprintf("deliver to %s failed: %v", c.RemoteAddr(), err))
	}
}

// 调用方需持有锁
func (h *Hub) subscribe0(c redis.Connection, channel string) bool {
	c.Subscribe(channel)
	for _, sub := range h.subs[channel] {
		if sub == c {
			return false
		}
	}
	h.subs[channel] = append(h.subs[channel], c)
	return true
}

// 调用方需持有锁
func (h *Hub) unsubscribe0(c redis.Connection, channel string) bool {
	c.UnSubscribe(channel)
	subs := h.subs[channel]
	for i, sub := range subs {
		if sub == c {
			subs = append(subs[:i], subs[i+1:]...)
			if len(subs) == 0 {
				delete(h.subs, channel)
			} else {
				h.subs[channel] = subs
			}
			return true
		}
	}
	return false
}

// Subscribe puts the connection into the given channels and acknowledges each of them
func (h *Hub) Subscribe(c redis.Connection, channels []string) redis.Reply {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, channel := range channels {
		h.subscribe0(c, channel)
		h.Deliver(c, makeMsg(subscribeBytes, channel, int64(c.SubsCount())))
	}
	return &protocol.NoReply{}
}

// UnSubscribe removes the connection from channels, or from all its channels when none is given
func (h *Hub) UnSubscribe(c redis.Connection, channels []string) redis.Reply {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(channels) == 0 {
		channels = c.GetChannels()
	}
	if len(channels) == 0 {
		h.Deliver(c, makeMsg(unsubscribeBytes, "", 0))
		return &protocol.NoReply{}
	}
	for _, channel := range channels {
		h.unsubscribe0(c, channel)
		h.Deliver(c, makeMsg(unsubscribeBytes, channel, int64(c.SubsCount())))
	}
	return &protocol.NoReply{}
}

// UnsubscribeAll drops every subscription of a closed connection without replying
func (h *Hub) UnsubscribeAll(c redis.Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, channel := range c.GetChannels() {
		h.unsubscribe0(c, channel)
	}
}

// Publish sends message to every subscriber of channel and returns their count
func (h *Hub) Publish(channel string, message []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.subs[channel]
	if len(subs) == 0 {
		return 0
	}
	payload := protocol.MakeMultiBulkReply([][]byte{
		messageBytes,
		[]byte(channel),
		message,
	}).ToBytes()
	for _, sub := range subs {
		h.Deliver(sub, payload)
	}
	return len(subs)
}

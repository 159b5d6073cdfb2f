// Package replication keeps the master side write feed: the replication offset,
// the attached replicas and their acknowledged offsets.
package replication

import (
	"fmt"
	"sync"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/hdt3213/godis/lib/logger"
	"github.com/hdt3213/godis/lib/sync/atomic"
	"github.com/hdt3213/godis/lib/sync/wait"
	"github.com/hdt3213/godis/lib/utils"
)

// payloads buffered per replica before it is dropped as lagging
const defaultOutboxSize = 1 << 14

var getAckCmd = utils.ToCmdLine("REPLCONF", "GETACK", "*")

type replica struct {
	conn redis.Connection
	// offset at attach time, earlier writes are covered by the full resync
	start int64
	ack   int64
	// drained by the replica's own sender goroutine
	outbox   chan []byte
	detached bool
}

// Feed is the ordered stream of propagated writes.
// OnWrite never blocks: every replica has a bounded outbox and a replica
// whose outbox is full is disconnected.
type Feed struct {
	replID string

	mu       sync.Mutex
	offset   int64
	replicas map[redis.Connection]*replica
	// closed and replaced whenever a replica acknowledges
	ackNotify  chan struct{}
	outboxSize int

	closing atomic.Boolean
	// running sender goroutines
	senders wait.Wait
}

// NewFeed creates a Feed
func NewFeed() *Feed {
	return newFeed(defaultOutboxSize)
}

func newFeed(outboxSize int) *Feed {
	return &Feed{
		replID:     utils.RandString(40),
		replicas:   make(map[redis.Connection]*replica),
		ackNotify:  make(chan struct{}),
		outboxSize: outboxSize,
	}
}

// ReplID returns the replication id announced in FULLRESYNC
func (f *Feed) ReplID() string {
	return f.replID
}

// OnWrite appends a successful write command to the feed
func (f *Feed) OnWrite(cmdLine [][]byte) {
	data := protocol.MakeMultiBulkReply(cmdLine).ToBytes()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closing.Get() {
		return
	}
	f.offset += int64(len(data))
	for conn, r := range f.replicas {
		select {
		case r.outbox <- data:
		default:
			logger.Warn(fmt.Sprintf("replica %s is lagging, disconnect it", conn.RemoteAddr()))
			f.detachLocked(r)
			go func(c redis.Connection) {
				_ = c.Close()
			}(conn)
		}
	}
}

// CurrentOffset returns the number of bytes propagated so far
func (f *Feed) CurrentOffset() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

// 调用方需持有锁
func (f *Feed) detachLocked(r *replica) {
	if r.detached {
		return
	}
	r.detached = true
	close(r.outbox)
	delete(f.replicas, r.conn)
}

func (f *Feed) sendLoop(r *replica) {
	defer f.senders.Done()
	failed := false
	for data := range r.outbox {
		if failed {
			continue
		}
		if _, err := r.conn.Write(data); err != nil {
			logger.Warn(fmt.Sprintf("propagate to replica %s failed: %v", r.conn.RemoteAddr(), err))
			failed = true
			f.RemoveReplica(r.conn)
		}
	}
}

// AddReplica attaches a connection at the current offset. preamble, the full resync
// reply, is written before any later write, by the replica's sender goroutine.
func (f *Feed) AddReplica(conn redis.Connection, preamble []byte) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closing.Get() {
		return f.offset
	}
	conn.SetReplica()
	r := &replica{
		conn:   conn,
		start:  f.offset,
		ack:    f.offset,
		outbox: make(chan []byte, f.outboxSize+1),
	}
	if len(preamble) > 0 {
		r.outbox <- preamble
	}
	f.replicas[conn] = r
	f.senders.Add(1)
	go f.sendLoop(r)
	logger.Info(fmt.Sprintf("replica %s attached at offset %d", conn.RemoteAddr(), f.offset))
	return f.offset
}

// RemoveReplica detaches a replica, it is a no-op for other connections
func (f *Feed) RemoveReplica(conn redis.Connection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.replicas[conn]; ok {
		f.detachLocked(r)
		logger.Info(fmt.Sprintf("replica %s detached", conn.RemoteAddr()))
	}
}

// ReplicaCount returns the number of attached replicas
func (f *Feed) ReplicaCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.replicas)
}

// Ack records the offset a replica reported with REPLCONF ACK.
// Replicas count bytes from their full resync, so offset is relative to the attach point.
func (f *Feed) Ack(conn redis.Connection, offset int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.replicas[conn]
	if !ok {
		return
	}
	if abs := r.start + offset; abs > r.ack {
		r.ack = abs
	}
	close(f.ackNotify)
	f.ackNotify = make(chan struct{})
}

// 调用方需持有锁
func (f *Feed) countAcked(target int64) int {
	count := 0
	for _, r := range f.replicas {
		if r.ack >= target {
			count++
		}
	}
	return count
}

// Wait blocks until numReplicas replicas acknowledged every write issued before the call,
// or timeout elapses (0 means forever). It returns the number of replicas in sync.
func (f *Feed) Wait(numReplicas int, timeout time.Duration, done <-chan struct{}) int {
	f.mu.Lock()
	target := f.offset
	acked := f.countAcked(target)
	if acked >= numReplicas || len(f.replicas) == 0 {
		f.mu.Unlock()
		return acked
	}
	notify := f.ackNotify
	f.mu.Unlock()

	f.OnWrite(getAckCmd)

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	for {
		select {
		case <-notify:
		case <-timer:
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.countAcked(target)
		case <-done:
			return 0
		}
		f.mu.Lock()
		acked = f.countAcked(target)
		notify = f.ackNotify
		f.mu.Unlock()
		if acked >= numReplicas {
			return acked
		}
	}
}

// Close detaches every replica after its buffered writes are sent
func (f *Feed) Close() error {
	f.mu.Lock()
	if f.closing.Get() {
		f.mu.Unlock()
		return nil
	}
	f.closing.Set(true)
	for _, r := range f.replicas {
		f.detachLocked(r)
	}
	f.mu.Unlock()
	f.senders.Wait()
	return nil
}

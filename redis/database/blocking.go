package database

import (
	"sync"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/datastruct/list"
	"github.com/Tuanzi-bug/TuanRedis/datastruct/stream"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/hdt3213/godis/lib/utils"
)

type waitKind int

const (
	waitListPop waitKind = iota
	waitStreamRead
)

type waitState int

const (
	stateWaiting waitState = iota
	stateWoken
	stateTimedOut
	stateCancelled
)

// blockedReply is returned by a blocking command that found no data.
// Outside a transaction the dispatcher turns it into a registration,
// inside EXEC it is answered as a timeout.
type blockedReply struct {
	kind  waitKind
	keys  []string
	after map[string]stream.ID
	count int
	// 0 means wait forever
	timeout time.Duration
}

// ToBytes marshal redis.Reply
func (r *blockedReply) ToBytes() []byte {
	return protocol.MakeNullArrayReply().ToBytes()
}

type waiter struct {
	*blockedReply
	conn  redis.Connection
	state waitState
	// receives exactly one reply
	result chan redis.Reply
}

// coordinator tracks suspended clients per key in arrival order
type coordinator struct {
	mu     sync.Mutex
	queues map[string][]*waiter
	byConn map[redis.Connection]*waiter
}

func makeCoordinator() *coordinator {
	return &coordinator{
		queues: make(map[string][]*waiter),
		byConn: make(map[redis.Connection]*waiter),
	}
}

func (co *coordinator) register(c redis.Connection, blocked *blockedReply) *waiter {
	co.mu.Lock()
	defer co.mu.Unlock()
	w := &waiter{
		blockedReply: blocked,
		conn:         c,
		state:        stateWaiting,
		result:       make(chan redis.Reply, 1),
	}
	for _, key := range w.keys {
		co.queues[key] = append(co.queues[key], w)
	}
	co.byConn[c] = w
	return w
}

// 调用方需持有锁
func (co *coordinator) detach(w *waiter) {
	for _, key := range w.keys {
		queue := co.queues[key]
		for i, other := range queue {
			if other == w {
				queue = append(queue[:i], queue[i+1:]...)
				break
			}
		}
		if len(queue) == 0 {
			delete(co.queues, key)
		} else {
			co.queues[key] = queue
		}
	}
	if co.byConn[w.conn] == w {
		delete(co.byConn, w.conn)
	}
}

// 调用方需持有锁
func (co *coordinator) resolveLocked(w *waiter, state waitState, reply redis.Reply) bool {
	if w.state != stateWaiting {
		return false
	}
	w.state = state
	co.detach(w)
	w.result <- reply
	return true
}

// resolve moves w out of Waiting, it returns false when another outcome already happened
func (co *coordinator) resolve(w *waiter, state waitState, reply redis.Reply) bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	return co.resolveLocked(w, state, reply)
}

// wake offers data of key to its waiters, oldest first.
// serve runs under the coordinator lock and returns nil when it has nothing for w.
func (co *coordinator) wake(key string, serve func(w *waiter) redis.Reply) int {
	co.mu.Lock()
	defer co.mu.Unlock()
	queue := co.queues[key]
	if len(queue) == 0 {
		return 0
	}
	candidates := make([]*waiter, len(queue))
	copy(candidates, queue)
	woken := 0
	for _, w := range candidates {
		if w.state != stateWaiting {
			continue
		}
		reply := serve(w)
		if reply == nil {
			continue
		}
		co.resolveLocked(w, stateWoken, reply)
		woken++
	}
	return woken
}

// cancelConn drops the registration of a closed connection
func (co *coordinator) cancelConn(c redis.Connection) bool {
	co.mu.Lock()
	defer co.mu.Unlock()
	w, ok := co.byConn[c]
	if !ok {
		return false
	}
	return co.resolveLocked(w, stateCancelled, &protocol.NoReply{})
}

func (co *coordinator) cancelAll() {
	co.mu.Lock()
	defer co.mu.Unlock()
	for _, w := range co.byConn {
		co.resolveLocked(w, stateCancelled, &protocol.NoReply{})
	}
}

// waiting returns the number of registrations on key
func (co *coordinator) waiting(key string) int {
	co.mu.Lock()
	defer co.mu.Unlock()
	return len(co.queues[key])
}

// size returns the number of suspended connections
func (co *coordinator) size() int {
	co.mu.Lock()
	defer co.mu.Unlock()
	return len(co.byConn)
}

// await suspends the calling connection until w is woken, times out or its connection closes
func (db *DB) await(w *waiter) redis.Reply {
	var timeout <-chan time.Time
	if w.timeout > 0 {
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case reply := <-w.result:
		return reply
	case <-timeout:
		db.blocking.resolve(w, stateTimedOut, protocol.MakeNullArrayReply())
	case <-w.conn.Done():
		db.blocking.resolve(w, stateCancelled, &protocol.NoReply{})
	}
	// 若已被唤醒，这里拿到的是唤醒结果
	return <-w.result
}

// serveListWaiters hands elements of l to clients blocked on key, mu must be held
func (db *DB) serveListWaiters(key string, l *list.List) {
	db.blocking.wake(key, func(w *waiter) redis.Reply {
		if w.kind != waitListPop || l.Len() == 0 {
			return nil
		}
		val, _ := l.PopFront()
		db.propagate(utils.ToCmdLine3("lpop", []byte(key)))
		return protocol.MakeMultiBulkReply([][]byte{[]byte(key), val})
	})
	if l.Len() == 0 {
		db.removeEntity(key)
	}
}

// serveStreamWaiters sends new entries of s to clients blocked on key, mu must be held
func (db *DB) serveStreamWaiters(key string, s *stream.Stream) {
	db.blocking.wake(key, func(w *waiter) redis.Reply {
		if w.kind != waitStreamRead {
			return nil
		}
		entries := s.After(w.after[key], w.count)
		if len(entries) == 0 {
			return nil
		}
		return makeStreamReadReply([]streamReadResult{{key: key, entries: entries}})
	})
}

package database

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/datastruct/dict"
	"github.com/Tuanzi-bug/TuanRedis/datastruct/list"
	"github.com/Tuanzi-bug/TuanRedis/datastruct/sortedset"
	"github.com/Tuanzi-bug/TuanRedis/datastruct/stream"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/database"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/persist"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/Tuanzi-bug/TuanRedis/redis/pubsub"
	"github.com/Tuanzi-bug/TuanRedis/redis/replication"
	"github.com/hdt3213/godis/lib/logger"
	"github.com/hdt3213/godis/lib/sync/atomic"
	"github.com/hdt3213/godis/lib/utils"
)

const (
	defaultSampleInterval = 100 * time.Millisecond
	expireSampleSize      = 20
	expireSampleRounds    = 4
)

// DB stores data and execute user's commands.
// Every key access happens with mu held, the blocking coordinator lock is only taken inside mu.
type DB struct {
	mu sync.Mutex
	// key -> *database.DataEntity
	data dict.Dict
	// key -> expire time
	ttlMap map[string]time.Time

	blocking    *coordinator
	feed        *replication.Feed
	hub         *pubsub.Hub
	snapshotter persist.Snapshotter

	startedAt time.Time
	// writes since the last snapshot
	dirty    int64
	lastSave time.Time

	stopSampler chan struct{}
	samplerDone chan struct{}
	closed      atomic.Boolean
}

// ExecFunc is interface for command executor
// args don't include cmd line
type ExecFunc func(db *DB, c redis.Connection, args [][]byte) redis.Reply

// CmdLine is alias for [][]byte, represents a command line
type CmdLine = [][]byte

// Options holds the collaborators of a DB, nil feed and hub are created on demand
type Options struct {
	Feed        *replication.Feed
	Hub         *pubsub.Hub
	Snapshotter persist.Snapshotter
	// interval of the background expiry sampler
	SampleInterval time.Duration
}

// MakeDB creates a DB and starts its expiry sampler
func MakeDB(opts Options) *DB {
	if opts.Feed == nil {
		opts.Feed = replication.NewFeed()
	}
	if opts.Hub == nil {
		opts.Hub = pubsub.MakeHub()
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = defaultSampleInterval
	}
	db := &DB{
		data:        dict.MakeArtDict(),
		ttlMap:      make(map[string]time.Time),
		blocking:    makeCoordinator(),
		feed:        opts.Feed,
		hub:         opts.Hub,
		snapshotter: opts.Snapshotter,
		startedAt:   time.Now(),
		lastSave:    time.Now(),
		stopSampler: make(chan struct{}),
		samplerDone: make(chan struct{}),
	}
	go db.sampleLoop(opts.SampleInterval)
	return db
}

// Exec executes a command line on behalf of the client
func (db *DB) Exec(c redis.Connection, cmdLine [][]byte) (result redis.Reply) {
	defer func() {
		if err := recover(); err != nil {
			logger.Warn(fmt.Sprintf("error occurs: %v\n%s", err, string(debug.Stack())))
			result = &protocol.UnknownErrReply{}
		}
	}()
	if len(cmdLine) == 0 {
		return protocol.MakeErrReply("ERR empty command")
	}
	name := string(cmdLine[0])
	kind, ok := lookupCommand(name)
	// 事务中除 MULTI/EXEC/DISCARD 外的命令一律入队
	if c.InMultiState() && !(ok && kind.isTxControl()) {
		c.EnqueueCmd(cmdLine)
		return protocol.MakeQueuedReply()
	}
	if !ok {
		return protocol.MakeUnknownCommandErrReply(name)
	}
	cmd := commandTable[kind]
	if !validateArity(cmd.arity, cmdLine) {
		return protocol.MakeArgNumErrReply(cmd.name)
	}
	if c.SubsCount() > 0 && cmd.flags&flagPubSub == 0 {
		return protocol.MakeErrReply("ERR Can't execute '" + cmd.name +
			"': only (P|S)SUBSCRIBE / (P|S)UNSUBSCRIBE / PING / QUIT / RESET are allowed in this context")
	}
	if cmd.flags&flagNoLock > 0 {
		return cmd.executor(db, c, cmdLine[1:])
	}
	reply, w := db.execLocked(c, cmd, cmdLine[1:])
	if w != nil {
		return db.await(w)
	}
	return reply
}

// execLocked runs cmd with the lock held. A blocking command that found no data is
// registered before the lock is released so no push can slip in between.
func (db *DB) execLocked(c redis.Connection, cmd *command, args [][]byte) (redis.Reply, *waiter) {
	db.mu.Lock()
	defer db.mu.Unlock()
	reply := cmd.executor(db, c, args)
	if blocked, ok := reply.(*blockedReply); ok {
		return nil, db.blocking.register(c, blocked)
	}
	return reply, nil
}

// validateArity checks argument count, arity < 0 means len(args) >= -arity
func validateArity(arity int, cmdArgs [][]byte) bool {
	argNum := len(cmdArgs)
	if arity >= 0 {
		return argNum == arity
	}
	return argNum >= -arity
}

// AfterClientClose releases everything the connection holds
func (db *DB) AfterClientClose(c redis.Connection) {
	db.blocking.cancelConn(c)
	db.hub.UnsubscribeAll(c)
	db.feed.RemoveReplica(c)
	c.SetMultiState(false)
}

// Close stops background work, saves unsaved changes and closes the feed
func (db *DB) Close() error {
	if db.closed.Get() {
		return nil
	}
	db.closed.Set(true)
	close(db.stopSampler)
	<-db.samplerDone

	db.mu.Lock()
	db.blocking.cancelAll()
	if db.snapshotter != nil && db.dirty > 0 {
		if err := db.snapshotter.Save(db.snapshot()); err != nil {
			logger.Error(fmt.Sprintf("save snapshot on close failed: %v", err))
		} else {
			logger.Info("snapshot saved to " + db.snapshotter.Path())
		}
	}
	db.mu.Unlock()
	return db.feed.Close()
}

/* ---- data Access ----- */

// propagate emits a successful write to the replication feed
func (db *DB) propagate(cmdLine CmdLine) {
	db.dirty++
	db.feed.OnWrite(cmdLine)
}

func (db *DB) isExpired(key string, now time.Time) bool {
	expireAt, ok := db.ttlMap[key]
	return ok && !now.Before(expireAt)
}

// getEntity returns DataEntity bind to given key, an expired key is removed first
func (db *DB) getEntity(key string) (*database.DataEntity, bool) {
	raw, ok := db.data.Get(key)
	if !ok {
		return nil, false
	}
	if db.isExpired(key, time.Now()) {
		db.expireKey(key)
		return nil, false
	}
	entity, _ := raw.(*database.DataEntity)
	return entity, true
}

// putEntity a DataEntity into DB, the ttl of key is left untouched
func (db *DB) putEntity(key string, entity *database.DataEntity) int {
	return db.data.Put(key, entity)
}

// removeEntity removes the given key and its ttl
func (db *DB) removeEntity(key string) {
	db.data.Remove(key)
	delete(db.ttlMap, key)
}

// removes removes existing keys and returns how many were deleted
func (db *DB) removes(keys ...string) (deleted int) {
	for _, key := range keys {
		if _, exists := db.getEntity(key); exists {
			db.removeEntity(key)
			deleted++
		}
	}
	return deleted
}

func (db *DB) expireKey(key string) {
	db.removeEntity(key)
	db.propagate(utils.ToCmdLine("DEL", key))
}

// expire sets the absolute expire time of key
func (db *DB) expire(key string, expireAt time.Time) {
	db.ttlMap[key] = expireAt
}

// persist removes the expire time of key
func (db *DB) persist(key string) {
	delete(db.ttlMap, key)
}

func typeOf(entity *database.DataEntity) database.DataType {
	switch entity.Data.(type) {
	case []byte:
		return database.TypeString
	case *list.List:
		return database.TypeList
	case *sortedset.SortedSet:
		return database.TypeZSet
	case *stream.Stream:
		return database.TypeStream
	}
	return ""
}

/* ---- expiry sampler ----- */

func (db *DB) sampleLoop(interval time.Duration) {
	defer close(db.samplerDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			db.sampleExpired()
		case <-db.stopSampler:
			return
		}
	}
}

// sampleExpired checks a random sample of keys with ttl and removes the expired ones,
// sampling again while more than a quarter of the sample was expired
func (db *DB) sampleExpired() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	removed := 0
	for round := 0; round < expireSampleRounds; round++ {
		now := time.Now()
		checked := 0
		var victims []string
		for key := range db.ttlMap {
			if checked >= expireSampleSize {
				break
			}
			checked++
			if db.isExpired(key, now) {
				victims = append(victims, key)
			}
		}
		for _, key := range victims {
			db.expireKey(key)
		}
		removed += len(victims)
		if checked == 0 || len(victims)*4 <= checked {
			break
		}
	}
	return removed
}

/* ---- snapshot ----- */

// snapshot exports every live key, mu must be held
func (db *DB) snapshot() []database.Record {
	now := time.Now()
	records := make([]database.Record, 0, db.data.Len())
	db.data.ForEach(func(key string, val interface{}) bool {
		if db.isExpired(key, now) {
			return true
		}
		entity := val.(*database.DataEntity)
		record := database.Record{Key: key, Type: typeOf(entity)}
		if expireAt, ok := db.ttlMap[key]; ok {
			at := expireAt
			record.ExpireAt = &at
		}
		switch payload := entity.Data.(type) {
		case []byte:
			record.Value = payload
		case *list.List:
			record.Value = payload.Values()
		case *sortedset.SortedSet:
			record.Value = payload.Range(0, payload.Len())
		case *stream.Stream:
			entries := make([]*stream.Entry, 0, payload.Len())
			payload.ForEach(func(entry *stream.Entry) bool {
				entries = append(entries, entry)
				return true
			})
			record.Value = entries
		}
		records = append(records, record)
		return true
	})
	return records
}

// Snapshot exports every live key
func (db *DB) Snapshot() []database.Record {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.snapshot()
}

// recordPayload rebuilds the in-memory payload of a snapshot record
func recordPayload(record database.Record) (interface{}, bool) {
	switch record.Type {
	case database.TypeString:
		value, ok := record.Value.([]byte)
		return value, ok
	case database.TypeList:
		values, ok := record.Value.([][]byte)
		if !ok {
			return nil, false
		}
		return list.Make(values...), true
	case database.TypeZSet:
		elements, ok := record.Value.([]*sortedset.Element)
		if !ok {
			return nil, false
		}
		ss := sortedset.Make()
		for _, element := range elements {
			if element != nil {
				ss.Add(element.Member, element.Score)
			}
		}
		return ss, true
	case database.TypeStream:
		entries, ok := record.Value.([]*stream.Entry)
		if !ok {
			return nil, false
		}
		s := stream.Make()
		for _, entry := range entries {
			if entry == nil {
				continue
			}
			if err := s.Append(entry); err != nil {
				logger.Warn(fmt.Sprintf("load stream %s: %v", record.Key, err))
			}
		}
		return s, true
	}
	return nil, false
}

// LoadEntries bulk loads records before serving traffic.
// Expired records are skipped, malformed ones are logged and skipped.
func (db *DB) LoadEntries(records []database.Record) {
	db.mu.Lock()
	defer db.mu.Unlock()
	now := time.Now()
	for _, record := range records {
		if record.ExpireAt != nil && !record.ExpireAt.After(now) {
			continue
		}
		payload, ok := recordPayload(record)
		if !ok {
			logger.Warn(fmt.Sprintf("load skips malformed key %s of type %q", record.Key, record.Type))
			continue
		}
		db.putEntity(record.Key, &database.DataEntity{Data: payload})
		if record.ExpireAt != nil {
			db.expire(record.Key, *record.ExpireAt)
		} else {
			db.persist(record.Key)
		}
	}
}

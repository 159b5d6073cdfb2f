package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Tuanzi-bug/TuanRedis/redis/config"
	"github.com/Tuanzi-bug/TuanRedis/redis/interface/redis"
	"github.com/Tuanzi-bug/TuanRedis/redis/persist"
	"github.com/Tuanzi-bug/TuanRedis/redis/protocol"
	"github.com/Tuanzi-bug/TuanRedis/redis/pubsub"
	"github.com/Tuanzi-bug/TuanRedis/redis/replication"
	"github.com/Tuanzi-bug/TuanRedis/utils"
	"github.com/gobwas/glob"
	"github.com/hdt3213/godis/lib/logger"
)

const redisVersion = "7.2.0"

// NewStandaloneServer creates a standalone redis server from config.Properties and loads its snapshot
func NewStandaloneServer() *DB {
	props := config.Properties
	snapshotter, err := persist.NewSnapshotter(props.SnapshotBackend, props.Dir, props.DBFilename)
	if err != nil {
		logger.Error(fmt.Sprintf("snapshot disabled: %v", err))
		snapshotter = nil
	}
	db := MakeDB(Options{
		Feed:           replication.NewFeed(),
		Hub:            pubsub.MakeHub(),
		Snapshotter:    snapshotter,
		SampleInterval: time.Duration(props.ExpireSampleMs) * time.Millisecond,
	})
	if snapshotter != nil {
		records, err := snapshotter.Load()
		if err != nil {
			logger.Error(fmt.Sprintf("load snapshot %s failed: %v", snapshotter.Path(), err))
		} else if len(records) > 0 {
			db.LoadEntries(records)
			logger.Info(fmt.Sprintf("loaded %d keys from %s", len(records), snapshotter.Path()))
		}
	}
	return db
}

type infoSection struct {
	name   string
	fields func(db *DB) []string
}

var infoSections = []infoSection{
	{name: "server", fields: (*DB).infoServer},
	{name: "memory", fields: (*DB).infoMemory},
	{name: "persistence", fields: (*DB).infoPersistence},
	{name: "replication", fields: (*DB).infoReplication},
	{name: "keyspace", fields: (*DB).infoKeyspace},
}

func (db *DB) infoServer() []string {
	return []string{
		"redis_version:" + redisVersion,
		"redis_mode:standalone",
		"tcp_port:" + strconv.Itoa(config.Properties.Port),
		"uptime_in_seconds:" + strconv.FormatInt(int64(time.Since(db.startedAt).Seconds()), 10),
	}
}

func (db *DB) infoMemory() []string {
	stats, err := utils.ReadMemoryStats()
	if err != nil {
		logger.Warn(fmt.Sprintf("read memory stats: %v", err))
		return nil
	}
	return []string{
		"used_memory_rss:" + strconv.FormatUint(stats.UsedMemoryRSS, 10),
		"total_system_memory:" + strconv.FormatUint(stats.TotalSystemMemory, 10),
	}
}

func (db *DB) infoPersistence() []string {
	fields := []string{
		"rdb_changes_since_last_save:" + strconv.FormatInt(db.dirty, 10),
		"rdb_last_save_time:" + strconv.FormatInt(db.lastSave.Unix(), 10),
		"snapshot_backend:" + config.Properties.SnapshotBackend,
	}
	if free, err := utils.AvailableDiskSize(config.Properties.Dir); err == nil {
		fields = append(fields, "snapshot_dir_free_bytes:"+strconv.FormatUint(free, 10))
	}
	return fields
}

func (db *DB) infoReplication() []string {
	return []string{
		"role:master",
		"connected_slaves:" + strconv.Itoa(db.feed.ReplicaCount()),
		"master_replid:" + db.feed.ReplID(),
		"master_repl_offset:" + strconv.FormatInt(db.feed.CurrentOffset(), 10),
	}
}

func (db *DB) infoKeyspace() []string {
	if db.data.Len() == 0 {
		return nil
	}
	return []string{
		fmt.Sprintf("db0:keys=%d,expires=%d", db.data.Len(), len(db.ttlMap)),
	}
}

// execInfo returns server information, INFO [section ...]
func execInfo(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	wanted := make(map[string]bool)
	for _, arg := range args {
		wanted[strings.ToLower(string(arg))] = true
	}
	all := len(wanted) == 0 || wanted["all"] || wanted["everything"] || wanted["default"]
	var sb strings.Builder
	for _, section := range infoSections {
		if !all && !wanted[section.name] {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\r\n")
		}
		sb.WriteString("# " + strings.ToUpper(section.name[:1]) + section.name[1:] + "\r\n")
		for _, field := range section.fields(db) {
			sb.WriteString(field + "\r\n")
		}
	}
	return protocol.MakeBulkReply([]byte(sb.String()))
}

// execConfig supports CONFIG GET parameter [parameter ...], parameters may be glob patterns
func execConfig(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	sub := strings.ToLower(string(args[0]))
	if sub != "get" {
		return protocol.MakeErrReply("ERR unknown subcommand '" + string(args[0]) + "'. Try CONFIG HELP.")
	}
	if len(args) < 2 {
		return protocol.MakeArgNumErrReply("config|get")
	}
	props := config.Properties
	result := make([][]byte, 0)
	seen := make(map[string]bool)
	for _, arg := range args[1:] {
		pattern := strings.ToLower(string(arg))
		g, err := glob.Compile(pattern)
		if err != nil {
			continue
		}
		for _, name := range props.Names() {
			if seen[name] || !g.Match(name) {
				continue
			}
			value, _ := props.Get(name)
			seen[name] = true
			result = append(result, []byte(name), []byte(value))
		}
	}
	return protocol.MakeMultiBulkReply(result)
}

// execSave writes a snapshot synchronously
func execSave(db *DB, c redis.Connection, args [][]byte) redis.Reply {
	if db.snapshotter == nil {
		return protocol.MakeErrReply("ERR snapshot is disabled")
	}
	if err := db.snapshotter.Save(db.snapshot()); err != nil {
		logger.Error(fmt.Sprintf("save snapshot failed: %v", err))
		return protocol.MakeErrReply("ERR " + err.Error())
	}
	db.dirty = 0
	db.lastSave = time.Now()
	logger.Info("snapshot saved to " + db.snapshotter.Path())
	return protocol.MakeOkReply()
}

func init() {
	registerCommand(cmdInfo, "Info", execInfo, -1, 0)
	registerCommand(cmdConfig, "Config", execConfig, -2, 0)
	registerCommand(cmdSave, "Save", execSave, 1, 0)
}

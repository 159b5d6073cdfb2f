package database

import "strings"

// CommandKind enumerates the supported commands
type CommandKind int

const (
	cmdPing CommandKind = iota
	cmdEcho
	cmdSet
	cmdGet
	cmdIncr
	cmdDel
	cmdExists
	cmdType
	cmdKeys
	cmdDBSize
	cmdRPush
	cmdLPush
	cmdLPop
	cmdLRange
	cmdLLen
	cmdBLPop
	cmdZAdd
	cmdZRank
	cmdZRange
	cmdZCard
	cmdZScore
	cmdZRem
	cmdXAdd
	cmdXRange
	cmdXLen
	cmdXRead
	cmdMulti
	cmdExec
	cmdDiscard
	cmdInfo
	cmdConfig
	cmdSave
	cmdWait
	cmdReplConf
	cmdPSync
	cmdSubscribe
	cmdUnsubscribe
	cmdPublish

	commandCount
)

// 命令标记
const (
	// flagWrite marks commands that may modify the keyspace
	flagWrite = 1 << iota
	// flagBlocking marks commands that may suspend the connection
	flagBlocking
	// flagNoLock commands run without the db lock and must never take it
	flagNoLock
	// flagNoTx commands are rejected inside MULTI
	flagNoTx
	// flagPubSub commands are allowed while the connection subscribes to channels
	flagPubSub
)

type command struct {
	name     string
	executor ExecFunc
	// arity means allowed number of cmdArgs, arity < 0 means len(args) >= -arity.
	// for example: the arity of `get` is 2, `mget` is -2
	arity int
	flags int
}

var (
	commandTable [commandCount]*command
	commandIndex = make(map[string]CommandKind)
)

func registerCommand(kind CommandKind, name string, executor ExecFunc, arity int, flags int) {
	name = strings.ToLower(name)
	commandTable[kind] = &command{
		name:     name,
		executor: executor,
		arity:    arity,
		flags:    flags,
	}
	commandIndex[name] = kind
}

// lookupCommand finds the kind of a command name, case-insensitive
func lookupCommand(name string) (CommandKind, bool) {
	kind, ok := commandIndex[strings.ToLower(name)]
	return kind, ok
}

func (k CommandKind) isTxControl() bool {
	return k == cmdMulti || k == cmdExec || k == cmdDiscard
}

// Name returns the lower case command name of k
func (k CommandKind) Name() string {
	if k < 0 || k >= commandCount || commandTable[k] == nil {
		return ""
	}
	return commandTable[k].name
}

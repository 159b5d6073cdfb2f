package redis

// Connection represents a connection with redis client
type Connection interface {
	Write([]byte) (int, error)
	Close() error
	RemoteAddr() string
	Name() string
	// Done is closed once the underlying socket is closed or failed
	Done() <-chan struct{}

	// used for pub/sub
	Subscribe(channel string)
	UnSubscribe(channel string)
	SubsCount() int
	GetChannels() []string

	// used for `Multi` command
	InMultiState() bool
	SetMultiState(bool)
	GetQueuedCmdLine() [][][]byte
	EnqueueCmd([][]byte)
	ClearQueuedCmds()

	// used for replication
	SetReplica()
	IsReplica() bool
}

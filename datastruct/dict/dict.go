package dict

// Consumer is used to traversal dict, if it returns false the traversal will be broken
type Consumer func(key string, val interface{}) bool

// Dict is interface of a key-value data structure
type Dict interface {
	Get(key string) (val interface{}, exists bool)
	Len() int
	Put(key string, val interface{}) (result int)
	PutIfAbsent(key string, val interface{}) (result int)
	Remove(key string) (val interface{}, result int)
	ForEach(consumer Consumer)
	ForEachPrefix(prefix string, consumer Consumer)
	Keys() []string
	Clear()
}

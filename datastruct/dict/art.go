package dict

import (
	goart "github.com/plar/go-adaptive-radix-tree"
)

// ArtDict is a Dict backed by an adaptive radix tree, keys are visited in lexicographic order.
// It is not safe for concurrent use, the owner serializes access.
type ArtDict struct {
	tree goart.Tree
}

// MakeArtDict makes a new ArtDict
func MakeArtDict() *ArtDict {
	return &ArtDict{
		tree: goart.New(),
	}
}

// Get returns the binding value and whether the key is exist
func (d *ArtDict) Get(key string) (val interface{}, exists bool) {
	value, found := d.tree.Search(goart.Key(key))
	if !found {
		return nil, false
	}
	return value, true
}

// Len returns the number of dict
func (d *ArtDict) Len() int {
	return d.tree.Size()
}

// Put puts key value into dict and returns the number of new inserted key-value
func (d *ArtDict) Put(key string, val interface{}) (result int) {
	_, updated := d.tree.Insert(goart.Key(key), val)
	if updated {
		return 0
	}
	return 1
}

// PutIfAbsent puts value if the key is not exists and returns the number of updated key-value
func (d *ArtDict) PutIfAbsent(key string, val interface{}) (result int) {
	if _, found := d.tree.Search(goart.Key(key)); found {
		return 0
	}
	d.tree.Insert(goart.Key(key), val)
	return 1
}

// Remove removes the key and return the number of deleted key-value
func (d *ArtDict) Remove(key string) (val interface{}, result int) {
	oldValue, deleted := d.tree.Delete(goart.Key(key))
	if !deleted {
		return nil, 0
	}
	return oldValue, 1
}

// ForEach traversal the dict in key order
func (d *ArtDict) ForEach(consumer Consumer) {
	d.tree.ForEach(func(node goart.Node) bool {
		return consumer(string(node.Key()), node.Value())
	})
}

// ForEachPrefix traversal the keys starting with prefix in key order
func (d *ArtDict) ForEachPrefix(prefix string, consumer Consumer) {
	if prefix == "" {
		d.ForEach(consumer)
		return
	}
	d.tree.ForEachPrefix(goart.Key(prefix), func(node goart.Node) bool {
		if node.Kind() != goart.Leaf {
			return true
		}
		return consumer(string(node.Key()), node.Value())
	})
}

// Keys returns all keys in dict
func (d *ArtDict) Keys() []string {
	keys := make([]string, 0, d.tree.Size())
	d.ForEach(func(key string, val interface{}) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Clear removes all keys in dict
func (d *ArtDict) Clear() {
	d.tree = goart.New()
}

// # internal/model/symbolindex.go
package model

import "sort"

// SymbolIndex maps qualified names to nodes without discarding duplicates:
// a shadowed object stays retrievable behind the one that shadows it. The
// last element of each entry queue is the visible object.
type SymbolIndex struct {
	entries map[string][]Node
}

func NewSymbolIndex() *SymbolIndex {
	return &SymbolIndex{entries: make(map[string][]Node)}
}

// Add registers a node under key. With shadow true the node becomes the
// visible entry; otherwise it is filed behind the current visible one.
// Re-adding a node that is already visible is a no-op.
func (ix *SymbolIndex) Add(key string, n Node, shadow bool) {
	queue := ix.entries[key]
	if len(queue) == 0 {
		ix.entries[key] = []Node{n}
		return
	}
	if queue[len(queue)-1] == n {
		return
	}
	for i, existing := range queue {
		if existing == n {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if shadow {
		queue = append(queue, n)
	} else {
		queue = append(queue[:len(queue)-1], n, queue[len(queue)-1])
	}
	ix.entries[key] = queue
}

// Get returns the visible node for key, or nil.
func (ix *SymbolIndex) Get(key string) Node {
	queue := ix.entries[key]
	if len(queue) == 0 {
		return nil
	}
	return queue[len(queue)-1]
}

// GetAll returns every node registered under key, shadowed first.
func (ix *SymbolIndex) GetAll(key string) []Node {
	return ix.entries[key]
}

// Dup returns the shadowed nodes for key, oldest first.
func (ix *SymbolIndex) Dup(key string) []Node {
	queue := ix.entries[key]
	if len(queue) < 2 {
		return nil
	}
	return queue[:len(queue)-1]
}

// Promote makes n the visible entry for key. Used by the resolver so a
// property getter is not shadowed by its setter or deleter.
func (ix *SymbolIndex) Promote(key string, n Node) {
	ix.Add(key, n, true)
}

// Remove drops one node from the entry queue for key.
func (ix *SymbolIndex) Remove(key string, n Node) {
	queue := ix.entries[key]
	for i, existing := range queue {
		if existing == n {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		delete(ix.entries, key)
		return
	}
	ix.entries[key] = queue
}

// Len counts distinct keys.
func (ix *SymbolIndex) Len() int { return len(ix.entries) }

// Keys returns all keys in sorted order, so callers iterating the index
// (persistence, reports) stay deterministic.
func (ix *SymbolIndex) Keys() []string {
	keys := make([]string, 0, len(ix.entries))
	for k := range ix.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

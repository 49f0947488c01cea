// # internal/mro/lookup.go
package mro

import "pyspect/internal/model"

type memberKey struct {
	cls  *model.Class
	name string
}

// Lookup answers member lookups along linearizations, with a small memo
// since docstring cross-references tend to hit the same few attributes.
type Lookup struct {
	lin  *Linearizer
	memo map[memberKey]model.Node
}

func NewLookup(lin *Linearizer) *Lookup {
	return &Lookup{lin: lin, memo: map[memberKey]model.Node{}}
}

// Find returns the defining node of name along c's linearization, starting
// with c's own members. Opaque entries (external or unresolved bases) are
// skipped: nothing is known about their attributes. Nil when not found.
func (l *Lookup) Find(c *model.Class, name string) model.Node {
	k := memberKey{cls: c, name: name}
	if hit, ok := l.memo[k]; ok {
		return hit
	}
	var found model.Node
	for _, entry := range l.lin.Linearize(c) {
		if entry.Class == nil {
			continue
		}
		if member := entry.Class.Member(name); member != nil {
			found = member
			break
		}
	}
	l.memo[k] = found
	return found
}

// FindInherited is Find restricted to strict ancestors: c's own members are
// skipped.
func (l *Lookup) FindInherited(c *model.Class, name string) model.Node {
	for _, entry := range l.lin.Linearize(c) {
		if entry.Class == nil || entry.Class == c {
			continue
		}
		if member := entry.Class.Member(name); member != nil {
			return member
		}
	}
	return nil
}

// # internal/mro/c3.go
// Package mro linearizes class ancestries with the C3 algorithm and answers
// inherited-member lookups along the computed order.
package mro

import (
	"fmt"

	"pyspect/internal/model"
)

// entryKey gives MRO entries a comparable identity: resolved entries by
// class pointer, opaque entries by their dotted or raw text.
type entryKey struct {
	cls *model.Class
	ext string
	raw string
}

func keyOf(e model.MROEntry) entryKey {
	return entryKey{cls: e.Class, ext: e.External, raw: e.Raw}
}

type Linearizer struct {
	root *model.TreeRoot

	progress map[*model.Class]bool
}

func New(root *model.TreeRoot) *Linearizer {
	return &Linearizer{
		root:     root,
		progress: map[*model.Class]bool{},
	}
}

// Run linearizes every class in the tree. Results are cached on the class
// nodes; hierarchy problems degrade to a declared-order fallback with a
// diagnostic, never an aborted load.
func (l *Linearizer) Run() {
	for m := range l.root.AllModules() {
		for _, member := range m.Members() {
			model.Walk(member, model.VisitFunc(func(n model.Node) {
				if c, ok := n.(*model.Class); ok {
					l.Linearize(c)
				}
			}))
		}
	}
}

// Linearize returns the C3 linearization of c, starting with c itself.
// Unresolved and external bases participate as opaque terminal entries.
func (l *Linearizer) Linearize(c *model.Class) []model.MROEntry {
	if c.Linearization != nil {
		return c.Linearization
	}
	if l.progress[c] {
		// Inheritance cycle; the caller degrades to declared order.
		c.Warn(model.DiagInconsistentHierarchy,
			fmt.Sprintf("inheritance cycle through %s", c.QualifiedName()))
		return []model.MROEntry{{Class: c}}
	}
	l.progress[c] = true
	defer delete(l.progress, c)

	var sequences [][]model.MROEntry
	var directBases []model.MROEntry
	for _, ref := range c.Bases {
		entry := baseEntry(ref)
		directBases = append(directBases, entry)
		if entry.Class != nil {
			sequences = append(sequences, l.Linearize(entry.Class))
		} else {
			sequences = append(sequences, []model.MROEntry{entry})
		}
	}
	sequences = append(sequences, directBases)

	merged, ok := merge(sequences)
	if !ok {
		c.Warn(model.DiagInconsistentHierarchy,
			fmt.Sprintf("cannot linearize bases of %s consistently; falling back to declared order", c.QualifiedName()))
		merged = declaredOrder(sequences)
	}
	c.Linearization = append([]model.MROEntry{{Class: c}}, merged...)
	return c.Linearization
}

// baseEntry maps a base slot to its MRO entry form.
func baseEntry(ref *model.Ref) model.MROEntry {
	switch ref.State() {
	case model.RefResolved:
		if cls, ok := ref.Target().(*model.Class); ok {
			return model.MROEntry{Class: cls}
		}
		// Resolved to something that is not a class (an alias variable,
		// a function result); keep the dotted name opaque.
		return model.MROEntry{Raw: ref.TargetName()}
	case model.RefExternal:
		return model.MROEntry{External: ref.External()}
	default:
		return model.MROEntry{Raw: ref.Raw()}
	}
}

// merge is the C3 merge: repeatedly take the first head that appears in no
// sequence tail. Reports false when no valid head remains.
func merge(sequences [][]model.MROEntry) ([]model.MROEntry, bool) {
	work := make([][]model.MROEntry, len(sequences))
	copy(work, sequences)

	var out []model.MROEntry
	for {
		done := true
		for _, seq := range work {
			if len(seq) > 0 {
				done = false
				break
			}
		}
		if done {
			return out, true
		}

		var head *model.MROEntry
		for _, seq := range work {
			if len(seq) == 0 {
				continue
			}
			candidate := seq[0]
			if inAnyTail(work, keyOf(candidate)) {
				continue
			}
			head = &candidate
			break
		}
		if head == nil {
			return nil, false
		}

		out = append(out, *head)
		hk := keyOf(*head)
		for i, seq := range work {
			if len(seq) > 0 && keyOf(seq[0]) == hk {
				work[i] = seq[1:]
			}
		}
	}
}

func inAnyTail(sequences [][]model.MROEntry, k entryKey) bool {
	for _, seq := range sequences {
		for _, e := range seq[min(1, len(seq)):] {
			if keyOf(e) == k {
				return true
			}
		}
	}
	return false
}

// declaredOrder is the degraded linearization: a left-to-right depth-first
// walk of the already computed sequences with duplicates removed.
func declaredOrder(sequences [][]model.MROEntry) []model.MROEntry {
	var out []model.MROEntry
	seen := map[entryKey]bool{}
	for _, seq := range sequences {
		for _, e := range seq {
			k := keyOf(e)
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, e)
		}
	}
	return out
}

// # internal/resolver/exports.go
package resolver

import (
	"fmt"
	"strings"

	"pyspect/internal/model"
)

// expandWildcards turns every `import *` into concrete indirection bindings.
// Expansion recurses into the target module first so straight chains see the
// full export set in one sweep. Modules on an import cycle feed each other
// names incrementally instead, so sweeps repeat in registration order until
// an entire sweep adds nothing; wildcards whose target never settled are
// flagged cyclic, since their expansion may be incomplete.
func (r *Resolver) expandWildcards() {
	added := map[*model.WildcardImport]map[string]bool{}
	for {
		changed := false
		for m := range r.root.AllModules() {
			if r.expandModule(m, map[*model.Module]bool{}, added) {
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	for m := range r.root.AllModules() {
		for _, wc := range m.Wildcards {
			if wc.Expanded {
				continue
			}
			wc.Expanded = true
			wc.Cyclic = true
			m.Warn(model.DiagCyclicWildcard,
				fmt.Sprintf("wildcard import of %s is part of an import cycle; its expansion may be incomplete", wc.TargetRaw))
		}
	}
}

func (r *Resolver) expandModule(m *model.Module, stack map[*model.Module]bool, added map[*model.WildcardImport]map[string]bool) bool {
	if stack[m] {
		return false
	}
	stack[m] = true
	defer delete(stack, m)

	changed := false
	for _, wc := range m.Wildcards {
		if wc.Expanded {
			continue
		}
		target := r.wildcardTarget(wc.TargetRaw)
		if target == nil {
			wc.Expanded = true
			m.Warn(model.DiagWildcardUnknownModule,
				fmt.Sprintf("cannot expand 'from %s import *': module is not part of the collection", wc.TargetRaw))
			changed = true
			continue
		}
		if !stack[target] && r.expandModule(target, stack, added) {
			changed = true
		}

		names := added[wc]
		if names == nil {
			names = map[string]bool{}
			added[wc] = names
		}
		for _, name := range exportNames(target) {
			if names[name] {
				continue
			}
			names[name] = true
			ind := model.NewIndirection(name, wc.Location, target.QualifiedName()+"."+name)
			ind.IsConditional = wc.IsConditional
			r.root.AddObject(ind, m)
			changed = true
		}
		// Only a settled target has a final export set; until then the
		// wildcard stays open for the next sweep.
		if wildcardsSettled(target) {
			wc.Expanded = true
		}
	}
	return changed
}

func wildcardsSettled(m *model.Module) bool {
	for _, wc := range m.Wildcards {
		if !wc.Expanded {
			return false
		}
	}
	return true
}

// wildcardTarget maps the dotted target of a wildcard to a loaded module.
// The ingester normalizes relative targets to absolute dotted names, so a
// plain registry lookup suffices; among duplicate registrations the module
// binding wins.
func (r *Resolver) wildcardTarget(dotted string) *model.Module {
	bindings := r.root.LookupAll(dotted)
	for i := len(bindings) - 1; i >= 0; i-- {
		if mod, ok := bindings[i].(*model.Module); ok {
			return mod
		}
	}
	return nil
}

// computeExports fixes the export set of every module. It runs after
// wildcard expansion, once the member lists have stopped growing.
func (r *Resolver) computeExports() {
	for m := range r.root.AllModules() {
		r.ensureExports(m)
	}
}

func (r *Resolver) ensureExports(m *model.Module) *model.ExportSet {
	if m.Exports != nil {
		return m.Exports
	}
	es := &model.ExportSet{}
	switch {
	case m.AllDecl == nil:
		es.Policy = model.ExportImplicit
		es.Names = publicNames(m)

	case m.AllDecl.NonLiteral:
		// __all__ exists but cannot be evaluated statically; fall back to
		// the implicit policy rather than guessing at the declared set.
		es.Policy = model.ExportDegraded
		es.Names = publicNames(m)
		m.Warn(model.DiagNonLiteralAll, "__all__ is not a literal sequence of strings; exporting public names instead")

	default:
		es.Policy = model.ExportDeclared
		seen := map[string]bool{}
		for _, name := range m.AllDecl.Names {
			if seen[name] {
				continue
			}
			seen[name] = true
			es.Names = append(es.Names, name)
			if r.root.Lookup(m.QualifiedName()+"."+name) == nil {
				es.Missing = append(es.Missing, name)
				m.Warn(model.DiagAllEntryMissing,
					fmt.Sprintf("__all__ names %q but the module defines no such object", name))
			}
		}
	}
	m.Exports = es
	return es
}

// exportNames computes the module's current export names without fixing its
// export set: while wildcards are still expanding, implicit exports may keep
// growing.
func exportNames(m *model.Module) []string {
	if m.AllDecl != nil && !m.AllDecl.NonLiteral {
		var names []string
		seen := map[string]bool{}
		for _, name := range m.AllDecl.Names {
			if seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
		return names
	}
	return publicNames(m)
}

// publicNames lists the module's non-underscore member names in binding
// order, each name once.
func publicNames(m *model.Module) []string {
	var names []string
	seen := map[string]bool{}
	for _, member := range m.Members() {
		name := member.Name()
		if strings.HasPrefix(name, "_") || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

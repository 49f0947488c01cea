// # internal/resolver/resolver_test.go
package resolver

import (
	"context"
	"testing"

	"pyspect/internal/model"
)

func mustModule(t *testing.T, root *model.TreeRoot, name string, parent *model.Module) *model.Module {
	t.Helper()
	m := model.NewModule(name, model.Location{Filename: name + ".py", Line: 1})
	if err := root.RegisterModule(m, parent); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestResolveScopeChain(t *testing.T) {
	root := model.NewTreeRoot()
	m := mustModule(t, root, "m", nil)

	x := model.NewVariable("X", model.Location{Line: 2})
	root.AddObject(x, m)

	cls := model.NewClass("C", model.Location{Line: 3})
	root.AddObject(cls, m)
	y := model.NewVariable("Y", model.Location{Line: 4})
	root.AddObject(y, cls)

	method := model.NewFunction("f", model.Location{Line: 5})
	method.Locals = []string{"loc"}
	root.AddObject(method, cls)
	nested := model.NewFunction("g", model.Location{Line: 6})
	root.AddObject(nested, method)

	r := New(root)

	if node, _, _ := r.ResolveName(cls, "Y"); node != model.Node(y) {
		t.Errorf("class body should see its own member, got %v", node)
	}
	if node, _, _ := r.ResolveName(cls, "X"); node != model.Node(x) {
		t.Errorf("class body should see module names, got %v", node)
	}
	if node, _, _ := r.ResolveName(nested, "X"); node != model.Node(x) {
		t.Errorf("nested function should see module names, got %v", node)
	}

	// Class bodies are skipped once a function boundary has been crossed.
	if node, _, reason := r.ResolveName(nested, "Y"); node != nil || reason != model.ReasonNotFound {
		t.Errorf("nested function must not see class-level names, got node=%v reason=%q", node, reason)
	}

	if _, _, reason := r.ResolveName(method, "loc"); reason != model.ReasonLocalBinding {
		t.Errorf("function locals resolve to no documentable node, got reason %q", reason)
	}
}

func TestBuiltinFallback(t *testing.T) {
	root := model.NewTreeRoot()
	m := mustModule(t, root, "m", nil)
	r := New(root)

	if _, external, _ := r.ResolveName(m, "ValueError"); external != "builtins.ValueError" {
		t.Errorf("expected builtins fallback, got %q", external)
	}
	if _, _, reason := r.ResolveName(m, "bar"); reason != model.ReasonNotFound {
		t.Errorf("unknown names stay unresolved, got reason %q", reason)
	}
}

func TestWildcardDeclaredAll(t *testing.T) {
	root := model.NewTreeRoot()
	mod1 := mustModule(t, root, "mod1", nil)
	root.AddObject(model.NewVariable("a", model.Location{Line: 3}), mod1)
	root.AddObject(model.NewVariable("b", model.Location{Line: 4}), mod1)
	mod1.AllDecl = &model.ExportDecl{Names: []string{"a", "ghost"}}

	mod2 := mustModule(t, root, "mod2", nil)
	mod2.Wildcards = append(mod2.Wildcards, &model.WildcardImport{
		TargetRaw: "mod1",
		Location:  model.Location{Line: 1},
	})

	r := New(root)
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if mod1.Exports == nil || mod1.Exports.Policy != model.ExportDeclared {
		t.Fatal("expected a declared export set on mod1")
	}
	if len(mod1.Exports.Missing) != 1 || mod1.Exports.Missing[0] != "ghost" {
		t.Errorf("declared-but-missing names should be flagged, got %v", mod1.Exports.Missing)
	}

	if node, _, _ := r.ResolveName(mod2, "a"); node == nil || node.QualifiedName() != "mod1.a" {
		t.Errorf("wildcard should re-export declared names, got %v", node)
	}
	if node, _, reason := r.ResolveName(mod2, "b"); node != nil || reason != model.ReasonNotFound {
		t.Errorf("names outside __all__ must not cross a wildcard, got node=%v reason=%q", node, reason)
	}

	hasMissingDiag := false
	for _, d := range root.Diagnostics() {
		if d.Code == model.DiagAllEntryMissing {
			hasMissingDiag = true
		}
	}
	if !hasMissingDiag {
		t.Error("expected an all-entry-missing diagnostic")
	}
}

func TestWildcardImplicitExports(t *testing.T) {
	root := model.NewTreeRoot()
	mod1 := mustModule(t, root, "mod1", nil)
	root.AddObject(model.NewVariable("pub", model.Location{Line: 2}), mod1)
	root.AddObject(model.NewVariable("_hidden", model.Location{Line: 3}), mod1)

	mod2 := mustModule(t, root, "mod2", nil)
	mod2.Wildcards = append(mod2.Wildcards, &model.WildcardImport{
		TargetRaw: "mod1",
		Location:  model.Location{Line: 1},
	})

	r := New(root)
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if mod1.Exports.Policy != model.ExportImplicit {
		t.Errorf("expected implicit policy, got %v", mod1.Exports.Policy)
	}
	if node, _, _ := r.ResolveName(mod2, "pub"); node == nil || node.QualifiedName() != "mod1.pub" {
		t.Errorf("public name should cross the wildcard, got %v", node)
	}
	if node, _, _ := r.ResolveName(mod2, "_hidden"); node != nil {
		t.Errorf("underscore names must not cross a wildcard, got %v", node)
	}
}

func TestNonLiteralAllDegrades(t *testing.T) {
	root := model.NewTreeRoot()
	m := mustModule(t, root, "m", nil)
	root.AddObject(model.NewVariable("pub", model.Location{Line: 2}), m)
	m.AllDecl = &model.ExportDecl{NonLiteral: true}

	r := New(root)
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if m.Exports.Policy != model.ExportDegraded {
		t.Fatalf("expected degraded policy, got %v", m.Exports.Policy)
	}
	if len(m.Exports.Names) != 1 || m.Exports.Names[0] != "pub" {
		t.Errorf("degraded export set should fall back to public names, got %v", m.Exports.Names)
	}
	found := false
	for _, d := range root.Diagnostics() {
		if d.Code == model.DiagNonLiteralAll {
			found = true
		}
	}
	if !found {
		t.Error("expected a non-literal-all diagnostic")
	}
}

func TestCyclicWildcards(t *testing.T) {
	root := model.NewTreeRoot()
	mod1 := mustModule(t, root, "mod1", nil)
	mod2 := mustModule(t, root, "mod2", nil)
	mod1.Wildcards = append(mod1.Wildcards, &model.WildcardImport{TargetRaw: "mod2", Location: model.Location{Line: 1}})
	mod2.Wildcards = append(mod2.Wildcards, &model.WildcardImport{TargetRaw: "mod1", Location: model.Location{Line: 1}})

	r := New(root)
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	cyclic := 0
	for _, wc := range append(mod1.Wildcards, mod2.Wildcards...) {
		if !wc.Expanded {
			t.Error("every wildcard must be marked processed")
		}
		if wc.Cyclic {
			cyclic++
		}
	}
	if cyclic == 0 {
		t.Fatal("expected at least one wildcard flagged cyclic")
	}

	// A name that might have come through the unexpandable wildcard stays
	// unresolved with a cycle reason.
	if _, _, reason := r.ResolveName(mod2, "mystery"); reason != model.ReasonCyclic {
		t.Errorf("expected cyclic reason, got %q", reason)
	}

	found := false
	for _, d := range root.Diagnostics() {
		if d.Code == model.DiagCyclicWildcard {
			found = true
		}
	}
	if !found {
		t.Error("expected a cyclic-wildcard diagnostic")
	}
}

func TestCyclicWildcardsStillPropagateDefinitions(t *testing.T) {
	root := model.NewTreeRoot()
	p := mustModule(t, root, "p", nil)
	q := mustModule(t, root, "q", nil)
	root.AddObject(model.NewVariable("foo", model.Location{Line: 3}), p)
	p.Wildcards = append(p.Wildcards, &model.WildcardImport{TargetRaw: "q", Location: model.Location{Line: 1}})
	q.Wildcards = append(q.Wildcards, &model.WildcardImport{TargetRaw: "p", Location: model.Location{Line: 1}})

	r := New(root)
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// A name defined on one side of the cycle still crosses the wildcard:
	// expansion sweeps until the modules stop feeding each other names.
	node, _, reason := r.ResolveName(q, "foo")
	if node == nil {
		t.Fatalf("foo should cross the cyclic wildcard, got reason %q", reason)
	}
	if node.QualifiedName() != "p.foo" {
		t.Errorf("foo should resolve to its definition, got %q", node.QualifiedName())
	}

	// The cycle itself is still flagged, and names the sweeps never saw keep
	// the cyclic reason.
	for _, wc := range append(p.Wildcards, q.Wildcards...) {
		if !wc.Expanded || !wc.Cyclic {
			t.Error("cycle members should end up expanded and flagged cyclic")
		}
	}
	if _, _, reason := r.ResolveName(q, "mystery"); reason != model.ReasonCyclic {
		t.Errorf("expected cyclic reason for unknown names, got %q", reason)
	}
}

func TestWildcardUnknownModule(t *testing.T) {
	root := model.NewTreeRoot()
	m := mustModule(t, root, "m", nil)
	m.Wildcards = append(m.Wildcards, &model.WildcardImport{TargetRaw: "nowhere", Location: model.Location{Line: 1}})

	r := New(root)
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	found := false
	for _, d := range root.Diagnostics() {
		if d.Code == model.DiagWildcardUnknownModule {
			found = true
		}
	}
	if !found {
		t.Error("expected a wildcard-unknown-module diagnostic")
	}
}

func TestConditionalAlternatives(t *testing.T) {
	root := model.NewTreeRoot()
	mod1 := mustModule(t, root, "mod1", nil)
	target := model.NewVariable("impl", model.Location{Line: 2})
	root.AddObject(target, mod1)

	m := mustModule(t, root, "m", nil)
	good := model.NewIndirection("j", model.Location{Line: 2}, "mod1.impl")
	good.IsConditional = true
	root.AddObject(good, m)
	bad := model.NewIndirection("j", model.Location{Line: 5}, "mod1.missing")
	bad.IsConditional = true
	root.AddObject(bad, m)

	r := New(root)
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// The first alternative whose target resolves wins, even when a later
	// branch shadows it textually.
	if node, _, _ := r.ResolveName(m, "j"); node != model.Node(target) {
		t.Errorf("expected the resolvable branch to win, got %v", node)
	}

	found := false
	for _, d := range root.Diagnostics() {
		if d.Code == model.DiagConditionalChoice && d.Object == "m.j" {
			found = true
		}
	}
	if !found {
		t.Error("expected a conditional-choice diagnostic for m.j")
	}
}

func TestSlotResolutionAndIdempotence(t *testing.T) {
	root := model.NewTreeRoot()
	m := mustModule(t, root, "m", nil)

	base := model.NewClass("Base", model.Location{Line: 2})
	root.AddObject(base, m)
	root.AddObject(model.NewIndirection("enum", model.Location{Line: 1}, "enum"), m)

	child := model.NewClass("Child", model.Location{Line: 5})
	child.Bases = append(child.Bases,
		model.NewRef("Base", m),
		model.NewRef("enum.Enum", m),
		model.NewRef("nonsense", m),
	)
	root.AddObject(child, m)

	if err := New(root).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := child.Bases[0].Target(); got != model.Node(base) {
		t.Errorf("in-tree base should resolve, got %v", got)
	}
	if child.Bases[1].State() != model.RefExternal || child.Bases[1].External() != "enum.Enum" {
		t.Errorf("out-of-tree dotted base should be external, got %v %q",
			child.Bases[1].State(), child.Bases[1].External())
	}
	if child.Bases[2].State() != model.RefUnresolved || child.Bases[2].Reason() != model.ReasonNotFound {
		t.Errorf("unknown base should stay unresolved, got %v", child.Bases[2].State())
	}

	// A second run must not change any decision.
	if err := New(root).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if child.Bases[0].Target() != model.Node(base) {
		t.Error("slot decision changed on re-run")
	}
	if len(base.Subclasses) != 1 || base.Subclasses[0] != child {
		t.Errorf("subclass links should converge on re-run, got %v", base.Subclasses)
	}
}

func TestClassBaseThroughImport(t *testing.T) {
	root := model.NewTreeRoot()
	mod1 := mustModule(t, root, "mod1", nil)
	base := model.NewClass("Base", model.Location{Line: 2})
	root.AddObject(base, mod1)
	attr := model.NewVariable("attr", model.Location{Line: 3})
	root.AddObject(attr, base)

	mod2 := mustModule(t, root, "mod2", nil)
	root.AddObject(model.NewIndirection("Base", model.Location{Line: 1}, "mod1.Base"), mod2)
	root.AddObject(model.NewIndirection("mod1", model.Location{Line: 2}, "mod1"), mod2)

	sub := model.NewClass("Sub", model.Location{Line: 4})
	sub.Bases = append(sub.Bases, model.NewRef("Base", mod2))
	root.AddObject(sub, mod2)

	r := New(root)
	if err := r.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if sub.Bases[0].Target() != model.Node(base) {
		t.Errorf("base should resolve through the import binding, got %v", sub.Bases[0].Target())
	}

	// Dotted member access through an imported module binding.
	if node, _, _ := r.ResolveName(mod2, "mod1.Base.attr"); node != model.Node(attr) {
		t.Errorf("dotted descent failed, got %v", node)
	}

	// Member lookup falls back to base classes.
	if node, _, _ := r.ResolveName(mod2, "Sub.attr"); node != model.Node(attr) {
		t.Errorf("inherited member lookup failed, got %v", node)
	}
}

func TestClassification(t *testing.T) {
	root := model.NewTreeRoot()
	m := mustModule(t, root, "m", nil)

	cls := model.NewClass("C", model.Location{Line: 2})
	root.AddObject(cls, m)

	prop := model.NewFunction("size", model.Location{Line: 3})
	prop.Decorations = []*model.Decoration{{Name: model.NewRef("property", m)}}
	root.AddObject(prop, cls)

	setter := model.NewFunction("size", model.Location{Line: 7})
	setter.Decorations = []*model.Decoration{{Name: model.NewRef("size.setter", m)}}
	root.AddObject(setter, cls)

	static := model.NewFunction("make", model.Location{Line: 11})
	static.Decorations = []*model.Decoration{{Name: model.NewRef("staticmethod", m)}}
	static.Modifiers = []string{"async"}
	root.AddObject(static, cls)

	alias := model.NewVariable("Alias", model.Location{Line: 14})
	alias.Value = "C"
	root.AddObject(alias, m)

	if err := New(root).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !prop.IsProperty {
		t.Error("property decoration not classified")
	}
	if !static.IsStaticMethod || !static.IsAsync {
		t.Error("staticmethod or async flag missing")
	}
	if root.Lookup("m.C.size") != model.Node(prop) {
		t.Error("getter should stay visible over its setter")
	}
	if alias.AliasOf != model.Node(cls) {
		t.Errorf("alias edge missing, got %v", alias.AliasOf)
	}
}

func TestExportedFlag(t *testing.T) {
	root := model.NewTreeRoot()
	m := mustModule(t, root, "m", nil)
	v1 := model.NewVariable("kept", model.Location{Line: 2})
	v2 := model.NewVariable("dropped", model.Location{Line: 3})
	root.AddObject(v1, m)
	root.AddObject(v2, m)
	m.AllDecl = &model.ExportDecl{Names: []string{"kept"}}

	if err := New(root).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !v1.Exported || v2.Exported {
		t.Errorf("export flags wrong: kept=%v dropped=%v", v1.Exported, v2.Exported)
	}
}

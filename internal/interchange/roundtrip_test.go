// # internal/interchange/roundtrip_test.go
package interchange

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"testing"

	"pyspect/internal/model"
	"pyspect/internal/mro"
	"pyspect/internal/resolver"
)

func buildFixtureTree(t *testing.T) *model.TreeRoot {
	t.Helper()
	root := model.NewTreeRoot()

	pkg := model.NewModule("pkg", model.Location{Filename: "pkg/__init__.py", Line: 1})
	pkg.IsPackage = true
	pkg.SourcePath = "pkg/__init__.py"
	pkg.Docstring = "Top-level package."
	if err := root.RegisterModule(pkg, nil); err != nil {
		t.Fatal(err)
	}

	mod := model.NewModule("core", model.Location{Filename: "pkg/core.py", Line: 1})
	mod.SourcePath = "pkg/core.py"
	mod.AllDecl = &model.ExportDecl{Names: []string{"Base", "make", "DEFAULT"}, Location: model.Location{Line: 1}}
	if err := root.RegisterModule(mod, pkg); err != nil {
		t.Fatal(err)
	}

	base := model.NewClass("Base", model.Location{Filename: "pkg/core.py", Line: 3})
	base.Docstring = "A base class."
	base.Bases = append(base.Bases, model.NewRef("ValueError", mod))
	root.AddObject(base, mod)

	fn := model.NewFunction("make", model.Location{Filename: "pkg/core.py", Line: 9})
	fn.Args = []*model.Argument{
		{Name: "name", Kind: model.ArgPositional, Datatype: model.NewRef("str", mod)},
		{Name: "retries", Kind: model.ArgKeywordOnly, HasDefault: true},
	}
	fn.ReturnType = model.NewRef("Base", mod)
	root.AddObject(fn, mod)

	v := model.NewVariable("DEFAULT", model.Location{Filename: "pkg/core.py", Line: 14})
	v.Value = "Base"
	root.AddObject(v, mod)

	root.AddObject(model.NewIndirection("Base", model.Location{Filename: "pkg/__init__.py", Line: 2}, "pkg.core.Base"), pkg)

	if err := resolver.New(root).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestRoundTrip(t *testing.T) {
	original := buildFixtureTree(t)

	var buf bytes.Buffer
	if err := Encode(&buf, original); err != nil {
		t.Fatal(err)
	}
	restored, err := Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}

	if restored.LoadID != original.LoadID {
		t.Errorf("load id changed: %q vs %q", restored.LoadID, original.LoadID)
	}
	if restored.ModuleCount() != original.ModuleCount() {
		t.Fatalf("module count: got %d, want %d", restored.ModuleCount(), original.ModuleCount())
	}
	if restored.ObjectCount() != original.ObjectCount() {
		t.Fatalf("object count: got %d, want %d", restored.ObjectCount(), original.ObjectCount())
	}

	// Structure and identity by qualified name.
	for _, qname := range original.Index().Keys() {
		want := original.Lookup(qname)
		got := restored.Lookup(qname)
		if got == nil {
			t.Fatalf("object %q lost in round trip", qname)
		}
		if got.Kind() != want.Kind() {
			t.Errorf("%q: kind %v vs %v", qname, got.Kind(), want.Kind())
		}
		if got.Location() != want.Location() {
			t.Errorf("%q: location %+v vs %+v", qname, got.Location(), want.Location())
		}
	}

	// Slot decisions survive.
	cls, ok := restored.Lookup("pkg.core.Base").(*model.Class)
	if !ok {
		t.Fatal("restored Base is not a class")
	}
	if cls.Bases[0].State() != model.RefExternal || cls.Bases[0].External() != "builtins.ValueError" {
		t.Errorf("external base decision lost: %v %q", cls.Bases[0].State(), cls.Bases[0].External())
	}
	if cls.Docstring != "A base class." {
		t.Errorf("docstring lost: %q", cls.Docstring)
	}

	fn, ok := restored.Lookup("pkg.core.make").(*model.Function)
	if !ok {
		t.Fatal("restored make is not a function")
	}
	if fn.ReturnType.State() != model.RefResolved || fn.ReturnType.Target().QualifiedName() != "pkg.core.Base" {
		t.Errorf("resolved return type lost: %v", fn.ReturnType.State())
	}
	if len(fn.Args) != 2 || fn.Args[1].Kind != model.ArgKeywordOnly || !fn.Args[1].HasDefault {
		t.Errorf("argument shape lost: %+v", fn.Args)
	}

	v, ok := restored.Lookup("pkg.core.DEFAULT").(*model.Variable)
	if !ok {
		t.Fatal("restored DEFAULT is not a variable")
	}
	if v.AliasOf == nil || v.AliasOf.QualifiedName() != "pkg.core.Base" {
		t.Errorf("alias edge lost: %v", v.AliasOf)
	}
	if !v.Exported {
		t.Error("export flag lost")
	}

	ind, ok := restored.Lookup("pkg.Base").(*model.Indirection)
	if !ok {
		t.Fatal("restored pkg.Base is not an indirection")
	}
	if ind.Target != "pkg.core.Base" {
		t.Errorf("indirection target lost: %q", ind.Target)
	}

	core, ok := restored.Lookup("pkg.core").(*model.Module)
	if !ok {
		t.Fatal("restored pkg.core is not a module")
	}
	if core.Exports == nil || core.Exports.Policy != model.ExportDeclared || len(core.Exports.Names) != 3 {
		t.Errorf("export set lost: %+v", core.Exports)
	}

	// Resolved slot decisions are final after decoding too.
	if fn.ReturnType.Resolve(v) {
		t.Error("restored slot accepted a second decision")
	}

	// Diagnostics travel with the document.
	if len(restored.Diagnostics()) != len(original.Diagnostics()) {
		t.Errorf("diagnostics count: got %d, want %d",
			len(restored.Diagnostics()), len(original.Diagnostics()))
	}
}

// buildWideTree spreads class hierarchies and annotations that cross module
// boundaries over enough modules to keep several resolver workers busy: one
// library module full of subclasses, and eight consumer modules whose
// variable annotations reach inherited members through an import binding.
func buildWideTree(t *testing.T) *model.TreeRoot {
	t.Helper()
	root := model.NewTreeRoot()

	lib := model.NewModule("lib", model.Location{Filename: "lib.py", Line: 1})
	if err := root.RegisterModule(lib, nil); err != nil {
		t.Fatal(err)
	}
	base := model.NewClass("Base", model.Location{Filename: "lib.py", Line: 2})
	root.AddObject(base, lib)
	root.AddObject(model.NewVariable("attr", model.Location{Filename: "lib.py", Line: 3}), base)
	for i := 0; i < 24; i++ {
		sub := model.NewClass(fmt.Sprintf("Sub%d", i), model.Location{Filename: "lib.py", Line: 5 + i})
		sub.Bases = append(sub.Bases, model.NewRef("Base", lib))
		root.AddObject(sub, lib)
	}

	for i := 0; i < 8; i++ {
		file := fmt.Sprintf("use%d.py", i)
		use := model.NewModule(fmt.Sprintf("use%d", i), model.Location{Filename: file, Line: 1})
		if err := root.RegisterModule(use, nil); err != nil {
			t.Fatal(err)
		}
		root.AddObject(model.NewIndirection("lib", model.Location{Filename: file, Line: 1}, "lib"), use)
		for j := 0; j < 24; j++ {
			v := model.NewVariable(fmt.Sprintf("v%d", j), model.Location{Filename: file, Line: 2 + j})
			v.Datatype = model.NewRef(fmt.Sprintf("lib.Sub%d.attr", j), use)
			root.AddObject(v, use)
		}
	}
	return root
}

func linearizationNames(t *testing.T, root *model.TreeRoot, qname string) []string {
	t.Helper()
	cls, ok := root.Lookup(qname).(*model.Class)
	if !ok {
		t.Fatalf("%s is not a class", qname)
	}
	var names []string
	for _, e := range cls.Linearization {
		switch {
		case e.Class != nil:
			names = append(names, e.Class.QualifiedName())
		case e.External != "":
			names = append(names, e.External)
		default:
			names = append(names, e.Raw)
		}
	}
	return names
}

func TestParallelResolutionDeterministic(t *testing.T) {
	build := func() (*model.TreeRoot, []byte) {
		root := buildWideTree(t)
		if err := resolver.New(root, resolver.WithWorkers(8)).Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		mro.New(root).Run()
		root.LoadID = "fixed"
		var buf bytes.Buffer
		if err := Encode(&buf, root); err != nil {
			t.Fatal(err)
		}
		return root, buf.Bytes()
	}

	firstRoot, firstDoc := build()
	for i := 0; i < 4; i++ {
		nextRoot, nextDoc := build()
		if !bytes.Equal(firstDoc, nextDoc) {
			t.Fatalf("run %d produced a different document", i+1)
		}
		for _, qname := range []string{"lib.Sub0", "lib.Sub23"} {
			want := linearizationNames(t, firstRoot, qname)
			got := linearizationNames(t, nextRoot, qname)
			if !slices.Equal(got, want) {
				t.Errorf("%s linearization differs: %v vs %v", qname, got, want)
			}
		}
	}

	v, ok := firstRoot.Lookup("use0.v0").(*model.Variable)
	if !ok || v.Datatype.State() != model.RefResolved {
		t.Fatal("annotation through an imported class did not resolve")
	}
	if got := v.Datatype.Target().QualifiedName(); got != "lib.Base.attr" {
		t.Errorf("inherited member lookup went wrong, got %q", got)
	}
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	doc := &Document{Version: 99}
	if _, err := FromDocument(doc); err == nil {
		t.Fatal("expected an error for an unsupported version")
	}
}

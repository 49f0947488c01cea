// # internal/ingest/loader_test.go
package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"pyspect/internal/model"
)

func writeTree(t *testing.T, base string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(base, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestLoader(t *testing.T, opts ...LoaderOption) *Loader {
	t.Helper()
	l, err := NewLoader(NewParser(NewGrammarLoader()), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestLoaderDiscoversPackageTree(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"pkg/__init__.py":     "from .core import build\n",
		"pkg/core.py":         "def build():\n    pass\n",
		"pkg/sub/__init__.py": "",
		"pkg/sub/leaf.py":     "VALUE = 1\n",
	})

	l := newTestLoader(t)
	root, err := l.Load([]string{filepath.Join(dir, "pkg")})
	if err != nil {
		t.Fatal(err)
	}

	for _, qname := range []string{"pkg", "pkg.core", "pkg.sub", "pkg.sub.leaf"} {
		m, ok := root.Lookup(qname).(*model.Module)
		if !ok {
			t.Errorf("module %q not loaded", qname)
			continue
		}
		if qname == "pkg" || qname == "pkg.sub" {
			if !m.IsPackage {
				t.Errorf("%q should be a package", qname)
			}
		}
	}
	if _, ok := root.Lookup("pkg.build").(*model.Indirection); !ok {
		t.Error("re-export binding in __init__.py not recorded")
	}
	if _, ok := root.Lookup("pkg.sub.leaf.VALUE").(*model.Variable); !ok {
		t.Error("leaf module content not parsed")
	}
}

func TestLoaderPackageWinsNameClash(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"pkg/__init__.py":      "",
		"pkg/util/__init__.py": "AS_PACKAGE = 1\n",
		"pkg/util.py":          "AS_MODULE = 1\n",
	})

	l := newTestLoader(t)
	root, err := l.Load([]string{filepath.Join(dir, "pkg")})
	if err != nil {
		t.Fatal(err)
	}

	m, ok := root.Lookup("pkg.util").(*model.Module)
	if !ok {
		t.Fatal("pkg.util missing")
	}
	if !m.IsPackage {
		t.Error("package lost the name clash to a plain module")
	}
	if root.Lookup("pkg.util.AS_PACKAGE") == nil {
		t.Error("package body missing")
	}
	if root.Lookup("pkg.util.AS_MODULE") != nil {
		t.Error("clashing module body should have been skipped")
	}

	found := false
	for _, d := range root.Diagnostics() {
		if d.Code == model.DiagDuplicatePackageWins && d.Object == "pkg.util" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing package-wins diagnostic: %+v", root.Diagnostics())
	}
}

func TestLoaderExcludes(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"pkg/__init__.py":             "",
		"pkg/keep.py":                 "",
		"pkg/skip_flymake.py":         "",
		"pkg/__pycache__/__init__.py": "",
	})

	l := newTestLoader(t,
		WithExcludeDirs([]string{"__pycache__"}),
		WithExcludeFiles([]string{"*_flymake.py"}))
	root, err := l.Load([]string{filepath.Join(dir, "pkg")})
	if err != nil {
		t.Fatal(err)
	}

	if root.Lookup("pkg.keep") == nil {
		t.Error("pkg.keep should be loaded")
	}
	if root.Lookup("pkg.skip_flymake") != nil {
		t.Error("excluded file was loaded")
	}
	if root.Lookup("pkg.__pycache__") != nil {
		t.Error("excluded directory was loaded")
	}
}

func TestLoaderAllowStubs(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"pkg/__init__.py": "",
		"pkg/core.py":     "X = 1\n",
	})

	l := newTestLoader(t, WithAllowStubs(true))
	root, err := l.Load([]string{filepath.Join(dir, "pkg")})
	if err != nil {
		t.Fatal(err)
	}
	if !root.AllowStubs {
		t.Fatal("allow-stubs setting not carried onto the built tree")
	}

	// A pure re-export stub under an already registered name is tolerated on
	// trees built with the setting on.
	stub := model.NewModule("core", model.Location{Filename: "stub.py", Line: 1})
	root.AddObject(model.NewIndirection("X", model.Location{Filename: "stub.py", Line: 1}, "pkg.core.X"), stub)
	pkg, ok := root.Lookup("pkg").(*model.Module)
	if !ok {
		t.Fatal("pkg missing")
	}
	if err := root.RegisterModule(stub, pkg); err != nil {
		t.Errorf("re-export stub should be tolerated, got %v", err)
	}

	strict, err := newTestLoader(t).Load([]string{filepath.Join(dir, "pkg")})
	if err != nil {
		t.Fatal(err)
	}
	if strict.AllowStubs {
		t.Error("allow-stubs should default to off")
	}
}

func TestLoaderSingleFile(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"script.py": "def main():\n    pass\n",
	})

	l := newTestLoader(t)
	root, err := l.Load([]string{filepath.Join(dir, "script.py")})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := root.Lookup("script.main").(*model.Function); !ok {
		t.Error("single-file module not loaded")
	}
}

func TestLoaderRejectsNonPackageDir(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"plain/notes.txt": "",
	})

	l := newTestLoader(t)
	if _, err := l.Load([]string{filepath.Join(dir, "plain")}); err == nil {
		t.Fatal("expected an error for a directory without __init__.py")
	}
}

func TestLoaderBadExcludePattern(t *testing.T) {
	_, err := NewLoader(NewParser(NewGrammarLoader()), WithExcludeFiles([]string{"[invalid"}))
	if err == nil {
		t.Fatal("expected an error for an invalid glob")
	}
}

// # internal/ingest/loader.go
package ingest

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"pyspect/internal/model"
)

// Loader discovers Python packages on disk and builds one tree per load.
// Discovery order is deterministic: input paths in argument order, then
// directory entries sorted by name with subpackages before plain modules,
// so a package always wins a name clash against a same-named module.
type Loader struct {
	parser       *Parser
	log          *slog.Logger
	excludeDirs  []glob.Glob
	excludeFiles []glob.Glob
	allowStubs   bool
}

type LoaderOption func(*Loader) error

func WithLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) error {
		l.log = log
		return nil
	}
}

func WithExcludeDirs(patterns []string) LoaderOption {
	return func(l *Loader) error {
		gs, err := compileGlobs(patterns)
		l.excludeDirs = gs
		return err
	}
}

// WithAllowStubs makes the built trees tolerate duplicate module names when
// the newcomer is a pure re-export stub.
func WithAllowStubs(allow bool) LoaderOption {
	return func(l *Loader) error {
		l.allowStubs = allow
		return nil
	}
}

func WithExcludeFiles(patterns []string) LoaderOption {
	return func(l *Loader) error {
		gs, err := compileGlobs(patterns)
		l.excludeFiles = gs
		return err
	}
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	var gs []glob.Glob
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
		gs = append(gs, g)
	}
	return gs, nil
}

func NewLoader(parser *Parser, opts ...LoaderOption) (*Loader, error) {
	l := &Loader{
		parser: parser,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Load builds a fresh tree from the given package directories and module
// files. Name-level problems (duplicate modules, unparsable files) are
// recorded as diagnostics; only unusable input paths fail the load.
func (l *Loader) Load(paths []string) (*model.TreeRoot, error) {
	root := model.NewTreeRoot()
	root.AllowStubs = l.allowStubs
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if info.IsDir() {
			if err := l.loadPackage(root, path, nil); err != nil {
				return nil, err
			}
			continue
		}
		l.loadFile(root, path, nil)
	}
	l.log.Info("load complete",
		"load_id", root.LoadID,
		"modules", root.ModuleCount(),
		"objects", root.ObjectCount())
	return root, nil
}

func (l *Loader) loadPackage(root *model.TreeRoot, dir string, parent *model.Module) error {
	initPath := filepath.Join(dir, "__init__.py")
	if _, err := os.Stat(initPath); err != nil {
		return fmt.Errorf("%s is not a package: missing __init__.py", dir)
	}

	m := model.NewModule(filepath.Base(dir), model.Location{Filename: initPath, Line: 1})
	m.IsPackage = true
	m.SourcePath = initPath
	if !l.register(root, m, parent) {
		return nil
	}
	l.parseInto(root, m, initPath)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	// Subpackages first: on a foo/ vs foo.py clash the package keeps the
	// name.
	for _, entry := range entries {
		if !entry.IsDir() || l.matchAny(l.excludeDirs, entry.Name()) {
			continue
		}
		subdir := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(subdir, "__init__.py")); err != nil {
			continue
		}
		if err := l.loadPackage(root, subdir, m); err != nil {
			return err
		}
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".py") || name == "__init__.py" {
			continue
		}
		if l.matchAny(l.excludeFiles, name) {
			continue
		}
		l.loadFile(root, filepath.Join(dir, name), m)
	}
	return nil
}

func (l *Loader) loadFile(root *model.TreeRoot, path string, parent *model.Module) {
	name := strings.TrimSuffix(filepath.Base(path), ".py")
	m := model.NewModule(name, model.Location{Filename: path, Line: 1})
	m.SourcePath = path
	if !l.register(root, m, parent) {
		return
	}
	l.parseInto(root, m, path)
}

// register inserts the module, converting a duplicate-name rejection into a
// diagnostic on the surviving binding.
func (l *Loader) register(root *model.TreeRoot, m *model.Module, parent *model.Module) bool {
	err := root.RegisterModule(m, parent)
	if err == nil {
		return true
	}
	var dup *model.DuplicateModuleError
	if !errors.As(err, &dup) {
		l.log.Warn("module registration failed", "module", m.Name(), "err", err)
		return false
	}

	code := model.DiagDuplicateModule
	message := fmt.Sprintf("duplicate module %q: keeping the first registration", dup.Name)
	if existing, ok := root.Lookup(dup.Name).(*model.Module); ok && existing.IsPackage && !m.IsPackage {
		code = model.DiagDuplicatePackageWins
		message = fmt.Sprintf("module %q clashes with a package of the same name: the package wins", dup.Name)
	}
	root.AddDiagnostic(model.Diagnostic{
		Severity: model.SeverityWarning,
		Code:     code,
		Object:   dup.Name,
		Location: m.Location(),
		Message:  message,
	})
	l.log.Warn("duplicate module skipped", "module", dup.Name, "path", m.SourcePath)
	return false
}

func (l *Loader) parseInto(root *model.TreeRoot, m *model.Module, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		l.log.Warn("cannot read source", "path", path, "err", err)
		return
	}
	if err := l.parser.ParseModule(root, m, content); err != nil {
		l.log.Warn("cannot parse source", "path", path, "err", err)
	}
}

func (l *Loader) matchAny(globs []glob.Glob, name string) bool {
	for _, g := range globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

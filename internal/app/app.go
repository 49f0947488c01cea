// # internal/app/app.go
// Package app wires loading, resolution, linearization, persistence and
// watch mode into one service used by the command line front end.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"go.opentelemetry.io/otel/trace"

	"pyspect/internal/config"
	"pyspect/internal/ingest"
	"pyspect/internal/interchange"
	"pyspect/internal/model"
	"pyspect/internal/mro"
	"pyspect/internal/resolver"
	"pyspect/internal/shared/observability"
	"pyspect/internal/store"
	"pyspect/internal/watcher"
)

type App struct {
	Config *config.Config
	Log    *slog.Logger

	loader *ingest.Loader
	store  *store.SQLiteStore

	mu   sync.RWMutex
	tree *model.TreeRoot

	rebuildLimiter *rate.Limiter
	watch          *watcher.Watcher
}

func New(cfg *config.Config, log *slog.Logger) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = slog.Default()
	}

	parser := ingest.NewParser(ingest.NewGrammarLoader())
	loader, err := ingest.NewLoader(parser,
		ingest.WithLogger(log),
		ingest.WithExcludeDirs(cfg.Exclude.Dirs),
		ingest.WithExcludeFiles(cfg.Exclude.Files),
		ingest.WithAllowStubs(cfg.AllowStubs),
	)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:         cfg,
		Log:            log,
		loader:         loader,
		rebuildLimiter: rate.NewLimiter(rate.Limit(cfg.Watch.RebuildsPerSecond), 1),
	}

	if cfg.StorePath != "" {
		st, err := store.Open(cfg.StorePath, cfg.ProjectKey)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = st
	}
	return a, nil
}

// Build loads the configured packages, resolves every reference slot,
// linearizes the class hierarchy and syncs the result into the store when
// one is configured. The finished tree replaces the current one.
func (a *App) Build(ctx context.Context) (*model.TreeRoot, error) {
	ctx, span := observability.Tracer.Start(ctx, "app.Build", trace.WithAttributes())
	defer span.End()

	t0 := time.Now()
	root, err := a.loader.Load(a.Config.Paths)
	if err != nil {
		return nil, err
	}
	observability.ParsingDuration.Observe(time.Since(t0).Seconds())

	t1 := time.Now()
	res := resolver.New(root, resolver.WithWorkers(a.Config.Workers))
	if err := res.Run(ctx); err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}
	observability.ResolutionDuration.WithLabelValues("resolve").Observe(time.Since(t1).Seconds())

	t2 := time.Now()
	mro.New(root).Run()
	observability.ResolutionDuration.WithLabelValues("linearize").Observe(time.Since(t2).Seconds())

	a.recordTreeMetrics(root)

	if a.store != nil {
		t3 := time.Now()
		if err := a.store.SyncTree(root); err != nil {
			return nil, fmt.Errorf("sync store: %w", err)
		}
		observability.StoreSyncDuration.Observe(time.Since(t3).Seconds())
	}

	a.mu.Lock()
	a.tree = root
	a.mu.Unlock()

	a.Log.Info("build complete",
		"load_id", root.LoadID,
		"modules", root.ModuleCount(),
		"objects", root.ObjectCount(),
		"diagnostics", len(root.Diagnostics()),
		"elapsed", time.Since(t0).Round(time.Millisecond))
	return root, nil
}

func (a *App) recordTreeMetrics(root *model.TreeRoot) {
	observability.TreeModules.Set(float64(root.ModuleCount()))
	observability.TreeObjects.Set(float64(root.ObjectCount()))
	for _, d := range root.Diagnostics() {
		observability.DiagnosticsTotal.WithLabelValues(d.Code).Inc()
	}
	for m := range root.AllModules() {
		for _, member := range m.Members() {
			model.Walk(member, model.VisitFunc(func(n model.Node) {
				for _, ref := range nodeRefs(n) {
					observability.SlotsDecided.WithLabelValues(ref.State().String()).Inc()
				}
			}))
		}
	}
}

func nodeRefs(n model.Node) []*model.Ref {
	var refs []*model.Ref
	add := func(ref *model.Ref) {
		if ref != nil {
			refs = append(refs, ref)
		}
	}
	switch ob := n.(type) {
	case *model.Class:
		for _, b := range ob.Bases {
			add(b)
		}
		add(ob.Metaclass)
		for _, d := range ob.Decorations {
			add(d.Name)
		}
	case *model.Function:
		for _, d := range ob.Decorations {
			add(d.Name)
		}
		add(ob.ReturnType)
		for _, arg := range ob.Args {
			add(arg.Datatype)
		}
	case *model.Variable:
		add(ob.Datatype)
	}
	return refs
}

// Tree returns the most recent build, or nil before the first one.
func (a *App) Tree() *model.TreeRoot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tree
}

// WriteJSON emits the current tree as an interchange document.
func (a *App) WriteJSON(w io.Writer) error {
	tree := a.Tree()
	if tree == nil {
		return fmt.Errorf("no tree built yet")
	}
	return interchange.Encode(w, tree)
}

// Lookup answers a qualified-name query from the in-memory tree when one
// exists, falling back to the symbol store.
func (a *App) Lookup(qualifiedName string) ([]store.ObjectRecord, error) {
	if tree := a.Tree(); tree != nil {
		var out []store.ObjectRecord
		for _, n := range tree.LookupAll(qualifiedName) {
			rec := store.ObjectRecord{
				Name:          n.Name(),
				QualifiedName: qualifiedName,
				Kind:          n.Kind().String(),
				FilePath:      n.Location().Filename,
				Line:          n.Location().Line,
			}
			if m := n.Module(); m != nil {
				rec.ModuleName = m.QualifiedName()
			}
			out = append(out, rec)
		}
		if out != nil {
			return out, nil
		}
	}
	if a.store == nil {
		return nil, fmt.Errorf("no store configured")
	}
	return a.store.Lookup(qualifiedName)
}

// Watch rebuilds the tree whenever watched Python sources change, rate
// limited on top of the watcher's debounce. Blocks until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	w, err := watcher.NewWatcher(
		a.Config.Watch.Debounce,
		a.Config.Exclude.Dirs,
		a.Config.Exclude.Files,
		func(paths []string) {
			if !a.rebuildLimiter.Allow() {
				a.Log.Debug("rebuild suppressed by rate limit", "changed", len(paths))
				return
			}
			observability.RebuildsTotal.Inc()
			a.Log.Info("sources changed, rebuilding", "changed", len(paths))
			if _, err := a.Build(ctx); err != nil {
				a.Log.Error("rebuild failed", "error", err)
			}
		},
	)
	if err != nil {
		return err
	}
	a.watch = w
	if err := w.Watch(a.Config.Paths); err != nil {
		_ = w.Close()
		return err
	}

	<-ctx.Done()
	return w.Close()
}

// Health reports the state of the last build for the observability server.
func (a *App) Health(ctx context.Context) observability.HealthStatus {
	tree := a.Tree()
	if tree == nil {
		return observability.HealthStatus{Status: "starting"}
	}
	return observability.HealthStatus{
		Status:  "up",
		LoadID:  tree.LoadID,
		Modules: tree.ModuleCount(),
		Objects: tree.ObjectCount(),
	}
}

func (a *App) Close(ctx context.Context) error {
	if a.watch != nil {
		_ = a.watch.Close()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

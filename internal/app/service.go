// Package app wires the class universe, data sources, schema compiler and
// HTTP engine into one service that can be rebuilt while serving.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/classrt"
	"github.com/hanpama/classgraph/internal/config"
	"github.com/hanpama/classgraph/internal/datasource"
	eventbus "github.com/hanpama/classgraph/internal/eventbus"
	events "github.com/hanpama/classgraph/internal/events"
	"github.com/hanpama/classgraph/internal/executor"
	"github.com/hanpama/classgraph/internal/introspection"
	"github.com/hanpama/classgraph/internal/plugin"
	"github.com/hanpama/classgraph/internal/query"
	reqid "github.com/hanpama/classgraph/internal/reqid"
	"github.com/hanpama/classgraph/internal/server"
	"github.com/hanpama/classgraph/internal/typegraph"
)

// Service owns the universe and the engine serving it. Rebuilds are
// serialized; the engine is swapped atomically, so in-flight queries finish
// on the schema they started with.
type Service struct {
	u          *classinfo.Universe
	cfg        config.SchemaConfig
	src        datasource.Source
	plugins    *datasource.Memory
	visibility query.Visibility
	log        *slog.Logger

	mu       sync.Mutex
	bundle   *plugin.Bundle
	engines  server.Swappable
	compiled atomic.Pointer[typegraph.CompiledSchema]
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.log = l } }

// WithVisibility replaces the default read-permission predicate.
func WithVisibility(v query.Visibility) Option { return func(s *Service) { s.visibility = v } }

// New creates a service over u. primary may be nil; plugin instances are
// served after it.
func New(u *classinfo.Universe, primary datasource.Source, cfg config.SchemaConfig, opts ...Option) (*Service, error) {
	if u == nil {
		return nil, errors.New("app: universe is required")
	}
	s := &Service{
		u:          u,
		cfg:        cfg,
		plugins:    datasource.NewMemory(u),
		visibility: query.ReadPermission,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.src = datasource.Join(primary, s.plugins)
	return s, nil
}

// Engines is what the HTTP handler serves from.
func (s *Service) Engines() *server.Swappable { return &s.engines }

// Compiled returns the schema currently served, or nil before the first
// successful build.
func (s *Service) Compiled() *typegraph.CompiledSchema { return s.compiled.Load() }

// Universe returns the class universe the service compiles.
func (s *Service) Universe() *classinfo.Universe { return s.u }

// Rebuild compiles the universe and swaps the new engine in. On failure the
// previous engine keeps serving.
func (s *Service) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuildLocked(ctx)
}

func (s *Service) rebuildLocked(ctx context.Context) error {
	if _, ok := reqid.FromContext(ctx); !ok {
		ctx, _ = reqid.NewContext(ctx)
	}
	roots := make([]string, len(s.cfg.Roots))
	for i, r := range s.cfg.Roots {
		roots[i] = r.Name
	}
	start := time.Now()
	eventbus.Publish(ctx, events.SchemaBuildStart{Classes: s.u.Len(), Roots: roots})

	cs, err := s.build()
	var wrapped *introspection.Wrapped
	if err == nil {
		wrapped, err = introspection.Wrap(classrt.New(cs, classrt.WithLogger(s.log)), cs.Schema())
	}
	finish := events.SchemaBuildFinish{Err: err}
	if err == nil {
		for _, n := range cs.Nodes() {
			finish.Types++
			switch {
			case n.FallbackFor != nil:
				finish.Fallbacks++
			case n.Kind == typegraph.Interface:
				finish.Interfaces++
			}
		}
	}
	finish.Duration = time.Since(start)
	eventbus.Publish(ctx, finish)
	if err != nil {
		s.log.ErrorContext(ctx, "schema build failed", "err", err)
		return err
	}

	s.engines.Swap(&server.Engine{
		Executor: executor.NewExecutor(wrapped.Runtime, wrapped.Schema),
		Schema:   cs.AST(),
	})
	s.compiled.Store(cs)
	return nil
}

func (s *Service) build() (*typegraph.CompiledSchema, error) {
	idp, err := s.cfg.IDPropertyPolicy()
	if err != nil {
		return nil, err
	}
	order, err := s.cfg.Order()
	if err != nil {
		return nil, err
	}
	opts := []query.Option{query.WithFilterOrder(order)}
	if s.visibility != nil {
		opts = append(opts, query.WithVisibility(s.visibility))
	}
	if s.cfg.DefaultLimit > 0 {
		opts = append(opts, query.WithDefaultLimit(s.cfg.DefaultLimit))
	}
	qb := query.New(s.u, s.src, opts...)

	roots := make([]typegraph.RootField, len(s.cfg.Roots))
	for i, r := range s.cfg.Roots {
		roots[i] = qb.Field(r.Name, r.Class)
	}
	var exclude func(*classinfo.Class) bool
	if len(s.cfg.Exclude) > 0 {
		excluded := make(map[string]bool, len(s.cfg.Exclude))
		for _, name := range s.cfg.Exclude {
			excluded[name] = true
		}
		exclude = func(c *classinfo.Class) bool { return excluded[c.Name] }
	}
	return typegraph.Build(typegraph.Config{
		Universe:   s.u,
		Roots:      roots,
		Exclude:    exclude,
		IDProperty: idp,
		Pager:      qb,
		ListArgs:   qb.ListArgs(),
		Logger:     s.log,
	})
}

// LoadPlugins reads dir, applies its classes and instances, and rebuilds.
// If the manifests do not load or the schema does not compile, the previous
// plugin state is restored.
func (s *Service) LoadPlugins(ctx context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := reqid.FromContext(ctx); !ok {
		ctx, _ = reqid.NewContext(ctx)
	}

	next, err := plugin.Load(dir)
	if err != nil {
		eventbus.Publish(ctx, events.PluginsLoaded{Dir: dir, Err: err})
		s.log.ErrorContext(ctx, "plugins not loaded", "dir", dir, "err", err)
		return err
	}
	prev := s.bundle
	if err := s.applyLocked(next, prev); err != nil {
		eventbus.Publish(ctx, events.PluginsLoaded{Dir: dir, Err: err})
		return err
	}
	if err := s.rebuildLocked(ctx); err != nil {
		restore := prev
		if restore == nil {
			restore = &plugin.Bundle{Dir: dir}
		}
		if rerr := s.applyLocked(restore, next); rerr != nil {
			s.log.ErrorContext(ctx, "cannot restore previous plugins", "err", rerr)
		}
		eventbus.Publish(ctx, events.PluginsLoaded{Dir: dir, Err: err})
		return err
	}
	eventbus.Publish(ctx, events.PluginsLoaded{
		Dir:       dir,
		Manifests: len(next.Manifests),
		Classes:   len(next.Classes),
		Instances: len(next.Instances),
	})
	s.log.InfoContext(ctx, "plugins loaded", "dir", dir, "manifests", len(next.Manifests), "classes", len(next.Classes), "instances", len(next.Instances))
	return nil
}

func (s *Service) applyLocked(next, prev *plugin.Bundle) error {
	if err := next.Apply(s.u, prev); err != nil {
		return err
	}
	items := make([]any, len(next.Instances))
	for i, r := range next.Instances {
		items[i] = r
	}
	s.plugins.Replace(items)
	s.bundle = next
	return nil
}

// WatchPlugins reloads dir whenever its manifests change, until ctx is done.
// Reload failures are logged and leave the previous schema serving.
func (s *Service) WatchPlugins(ctx context.Context, dir string, debounce time.Duration) error {
	return plugin.Watch(ctx, dir, debounce, s.log, func(ctx context.Context) {
		_ = s.LoadPlugins(ctx, dir)
	})
}

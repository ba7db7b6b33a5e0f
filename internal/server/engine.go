// Package server exposes compiled schemas over HTTP as a GraphQL endpoint.
package server

import (
	"sync/atomic"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	executor "github.com/hanpama/classgraph/internal/executor"
	schema "github.com/hanpama/classgraph/internal/schema"
)

// Engine is one compiled schema ready to serve: the executor running it and
// the gqlparser schema requests are validated against.
type Engine struct {
	Executor *executor.Executor
	Schema   *ast.Schema
}

// Engines hands out the engine current at request time. A request keeps the
// engine it started with even when a newer one is swapped in.
type Engines interface {
	Engine() *Engine
}

// Swappable is an Engines whose engine can be replaced atomically.
type Swappable struct {
	cur atomic.Pointer[Engine]
}

func (s *Swappable) Engine() *Engine { return s.cur.Load() }

// Swap installs e and returns the previous engine.
func (s *Swappable) Swap(e *Engine) *Engine { return s.cur.Swap(e) }

// Static serves runtime over sch, loading the rendered schema into gqlparser
// for validation.
func Static(runtime executor.Runtime, sch *schema.Schema) (*Swappable, error) {
	doc, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: schema.Render(sch)})
	if err != nil {
		return nil, err
	}
	s := &Swappable{}
	s.Swap(&Engine{Executor: executor.NewExecutor(runtime, sch), Schema: doc})
	return s, nil
}

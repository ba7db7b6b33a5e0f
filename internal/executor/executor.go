package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/hanpama/classgraph/internal/errs"
	"github.com/hanpama/classgraph/internal/language"
	schema "github.com/hanpama/classgraph/internal/schema"
)

// Path locates a value in the response: field names and list indexes.
type Path []any

func (p Path) String() string {
	s := ""
	for i, elem := range p {
		switch elem := elem.(type) {
		case int:
			s += fmt.Sprintf("[%d]", elem)
		default:
			if i > 0 {
				s += "."
			}
			s += fmt.Sprint(elem)
		}
	}
	return s
}

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// ExecuteRequest runs the selected query operation of doc. Field failures
// are reported next to partial data; failures to start the operation leave
// Data nil.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	doc *ast.QueryDocument,
	operationName string,
	variables map[string]any,
	rootValue any,
) *ExecutionResult {
	op := language.Operation(doc, operationName)
	if op == nil {
		return requestError(errs.TypeOperationNotSupported, "operation not found")
	}
	if op.Operation != ast.Query {
		return requestError(errs.TypeOperationNotSupported, fmt.Sprintf("%s operations are not supported", op.Operation))
	}
	root := e.schema.Query()
	if root == nil {
		return requestError(errs.TypeOperationNotSupported, "schema has no query type")
	}
	vars, err := coerceVariables(op, variables)
	if err != nil {
		return requestError(errs.TypeValidation, err.Error())
	}

	ex := &execution{
		ctx:      ctx,
		runtime:  e.runtime,
		schema:   e.schema,
		doc:      doc,
		vars:     vars,
		errors:   []GraphQLError{},
		reported: make(map[string]bool),
	}
	data := make(map[string]any)
	ex.selectionSet(nil, data, root, op.SelectionSet, rootValue)
	for len(ex.queue) > 0 {
		ex.flush()
	}
	return &ExecutionResult{Data: data, Errors: ex.errors}
}

type execution struct {
	ctx     context.Context
	runtime Runtime
	schema  *schema.Schema
	doc     *ast.QueryDocument
	vars    map[string]any

	queue    []*queuedField
	errors   []GraphQLError
	reported map[string]bool
}

// position is the place of one value in the response. Values are written
// through it as soon as they are known.
type position struct {
	up       *position
	holder   any // map[string]any or []any
	key      any // string or int
	nullable bool
	cleared  bool
}

func (p *position) set(v any) {
	switch h := p.holder.(type) {
	case map[string]any:
		h[p.key.(string)] = v
	case []any:
		h[p.key.(int)] = v
	}
}

func (p *position) live() bool {
	for q := p; q != nil; q = q.up {
		if q.cleared {
			return false
		}
	}
	return true
}

// clear nulls p, or its nearest nullable ancestor when p is Non-Null. Root
// fields are nulled in place.
func (p *position) clear() {
	for q := p; q != nil; q = q.up {
		q.cleared = true
		if q.nullable || q.up == nil {
			q.set(nil)
			return
		}
	}
}

func (p *position) path() Path {
	var n int
	for q := p; q != nil; q = q.up {
		n++
	}
	out := make(Path, n)
	for q := p; q != nil; q = q.up {
		n--
		out[n] = q.key
	}
	return out
}

// queuedField is an async field waiting for its depth's batch.
type queuedField struct {
	pos   *position
	typ   *schema.TypeRef
	nodes []*ast.Field
	task  AsyncResolveTask
}

// selectionSet executes the selections of one object into obj. parent is
// the position of obj, nil for the root.
func (ex *execution) selectionSet(parent *position, obj map[string]any, t *schema.Type, set ast.SelectionSet, source any) {
	for _, group := range ex.collect(t, set) {
		if !parent.live() {
			return
		}
		node := group.nodes[0]
		if node.Name == "__typename" {
			obj[group.name] = t.Name
			continue
		}
		def := t.Field(node.Name)
		if def == nil {
			ex.report(fmt.Errorf("cannot query field %q on type %q", node.Name, t.Name), group.nodes, append(parent.path(), group.name))
			continue
		}
		pos := &position{up: parent, holder: obj, key: group.name, nullable: !def.Type.NonNull()}
		obj[group.name] = nil

		args, err := ex.arguments(def, node)
		if err != nil {
			ex.fail(pos, err, group.nodes)
			continue
		}
		if def.Async {
			ex.queue = append(ex.queue, &queuedField{
				pos:   pos,
				typ:   def.Type,
				nodes: group.nodes,
				task:  AsyncResolveTask{ObjectType: t.Name, Field: def.Name, Source: source, Args: args},
			})
			continue
		}
		v, err := ex.runtime.ResolveSync(ex.ctx, t.Name, def.Name, source, args)
		if err != nil {
			ex.fail(pos, err, group.nodes)
			continue
		}
		ex.complete(pos, def.Type, group.nodes, v)
	}
}

// flush issues the batch of the current depth and completes its values.
func (ex *execution) flush() {
	var batch []*queuedField
	for _, q := range ex.queue {
		if q.pos.live() {
			batch = append(batch, q)
		}
	}
	ex.queue = nil
	if len(batch) == 0 {
		return
	}
	tasks := make([]AsyncResolveTask, len(batch))
	for i, q := range batch {
		tasks[i] = q.task
	}
	results := ex.runtime.BatchResolveAsync(ex.ctx, tasks)
	for i, q := range batch {
		if !q.pos.live() {
			continue
		}
		if i >= len(results) {
			ex.fail(q.pos, fmt.Errorf("runtime returned %d results for %d tasks", len(results), len(tasks)), q.nodes)
			continue
		}
		if results[i].Error != nil {
			ex.fail(q.pos, results[i].Error, q.nodes)
			continue
		}
		ex.complete(q.pos, q.typ, q.nodes, results[i].Value)
	}
}

// complete writes the completed form of v at pos.
func (ex *execution) complete(pos *position, typ *schema.TypeRef, nodes []*ast.Field, v any) {
	if isNullish(v) {
		if typ.NonNull() {
			ex.fail(pos, fmt.Errorf("cannot return null for non-nullable field %s", pos.path()), nodes)
			return
		}
		pos.set(nil)
		return
	}
	typ = typ.Nullable()

	if typ.Kind == schema.RefList {
		ex.completeList(pos, typ.OfType, nodes, v)
		return
	}
	named := ex.schema.Types[typ.Named]
	switch {
	case named == nil:
		ex.fail(pos, fmt.Errorf("unknown type %s", typ.Named), nodes)
	case named.Kind.Leaf():
		out, err := ex.runtime.SerializeLeafValue(ex.ctx, named.Name, v)
		if err != nil {
			ex.fail(pos, err, nodes)
			return
		}
		pos.set(out)
	case named.Kind.Abstract():
		name, err := ex.runtime.ResolveType(ex.ctx, named.Name, v)
		if err != nil {
			ex.fail(pos, err, nodes)
			return
		}
		concrete := ex.schema.Types[name]
		if concrete == nil || concrete.Kind != schema.KindObject || !named.Includes(concrete) {
			ex.fail(pos, fmt.Errorf("abstract type %s resolved to %q, which is not one of its object types", named.Name, name), nodes)
			return
		}
		ex.completeObject(pos, concrete, nodes, v)
	case named.Kind == schema.KindObject:
		ex.completeObject(pos, named, nodes, v)
	default:
		ex.fail(pos, fmt.Errorf("cannot complete a value of kind %s", named.Kind), nodes)
	}
}

func (ex *execution) completeObject(pos *position, t *schema.Type, nodes []*ast.Field, v any) {
	obj := make(map[string]any)
	pos.set(obj)
	var set ast.SelectionSet
	for _, n := range nodes {
		set = append(set, n.SelectionSet...)
	}
	ex.selectionSet(pos, obj, t, set, v)
}

func (ex *execution) completeList(pos *position, elem *schema.TypeRef, nodes []*ast.Field, v any) {
	items, ok := v.([]any)
	if !ok {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			ex.fail(pos, fmt.Errorf("expected a list, got %T", v), nodes)
			return
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}
	out := make([]any, len(items))
	pos.set(out)
	for i, item := range items {
		ex.complete(&position{up: pos, holder: out, key: i, nullable: !elem.NonNull()}, elem, nodes, item)
		if !pos.live() {
			return
		}
	}
}

// fail records err at pos once and nulls the value there.
func (ex *execution) fail(pos *position, err error, nodes []*ast.Field) {
	path := pos.path()
	if key := path.String(); !ex.reported[key] {
		ex.reported[key] = true
		ex.report(err, nodes, path)
	}
	pos.clear()
}

func (ex *execution) report(err error, nodes []*ast.Field, path Path) {
	ex.errors = append(ex.errors, GraphQLError{
		Message:   err.Error(),
		Locations: locations(nodes),
		Path:      path,
		ErrorType: errs.ErrorType(err),
	})
}

// isNullish reports nil and typed nil values.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

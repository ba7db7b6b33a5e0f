package executor

import (
	"context"
)

// Runtime is the host integration surface the Executor calls for field
// resolution, batched async work, runtime type resolution and leaf
// serialization.
//
// General contract
//   - Execution is breadth first. At each depth all synchronous fields are
//     drained through ResolveSync, then BatchResolveAsync is called ONCE with
//     every async task collected at that depth. The next depth starts only
//     after those results are completed.
//   - ResolveSync is never invoked for fields marked async, and
//     BatchResolveAsync is only invoked when a depth has async fields.
//   - Returned errors become located GraphQL errors whose errorType comes from
//     errs.ErrorType. A Non-Null field that fails nulls its nearest nullable
//     ancestor.
//   - Implementations must be safe for concurrent use and must not mutate
//     source or args.
//
// Identifiers
//   - objectType is the GraphQL type name of the parent ("FreeStyleProject",
//     or "Query" for root fields).
//   - source is the parent instance (nil for root fields).
//   - args holds the coerced argument values, defaults applied.
//
// Abstract types and leaves
//   - ResolveType maps an instance reached through an interface field to the
//     name of an object type implementing that interface.
//   - SerializeLeafValue turns scalar and enum values into JSON-safe Go values.
//
// Ordering
//   - BatchResolveAsync returns one result per task, results[i] answering
//     tasks[i]. Failures are per element.
//   - Tasks under paths already nulled by a Non-Null violation are dropped
//     before the batch is issued.
type Runtime interface {
	// ResolveSync reads a synchronous field (Async == false), typically a
	// property of source. The raw value is completed by the Executor.
	// Return (nil, nil) for null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync resolves one execution depth of async tasks, such as
	// the root collection fields. len(results) must equal len(tasks).
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType determines the object type name for a value of an abstract
	// type (interface or union). The name must be a possible type of
	// abstractType; otherwise return an error.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue serializes a scalar or enum value. Enums serialize to
	// their name. Custom scalars apply their own encoding and report
	// unsupported values as coercion errors.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

type AsyncResolveTask struct {
	// ObjectType is the parent GraphQL object type name for the field.
	ObjectType string
	// Field is the GraphQL field name to resolve.
	Field string
	// Source is the parent object value (nil for root fields).
	Source any
	// Args are the field arguments, coerced to Go values per the schema.
	Args map[string]any
}

type AsyncResolveResult struct {
	// Value is the resolved raw value prior to completion, or nil on error.
	Value any
	// Error contains a failure specific to this element; other elements in the
	// same batch are unaffected.
	Error error
}

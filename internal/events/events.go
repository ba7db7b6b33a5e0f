// Package events declares the events the service publishes on the event bus.
package events

import (
	"net/http"
	"time"
)

// HTTPStart and HTTPFinish bracket one request to the GraphQL endpoint.
type HTTPStart struct {
	Request *http.Request
}

type HTTPFinish struct {
	Request  *http.Request
	Status   int
	Duration time.Duration
}

// GraphQLStart and GraphQLFinish bracket one operation of a request. A
// batch request publishes one pair per operation.
type GraphQLStart struct {
	Query         string
	OperationName string
	OperationType string
}

type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        []error
	Duration      time.Duration
}

// SchemaBuildStart is emitted before the class universe is compiled.
type SchemaBuildStart struct {
	Classes int
	Roots   []string
}

// SchemaBuildFinish is emitted after a compilation attempt.
type SchemaBuildFinish struct {
	Types      int
	Interfaces int
	Fallbacks  int
	Err        error
	Duration   time.Duration
}

// TypeResolved is emitted when a runtime instance reached through an
// interface field is mapped onto an object type. Fallback is set when the
// answer is an identity-only fallback type.
type TypeResolved struct {
	Class    string
	Expected string
	Resolved string
	Fallback bool
	Err      error
}

// PluginsLoaded is emitted after the plugin directory was (re)read.
type PluginsLoaded struct {
	Dir       string
	Manifests int
	Classes   int
	Instances int
	Err       error
}

package executor

import "github.com/vektah/gqlparser/v2/ast"

// Location is a 1-based line and column in the query document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// GraphQLError is one entry of a response's errors list. ErrorType carries
// the error class used by clients to tell bad input from failed fetches.
type GraphQLError struct {
	Message    string         `json:"message"`
	Locations  []Location     `json:"locations,omitempty"`
	Path       Path           `json:"path,omitempty"`
	ErrorType  string         `json:"errorType,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (e GraphQLError) Error() string { return e.Message }

type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

func requestError(errorType, message string) *ExecutionResult {
	return &ExecutionResult{Errors: []GraphQLError{{Message: message, ErrorType: errorType}}}
}

func locations(nodes []*ast.Field) []Location {
	var out []Location
	for _, n := range nodes {
		if n != nil && n.Position != nil {
			out = append(out, Location{Line: n.Position.Line, Column: n.Position.Column})
		}
	}
	return out
}

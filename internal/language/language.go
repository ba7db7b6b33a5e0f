// Package language parses and validates GraphQL request documents with
// gqlparser.
package language

import (
	"errors"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// ParseQuery parses source. Syntax errors are *gqlerror.Error values.
func ParseQuery(source string) (*ast.QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "query.graphql", Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks doc against sch and returns the violations.
func Validate(sch *ast.Schema, doc *ast.QueryDocument) gqlerror.List {
	return validator.Validate(sch, doc)
}

// Operation picks the operation called name, or the only operation when
// name is empty.
func Operation(doc *ast.QueryDocument, name string) *ast.OperationDefinition {
	if name == "" {
		if len(doc.Operations) == 1 {
			return doc.Operations[0]
		}
		return nil
	}
	return doc.Operations.ForName(name)
}

// Errors turns err into a located error list.
func Errors(err error) gqlerror.List {
	var list gqlerror.List
	if errors.As(err, &list) {
		return list
	}
	var ge *gqlerror.Error
	if errors.As(err, &ge) {
		return gqlerror.List{ge}
	}
	return gqlerror.List{{Message: err.Error()}}
}

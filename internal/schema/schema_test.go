package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testSDL = `
interface Node { id: ID }
type Query {
  nodes(offset: Int = 0, limit: Int = 100): [Node] @async
  old: String @deprecated(reason: "gone")
}
"""A thing."""
type Thing implements Node { id: ID name: String! }
scalar DateTime
`

func TestBuildFromSDL(t *testing.T) {
	s, err := BuildFromSDL(testSDL)
	require.NoError(t, err)

	require.Equal(t, "Query", s.QueryType)
	q := s.Query()
	require.NotNil(t, q)

	nodes := q.Field("nodes")
	require.NotNil(t, nodes)
	require.True(t, nodes.Async)
	require.Len(t, nodes.Args, 2)
	require.Equal(t, 100, nodes.Arg("limit").DefaultValue)
	require.Equal(t, "[Node]", nodes.Type.String())
	require.True(t, nodes.Type.IsList())
	require.Equal(t, "Node", nodes.Type.Name())

	old := q.Field("old")
	require.NotNil(t, old.Deprecated)
	require.Equal(t, "gone", *old.Deprecated)
	require.Nil(t, nodes.Deprecated)

	node := s.Types["Node"]
	require.Equal(t, KindInterface, node.Kind)
	require.Equal(t, []string{"Thing"}, node.PossibleTypes)
	require.True(t, node.Includes(s.Types["Thing"]))
	require.False(t, s.Types["Thing"].Includes(s.Types["Query"]))
	require.True(t, s.Types["Thing"].Implements("Node"))
	require.Equal(t, KindScalar, s.Types["String"].Kind)
	require.Equal(t, "String!", s.Types["Thing"].Field("name").Type.String())
}

func TestBuildFromSDLRejectsInvalidSchema(t *testing.T) {
	_, err := BuildFromSDL(`type Query { a: Missing }`)
	require.Error(t, err)
}

func TestRender(t *testing.T) {
	s, err := BuildFromSDL(testSDL)
	require.NoError(t, err)

	want := `schema {
  query: Query
}

scalar DateTime

interface Node {
  id: ID
}

type Query {
  nodes(offset: Int = 0, limit: Int = 100): [Node]
  old: String @deprecated(reason: "gone")
}

"""
A thing.
"""
type Thing implements Node {
  id: ID
  name: String!
}
`
	if diff := cmp.Diff(want, Render(s)); diff != "" {
		t.Errorf("rendered SDL mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderRoundTrip(t *testing.T) {
	s, err := BuildFromSDL(testSDL)
	require.NoError(t, err)
	again, err := BuildFromSDL(Render(s))
	require.NoError(t, err)
	require.Equal(t, Render(s), Render(again))
}

func TestLiteral(t *testing.T) {
	require.Equal(t, `"a\"b"`, literal(`a"b`))
	require.Equal(t, "[1, 2.5, true, null]", literal([]any{1, 2.5, true, nil}))
	require.Equal(t, `{a: "x", b: 1}`, literal(map[string]any{"b": 1, "a": "x"}))
}

func TestIsBuiltinType(t *testing.T) {
	require.True(t, IsBuiltinType("ID"))
	require.True(t, IsBuiltinType("__Type"))
	require.False(t, IsBuiltinType("DateTime"))
}

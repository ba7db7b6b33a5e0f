package query

import (
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/errs"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	u     *classinfo.Universe
	items []any
	err   error
	pulls int
}

func (s *sliceSource) AllInstancesOf(_ context.Context, class string) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for _, it := range s.items {
			c, ok := s.u.ClassOf(it)
			if !ok || !s.u.IsAssignable(c.Name, class) {
				continue
			}
			s.pulls++
			if !yield(it, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

func (s *sliceSource) FindByID(_ context.Context, class, id string) (any, bool, error) {
	for _, it := range s.items {
		c, ok := s.u.ClassOf(it)
		if !ok || !s.u.IsAssignable(c.Name, class) {
			continue
		}
		if got, ok := s.u.IdentityOf(it); ok && got == id {
			return it, true, nil
		}
	}
	return nil, false, nil
}

type guarded struct {
	*classinfo.Record
	allowed bool
}

func (g guarded) HasPermission(_ context.Context, p Permission) bool {
	return p == Read && g.allowed
}

func testUniverse(t *testing.T) *classinfo.Universe {
	t.Helper()
	u := classinfo.NewUniverse()
	id := []classinfo.Accessor{classinfo.RecordAccessor("getFullName")}
	require.NoError(t, u.Register(
		&classinfo.Class{Name: "Item", Kind: classinfo.Abstract, Exported: true, Accessors: id},
		&classinfo.Class{Name: "Project", Super: "Item", Exported: true},
		&classinfo.Class{Name: "Folder", Super: "Item", Exported: true},
		&classinfo.Class{Name: "User", Exported: true},
	))
	return u
}

func items(classes ...string) []any {
	out := make([]any, len(classes))
	for i, c := range classes {
		out[i] = classinfo.NewRecord(c, c+"-"+string(rune('a'+i)), nil)
	}
	return out
}

func ids(t *testing.T, u *classinfo.Universe, v any) []string {
	t.Helper()
	list, ok := v.([]any)
	require.True(t, ok, "got %T", v)
	out := []string{}
	for _, it := range list {
		id, _ := u.IdentityOf(it)
		out = append(out, id)
	}
	return out
}

func TestRootArgumentsOrder(t *testing.T) {
	b := New(testUniverse(t), &sliceSource{})
	f := b.Field("allItems", "Item")
	var names []string
	for _, a := range f.Args {
		names = append(names, a.Name)
	}
	require.Equal(t, []string{"offset", "limit", "type", "id"}, names)
	require.Equal(t, 0, f.Args[0].DefaultValue)
	require.Equal(t, 100, f.Args[1].DefaultValue)
	require.Equal(t, "Item", f.Class)
}

func TestRootPagination(t *testing.T) {
	u := testUniverse(t)
	src := &sliceSource{u: u, items: items("Project", "Folder", "Project", "User", "Project")}
	f := New(u, src).Field("allItems", "Item")
	ctx := context.Background()

	cases := []struct {
		name string
		args map[string]any
		want []string
	}{
		{"defaults", map[string]any{"offset": 0, "limit": 100}, []string{"Project-a", "Folder-b", "Project-c", "Project-e"}},
		{"window", map[string]any{"offset": 1, "limit": 2}, []string{"Folder-b", "Project-c"}},
		{"offset past end", map[string]any{"offset": 5, "limit": 10}, []string{}},
		{"limit zero", map[string]any{"offset": 0, "limit": 0}, []string{}},
		{"negative offset", map[string]any{"offset": -3, "limit": 1}, []string{"Project-a"}},
		{"negative limit", map[string]any{"offset": 0, "limit": -1}, []string{}},
		{"type override", map[string]any{"type": "Project"}, []string{"Project-a", "Project-c", "Project-e"}},
		{"id", map[string]any{"id": "Folder-b", "offset": 3, "limit": 0}, []string{"Folder-b"}},
		{"unknown id", map[string]any{"id": "nope"}, []string{}},
		{"id outside override", map[string]any{"id": "Folder-b", "type": "Project"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.Resolve(ctx, tc.args)
			require.NoError(t, err)
			require.Equal(t, tc.want, ids(t, u, got))
		})
	}
}

func TestRootPaginationIsLazy(t *testing.T) {
	u := testUniverse(t)
	src := &sliceSource{u: u, items: items("Project", "Project", "Project", "Project", "Project")}
	_, err := New(u, src).Field("allItems", "Item").Resolve(context.Background(), map[string]any{"offset": 1, "limit": 2})
	require.NoError(t, err)
	require.Equal(t, 3, src.pulls)
}

func TestTypeOverrideErrors(t *testing.T) {
	u := testUniverse(t)
	f := New(u, &sliceSource{u: u}).Field("allItems", "Item")
	for _, name := range []string{"Missing", "User"} {
		_, err := f.Resolve(context.Background(), map[string]any{"type": name})
		require.Error(t, err)
		require.True(t, errors.Is(err, errs.ErrUnknownType))
		require.Equal(t, errs.TypeValidation, errs.ErrorType(err))
	}
}

func TestFilterOrder(t *testing.T) {
	u := testUniverse(t)
	recs := items("Project", "Project", "Project", "Project")
	src := &sliceSource{u: u, items: []any{
		guarded{recs[0].(*classinfo.Record), false},
		guarded{recs[1].(*classinfo.Record), true},
		guarded{recs[2].(*classinfo.Record), false},
		guarded{recs[3].(*classinfo.Record), true},
	}}
	args := map[string]any{"offset": 0, "limit": 2}

	got, err := New(u, src).Field("allItems", "Item").Resolve(context.Background(), args)
	require.NoError(t, err)
	require.Equal(t, []string{"Project-b"}, ids(t, u, got))

	got, err = New(u, src, WithFilterOrder(FilterThenSlice)).Field("allItems", "Item").Resolve(context.Background(), args)
	require.NoError(t, err)
	require.Equal(t, []string{"Project-b", "Project-d"}, ids(t, u, got))

	got, err = New(u, src, WithVisibility(AllowAll)).Field("allItems", "Item").Resolve(context.Background(), args)
	require.NoError(t, err)
	require.Equal(t, []string{"Project-a", "Project-b"}, ids(t, u, got))

	got, err = New(u, src).Field("allItems", "Item").Resolve(context.Background(), map[string]any{"id": "Project-a"})
	require.NoError(t, err)
	require.Equal(t, []string{}, ids(t, u, got))
}

func TestSourceErrorsPropagate(t *testing.T) {
	u := testUniverse(t)
	boom := errors.New("boom")
	src := &sliceSource{u: u, items: items("Project"), err: boom}
	_, err := New(u, src).Field("allItems", "Item").Resolve(context.Background(), map[string]any{"limit": 10})
	require.ErrorIs(t, err, boom)
}

func TestCancelledContext(t *testing.T) {
	u := testUniverse(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(u, &sliceSource{u: u, items: items("Project")}).Field("allItems", "Item").Resolve(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPage(t *testing.T) {
	u := testUniverse(t)
	b := New(u, nil)
	list := items("Project", "Folder", "Project")
	ctx := context.Background()

	got, err := b.Page(ctx, list, map[string]any{"offset": 1, "limit": 1})
	require.NoError(t, err)
	require.Equal(t, []string{"Folder-b"}, ids(t, u, got))

	got, err = b.Page(ctx, list, map[string]any{"id": "Project-c", "offset": 9})
	require.NoError(t, err)
	require.Equal(t, []string{"Project-c"}, ids(t, u, got))

	got, err = b.Page(ctx, list, map[string]any{"offset": 3})
	require.NoError(t, err)
	require.Equal(t, []string{}, ids(t, u, got))
}

func TestParseFilterOrder(t *testing.T) {
	o, err := ParseFilterOrder("")
	require.NoError(t, err)
	require.Equal(t, SliceThenFilter, o)
	o, err = ParseFilterOrder("Filter-Then-Slice")
	require.NoError(t, err)
	require.Equal(t, FilterThenSlice, o)
	require.Equal(t, "filter-then-slice", o.String())
	_, err = ParseFilterOrder("random")
	require.Error(t, err)
}

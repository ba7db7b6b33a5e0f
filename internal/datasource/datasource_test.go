package datasource

import (
	"context"
	"iter"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/query"
)

var (
	_ query.DataSource = (*Memory)(nil)
	_ query.DataSource = (*Badger)(nil)
	_ query.DataSource = Join()
)

func universe(t *testing.T) *classinfo.Universe {
	t.Helper()
	u := classinfo.NewUniverse()
	id := []classinfo.Accessor{classinfo.RecordAccessor("getFullName")}
	require.NoError(t, u.Register(
		&classinfo.Class{Name: "Job", Kind: classinfo.Interface, Accessors: id},
		&classinfo.Class{Name: "Project", Interfaces: []string{"Job"}, Exported: true},
		&classinfo.Class{Name: "Pipeline", Interfaces: []string{"Job"}, Exported: true},
		&classinfo.Class{Name: "Run", Exported: true, Accessors: []classinfo.Accessor{classinfo.RecordAccessor("getId")}},
	))
	return u
}

func drain(t *testing.T, seq iter.Seq2[any, error]) []string {
	t.Helper()
	out := []string{}
	for v, err := range seq {
		require.NoError(t, err)
		r, ok := classinfo.RecordOf(v)
		require.True(t, ok)
		out = append(out, r.Class+"/"+r.ID)
	}
	return out
}

func fixtures() []*classinfo.Record {
	return []*classinfo.Record{
		classinfo.NewRecord("Project", "b", map[string]any{"description": "second"}),
		classinfo.NewRecord("Run", "1", nil),
		classinfo.NewRecord("Pipeline", "c", nil),
		classinfo.NewRecord("Project", "a", map[string]any{
			"lastBuild": map[string]any{"class": "Run", "id": "7"},
		}),
	}
}

func TestMemory(t *testing.T) {
	u := universe(t)
	m := NewMemory(u)
	for _, r := range fixtures() {
		m.Add(r)
	}
	ctx := context.Background()

	require.Equal(t, []string{"Project/b", "Pipeline/c", "Project/a"}, drain(t, m.AllInstancesOf(ctx, "Job")))
	require.Equal(t, []string{"Run/1"}, drain(t, m.AllInstancesOf(ctx, "Run")))
	require.Equal(t, []string{}, drain(t, m.AllInstancesOf(ctx, "Unknown")))

	v, ok, err := m.FindByID(ctx, "Job", "c")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Pipeline", v.(*classinfo.Record).Class)

	_, ok, err = m.FindByID(ctx, "Run", "c")
	require.NoError(t, err)
	require.False(t, ok)

	m.Replace([]any{classinfo.NewRecord("Run", "2", nil)})
	require.Equal(t, 1, m.Len())
	require.Equal(t, []string{}, drain(t, m.AllInstancesOf(ctx, "Job")))
}

func TestMemoryStopsOnCancel(t *testing.T) {
	u := universe(t)
	m := NewMemory(u, classinfo.NewRecord("Run", "1", nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var errs []error
	for _, err := range m.AllInstancesOf(ctx, "Run") {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], context.Canceled)
}

func TestBadgerInMemory(t *testing.T) {
	u := universe(t)
	b, err := OpenBadger("", u, nil)
	require.NoError(t, err)
	defer b.Close()
	ctx := context.Background()
	require.NoError(t, b.Put(ctx, fixtures()...))

	// classes in name order, ids in key order
	require.Equal(t, []string{"Pipeline/c", "Project/a", "Project/b"}, drain(t, b.AllInstancesOf(ctx, "Job")))

	v, ok, err := b.FindByID(ctx, "Job", "a")
	require.NoError(t, err)
	require.True(t, ok)
	r := v.(*classinfo.Record)
	last, ok := r.Props["lastBuild"].(*classinfo.Record)
	require.True(t, ok, "nested record survives a round trip: %T", r.Props["lastBuild"])
	require.Equal(t, "7", last.ID)

	got, err := classinfo.RecordProperty("description", classinfo.Named("String"), "").Get(mustFind(t, b, "Project", "b"))
	require.NoError(t, err)
	require.Equal(t, "second", got)

	require.NoError(t, b.Delete("Project", "b"))
	_, ok, err = b.FindByID(ctx, "Project", "b")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBadgerStopsEarly(t *testing.T) {
	u := universe(t)
	b, err := OpenBadger("", u, nil)
	require.NoError(t, err)
	defer b.Close()
	ctx := context.Background()
	require.NoError(t, b.Put(ctx, fixtures()...))

	n := 0
	for _, err := range b.AllInstancesOf(ctx, "Job") {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	require.Equal(t, 2, n)
}

func TestBadgerPersists(t *testing.T) {
	u := universe(t)
	dir := filepath.Join(t.TempDir(), "badger")
	ctx := context.Background()

	b, err := OpenBadger(dir, u, nil)
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, classinfo.NewRecord("Run", "9", nil)))
	require.NoError(t, b.Close())

	b, err = OpenBadger(dir, u, nil)
	require.NoError(t, err)
	defer b.Close()
	require.Equal(t, []string{"Run/9"}, drain(t, b.AllInstancesOf(ctx, "Run")))
}

func mustFind(t *testing.T, b *Badger, class, id string) any {
	t.Helper()
	v, ok, err := b.FindByID(context.Background(), class, id)
	require.NoError(t, err)
	require.True(t, ok)
	return v
}

func TestJoin(t *testing.T) {
	u := universe(t)
	ctx := context.Background()
	first := NewMemory(u, classinfo.NewRecord("Project", "a", nil))
	second := NewMemory(u,
		classinfo.NewRecord("Pipeline", "b", nil),
		classinfo.NewRecord("Project", "a", map[string]any{"shadowed": true}),
	)
	j := Join(first, nil, second)

	require.Equal(t, []string{"Project/a", "Pipeline/b", "Project/a"}, drain(t, j.AllInstancesOf(ctx, "Job")))

	v, ok, err := j.FindByID(ctx, "Job", "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, v.(*classinfo.Record).Props)

	_, ok, err = j.FindByID(ctx, "Job", "b")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = Join().FindByID(ctx, "Job", "a")
	require.NoError(t, err)
	require.False(t, ok)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	var errCount int
	for _, err := range j.AllInstancesOf(cancelled, "Job") {
		require.ErrorIs(t, err, context.Canceled)
		errCount++
	}
	require.Equal(t, 1, errCount)
}

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/config"
	"github.com/hanpama/classgraph/internal/datasource"
	"github.com/hanpama/classgraph/internal/errs"
	eventbus "github.com/hanpama/classgraph/internal/eventbus"
	events "github.com/hanpama/classgraph/internal/events"
	"github.com/hanpama/classgraph/internal/server"
)

const jenkinsManifest = `
name: jenkins
classes:
  - name: Job
    kind: interface
    accessors: [getFullName]
  - name: AbstractItem
    kind: abstract
    interfaces: [Job]
    exported: true
    properties:
      - {name: description, type: String}
  - name: AbstractProject
    kind: abstract
    super: AbstractItem
    exported: true
    properties:
      - {name: builds, type: List<Run>}
  - name: FreeStyleProject
    super: AbstractProject
    exported: true
  - name: Run
    accessors: [getId]
instances:
  - class: FreeStyleProject
    id: my-job
    props:
      builds:
        - {class: Run, id: "1"}
  - class: FreeStyleProject
    id: other
`

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func schemaConfig() config.SchemaConfig {
	cfg := config.Default().Schema
	cfg.Roots = []config.Root{{Name: "allItems", Class: "Job"}}
	return cfg
}

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jenkins.yaml"), []byte(content), 0o644))
}

func gql(t *testing.T, h http.Handler, query string) map[string]any {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"query": query})
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestServesPluginClasses(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })
	var loads []events.PluginsLoaded
	var builds []events.SchemaBuildFinish
	defer eventbus.Subscribe(func(_ context.Context, e events.PluginsLoaded) { loads = append(loads, e) })()
	defer eventbus.Subscribe(func(_ context.Context, e events.SchemaBuildFinish) { builds = append(builds, e) })()

	dir := t.TempDir()
	writeManifest(t, dir, jenkinsManifest)
	u := classinfo.NewUniverse()
	svc, err := New(u, nil, schemaConfig(), WithLogger(quiet))
	require.NoError(t, err)
	require.Nil(t, svc.Compiled())
	require.NoError(t, svc.LoadPlugins(context.Background(), dir))

	h, err := server.New(svc.Engines())
	require.NoError(t, err)
	got := gql(t, h, `{
  allItems(id: "my-job") { __typename _class id ... on FreeStyleProject { builds { __typename id } } }
  page: allItems(offset: 5, limit: 10) { id }
}`)
	want := map[string]any{"data": map[string]any{
		"allItems": []any{map[string]any{
			"__typename": "FreeStyleProject",
			"_class":     "FreeStyleProject",
			"id":         "my-job",
			"builds":     []any{map[string]any{"__typename": "Run__", "id": "1"}},
		}},
		"page": []any{},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, loads, 1)
	require.NoError(t, loads[0].Err)
	require.Equal(t, 5, loads[0].Classes)
	require.Equal(t, 2, loads[0].Instances)
	require.Len(t, builds, 1)
	require.NoError(t, builds[0].Err)
	require.Positive(t, builds[0].Fallbacks)
}

func TestFailedReloadKeepsServing(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, jenkinsManifest)
	u := classinfo.NewUniverse()
	svc, err := New(u, nil, schemaConfig(), WithLogger(quiet))
	require.NoError(t, err)
	require.NoError(t, svc.LoadPlugins(context.Background(), dir))
	before := svc.Compiled()

	writeManifest(t, dir, "name: [broken")
	err = svc.LoadPlugins(context.Background(), dir)
	require.Equal(t, errs.Invalid, errs.Classify(err))
	require.Same(t, before, svc.Compiled())

	// Dropping the root class does not compile; the previous classes return.
	writeManifest(t, dir, "name: empty\n")
	err = svc.LoadPlugins(context.Background(), dir)
	require.ErrorIs(t, err, errs.ErrUnknownType)
	require.Same(t, before, svc.Compiled())
	_, ok := u.Lookup("FreeStyleProject")
	require.True(t, ok)

	h, err := server.New(svc.Engines())
	require.NoError(t, err)
	got := gql(t, h, `{ allItems { id } }`)
	require.Equal(t, map[string]any{"allItems": []any{
		map[string]any{"id": "my-job"},
		map[string]any{"id": "other"},
	}}, got["data"])
}

func TestPluginsCannotReplaceHostClasses(t *testing.T) {
	u := classinfo.NewUniverse()
	host := &classinfo.Class{Name: "User", Exported: true, Accessors: []classinfo.Accessor{classinfo.RecordAccessor("getId")}}
	require.NoError(t, u.Register(host))
	cfg := schemaConfig()
	cfg.Roots = []config.Root{{Name: "allUsers", Class: "User"}}
	svc, err := New(u, nil, cfg, WithLogger(quiet))
	require.NoError(t, err)
	require.NoError(t, svc.Rebuild(context.Background()))
	before := svc.Compiled()

	dir := t.TempDir()
	writeManifest(t, dir, "name: users\nclasses:\n  - name: User\n    exported: true\n")
	err = svc.LoadPlugins(context.Background(), dir)
	require.ErrorIs(t, err, errs.ErrInvalidSchema)
	require.Same(t, before, svc.Compiled())

	writeManifest(t, dir, "name: empty\n")
	require.NoError(t, svc.LoadPlugins(context.Background(), dir))
	got, ok := u.Lookup("User")
	require.True(t, ok)
	require.Same(t, host, got)
	_, ok = svc.Compiled().Node("User")
	require.True(t, ok)
}

func TestPrimarySourceComesFirst(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, jenkinsManifest)
	u := classinfo.NewUniverse()
	primary := datasource.NewMemory(u, classinfo.NewRecord("FreeStyleProject", "stored", nil))
	cfg := schemaConfig()
	cfg.DefaultLimit = 2
	svc, err := New(u, primary, cfg, WithLogger(quiet))
	require.NoError(t, err)
	require.NoError(t, svc.LoadPlugins(context.Background(), dir))

	h, err := server.New(svc.Engines())
	require.NoError(t, err)
	got := gql(t, h, `{ allItems { id } }`)
	require.Equal(t, map[string]any{"allItems": []any{
		map[string]any{"id": "stored"},
		map[string]any{"id": "my-job"},
	}}, got["data"])
}

func TestRebuildWithoutRootsFails(t *testing.T) {
	svc, err := New(classinfo.NewUniverse(), nil, config.Default().Schema, WithLogger(quiet))
	require.NoError(t, err)
	require.ErrorIs(t, svc.Rebuild(context.Background()), errs.ErrInvalidSchema)
	require.Nil(t, svc.Engines().Engine())

	_, err = New(nil, nil, config.Default().Schema)
	require.Error(t, err)
}

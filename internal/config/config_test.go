package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/errs"
	"github.com/hanpama/classgraph/internal/query"
	"github.com/hanpama/classgraph/internal/typegraph"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	id, _ := cfg.Schema.IDPropertyPolicy()
	require.Equal(t, typegraph.SuppressIDAlways, id)
	ident, _ := cfg.Schema.IdentityPolicy()
	require.Equal(t, classinfo.IdentityFirstDeclared, ident)
	order, _ := cfg.Schema.Order()
	require.Equal(t, query.SliceThenFilter, order)

	empty, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, cfg, empty)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classgraph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: 127.0.0.1:9000
  timeout: 3s
  rate_limit: 50
  burst: 10
schema:
  roots:
    - {name: allItems, class: Job}
    - {name: allUsers, class: User}
  filter_order: filter-then-slice
  id_property: when-identity
  identity: prefer-id
plugins:
  dir: ./plugins
  watch: true
storage:
  driver: badger
  path: /var/lib/classgraph
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.Equal(t, "/graphql", cfg.Server.Path)
	require.Equal(t, 3*time.Second, cfg.Server.Timeout)
	require.Equal(t, 50.0, cfg.Server.RateLimit)
	require.True(t, cfg.Server.Playground)
	require.Equal(t, []Root{{Name: "allItems", Class: "Job"}, {Name: "allUsers", Class: "User"}}, cfg.Schema.Roots)
	require.Equal(t, 100, cfg.Schema.DefaultLimit)
	order, _ := cfg.Schema.Order()
	require.Equal(t, query.FilterThenSlice, order)
	require.Equal(t, 500*time.Millisecond, cfg.Plugins.Debounce)
	require.Equal(t, DriverBadger, cfg.Storage.Driver)

	var buf bytes.Buffer
	cfg.Log.Logger(&buf).Debug("hello", "k", 1)
	require.True(t, strings.HasPrefix(buf.String(), "{"), buf.String())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	_, err := Parse([]byte(`
server:
  path: graphql
schema:
  roots:
    - {name: allItems}
    - {name: a, class: A}
    - {name: a, class: B}
  filter_order: sideways
storage:
  driver: postgres
log:
  level: loud
`))
	require.Error(t, err)
	require.Equal(t, errs.Invalid, errs.Classify(err))
	for _, want := range []string{
		"server.path", "schema.roots[0]", `duplicate root "a"`, "schema.filter_order", "storage.driver", "log.level",
	} {
		require.Contains(t, err.Error(), want)
	}
}

func TestUnknownKeysAreRejected(t *testing.T) {
	_, err := Parse([]byte("server:\n  adress: :80\n"))
	require.Error(t, err)
	require.Equal(t, errs.Invalid, errs.Classify(err))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

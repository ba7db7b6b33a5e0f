package protoreg

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/typegraph"
)

func prop(name, typ string) classinfo.Property {
	return classinfo.RecordProperty(name, classinfo.ParseTypeRef(typ), "")
}

func compile(t *testing.T, extra ...classinfo.Property) *typegraph.CompiledSchema {
	t.Helper()
	u := classinfo.NewUniverse()
	require.NoError(t, u.Register(
		&classinfo.Class{Name: "Job", Kind: classinfo.Interface, Accessors: []classinfo.Accessor{classinfo.RecordAccessor("getFullName")}},
		&classinfo.Class{Name: "FreeStyleProject", Interfaces: []string{"Job"}, Exported: true,
			Description: "A freestyle job.",
			Properties: append([]classinfo.Property{
				prop("displayName", "String"),
				prop("disabled", "boolean"),
				prop("nextBuildNumber", "long"),
				prop("builds", "List<Run>"),
			}, extra...)},
		&classinfo.Class{Name: "Run", Exported: true, Accessors: []classinfo.Accessor{classinfo.RecordAccessor("getId")},
			Properties: []classinfo.Property{prop("duration", "double"), prop("timestamp", "java.util.Date")}},
	))
	cs, err := typegraph.Build(typegraph.Config{
		Universe: u,
		Roots:    []typegraph.RootField{{Name: "allItems", Class: "Job"}},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return cs
}

func TestBuildMessages(t *testing.T) {
	reg, err := Build(compile(t), "jenkins.v1")
	require.NoError(t, err)
	require.Equal(t, "jenkins/v1.proto", reg.File().Path())
	require.Equal(t, protoreflect.FullName("jenkins.v1"), reg.File().Package())

	require.NotNil(t, reg.Message("FreeStyleProject"))
	require.Nil(t, reg.Message("Query"))

	class := reg.SourceField("FreeStyleProject", "_class")
	require.Equal(t, protoreflect.Name("class"), class.Name())
	require.Equal(t, protoreflect.StringKind, class.Kind())
	require.False(t, class.HasPresence())

	disabled := reg.SourceField("FreeStyleProject", "disabled")
	require.Equal(t, protoreflect.BoolKind, disabled.Kind())
	require.True(t, disabled.HasPresence())

	next := reg.SourceField("FreeStyleProject", "nextBuildNumber")
	require.Equal(t, protoreflect.Name("next_build_number"), next.Name())
	require.Equal(t, protoreflect.Int64Kind, next.Kind())

	builds := reg.SourceField("FreeStyleProject", "builds")
	require.True(t, builds.IsList())
	require.Equal(t, protoreflect.MessageKind, builds.Kind())
	require.Equal(t, protoreflect.Name("Run"), builds.Message().Name())

	ts := reg.SourceField("Run", "timestamp")
	require.Equal(t, protoreflect.StringKind, ts.Kind())

	job := reg.Message("Job")
	require.NotNil(t, job.Oneofs().ByName("value"))
	choice := job.Fields().ByName("free_style_project")
	require.NotNil(t, choice)
	require.Equal(t, protoreflect.Name("value"), choice.ContainingOneof().Name())
}

func TestFieldNumbersAreStable(t *testing.T) {
	before, err := Build(compile(t), "")
	require.NoError(t, err)
	require.Equal(t, "classgraph.proto", before.File().Path())
	after, err := Build(compile(t, prop("assignedLabel", "String")), "")
	require.NoError(t, err)

	for _, name := range []string{"_class", "id", "displayName", "disabled", "builds"} {
		require.Equal(t,
			before.SourceField("FreeStyleProject", name).Number(),
			after.SourceField("FreeStyleProject", name).Number(), name)
	}
	require.NotNil(t, after.SourceField("FreeStyleProject", "assignedLabel"))
}

func TestRender(t *testing.T) {
	reg, err := Build(compile(t), "jenkins.v1")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Render(reg, &buf))
	out := buf.String()
	require.Contains(t, out, `syntax = "proto3";`)
	require.Contains(t, out, "package jenkins.v1;")
	require.Contains(t, out, "message FreeStyleProject {")
	require.Contains(t, out, "A freestyle job.")
	require.Contains(t, out, "oneof value {")

	path, err := WriteFile(reg, t.TempDir())
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, out, string(data))
	require.Equal(t, "v1.proto", filepath.Base(path))
}

func TestTagNumbers(t *testing.T) {
	names := []string{"a", "b", "c", "display_name", "class", "id"}
	nums := tagNumbers(names)
	seen := map[int]bool{}
	for i, n := range nums {
		if n < 1 || n > 31767 || (n >= 19000 && n <= 19999) {
			t.Fatalf("%s got tag %d", names[i], n)
		}
		if seen[n] {
			t.Fatalf("duplicate tag %d", n)
		}
		seen[n] = true
	}
	reversed := tagNumbers([]string{"id", "class", "display_name", "c", "b", "a"})
	for i := range names {
		require.Equal(t, nums[i], reversed[len(names)-1-i])
	}
	require.Nil(t, tagNumbers(nil))
}

func TestNameField(t *testing.T) {
	require.Equal(t, protoreflect.Name("class"), nameField("_class"))
	require.Equal(t, protoreflect.Name("last_build"), nameField("lastBuild"))
	require.Equal(t, protoreflect.Name("f_1st"), nameField("1st"))

	s := newNameSet()
	require.Equal(t, protoreflect.Name("id"), s.claim("id"))
	require.Equal(t, protoreflect.Name("id_2"), s.claim("id"))
}

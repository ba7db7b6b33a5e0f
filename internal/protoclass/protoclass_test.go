package protoclass

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/typegraph"
)

func field(name, json string, number int32, typ descriptorpb.FieldDescriptorProto_Type, typeName string, repeated bool) *descriptorpb.FieldDescriptorProto {
	label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	if repeated {
		label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	}
	f := &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		JsonName: proto.String(json),
		Number:   proto.Int32(number),
		Type:     typ.Enum(),
		Label:    label.Enum(),
	}
	if typeName != "" {
		f.TypeName = proto.String(typeName)
	}
	return f
}

func jenkinsProto() *descriptorpb.FileDescriptorProto {
	str := descriptorpb.FieldDescriptorProto_TYPE_STRING
	msg := descriptorpb.FieldDescriptorProto_TYPE_MESSAGE
	return &descriptorpb.FileDescriptorProto{
		Name:       proto.String("jenkins.proto"),
		Package:    proto.String("jenkins"),
		Syntax:     proto.String("proto3"),
		Dependency: []string{"google/protobuf/timestamp.proto"},
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: proto.String("Result"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: proto.String("UNKNOWN"), Number: proto.Int32(0)},
				{Name: proto.String("SUCCESS"), Number: proto.Int32(1)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("Run"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("id", "id", 1, str, "", false),
					field("started_at", "startedAt", 2, msg, ".google.protobuf.Timestamp", false),
					field("result", "result", 3, descriptorpb.FieldDescriptorProto_TYPE_ENUM, ".jenkins.Result", false),
				},
			},
			{
				Name: proto.String("Project"),
				Field: []*descriptorpb.FieldDescriptorProto{
					field("id", "id", 1, str, "", false),
					field("display_name", "displayName", 2, str, "", false),
					field("builds", "builds", 3, msg, ".jenkins.Run", true),
					field("disabled", "disabled", 4, descriptorpb.FieldDescriptorProto_TYPE_BOOL, "", false),
					field("last_build", "lastBuild", 5, msg, ".jenkins.Run", false),
				},
			},
		},
	}
}

func jenkinsFile(t *testing.T) protoreflect.FileDescriptor {
	t.Helper()
	fd, err := protodesc.NewFile(jenkinsProto(), protoregistry.GlobalFiles)
	require.NoError(t, err)
	return fd
}

func propNames(c *classinfo.Class) []string {
	out := make([]string, len(c.Properties))
	for i, p := range c.Properties {
		out[i] = p.Name + ":" + p.Type.String()
	}
	return out
}

func TestClasses(t *testing.T) {
	classes := Classes(jenkinsFile(t))
	require.Len(t, classes, 2)
	require.Equal(t, "jenkins.Run", classes[0].Name)
	require.Equal(t, []string{"id:string", "startedAt:time.Time", "result:string"}, propNames(classes[0]))
	project := classes[1]
	require.Equal(t, "jenkins.Project", project.Name)
	require.True(t, project.Exported)
	require.Len(t, project.Accessors, 1)
	require.Equal(t, "getId", project.Accessors[0].Name)
	require.Equal(t, "builds", project.Properties[2].Name)
	require.True(t, project.Properties[2].Type.IsList())
}

func TestDynamicInstances(t *testing.T) {
	fd := jenkinsFile(t)
	u := classinfo.NewUniverse()
	require.NoError(t, Register(u, fd))

	projectMD := fd.Messages().ByName("Project")
	m, err := DecodeJSON(projectMD, []byte(`{
		"id": "my-job",
		"displayName": "My Job",
		"disabled": true,
		"builds": [{"id": "1", "startedAt": "2024-03-01T00:30:00Z", "result": "SUCCESS"}]
	}`))
	require.NoError(t, err)

	c, ok := u.ClassOf(m)
	require.True(t, ok)
	require.Equal(t, "jenkins.Project", c.Name)
	id, ok := u.IdentityOf(m)
	require.True(t, ok)
	require.Equal(t, "my-job", id)

	props := map[string]any{}
	for _, p := range c.Properties {
		v, err := p.Get(m)
		require.NoError(t, err)
		props[p.Name] = v
	}
	require.Equal(t, "My Job", props["displayName"])
	require.Equal(t, true, props["disabled"])
	require.Nil(t, props["lastBuild"])

	builds := props["builds"].([]any)
	require.Len(t, builds, 1)
	run, ok := u.ClassOf(builds[0])
	require.True(t, ok)
	require.Equal(t, "jenkins.Run", run.Name)
	started, err := run.Properties[1].Get(builds[0])
	require.NoError(t, err)
	require.True(t, time.Date(2024, 3, 1, 0, 30, 0, 0, time.UTC).Equal(started.(time.Time)))
	result, err := run.Properties[2].Get(builds[0])
	require.NoError(t, err)
	require.Equal(t, "SUCCESS", result)

	_, err = run.Properties[0].Get(m)
	require.Error(t, err, "a Run property cannot read a Project")
	_, err = run.Properties[0].Get("not a message")
	require.Error(t, err)

	_, err = DecodeJSON(projectMD, []byte(`{"unknown": 1}`))
	require.Error(t, err)
}

func TestCompilesIntoSchema(t *testing.T) {
	u := classinfo.NewUniverse()
	require.NoError(t, Register(u, jenkinsFile(t)))
	cs, err := typegraph.Build(typegraph.Config{
		Universe: u,
		Roots:    []typegraph.RootField{{Name: "allProjects", Class: "jenkins.Project"}},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	project, ok := cs.Node("jenkins_Project")
	require.True(t, ok)
	require.Equal(t, typegraph.Object, project.Kind)
	var names []string
	for _, f := range project.Fields {
		names = append(names, f.Name)
	}
	require.Equal(t, []string{"_class", "id", "displayName", "builds", "disabled", "lastBuild"}, names)
	_, ok = cs.Node("jenkins_Run")
	require.True(t, ok)
	require.Contains(t, cs.SDL(), "startedAt: DateTime")
}

func TestLoadDescriptorSet(t *testing.T) {
	set := &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{
		protodesc.ToFileDescriptorProto(timestamppb.File_google_protobuf_timestamp_proto),
		jenkinsProto(),
	}}
	data, err := proto.Marshal(set)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "jenkins.pb")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	reg, err := LoadDescriptorSet(path)
	require.NoError(t, err)
	files := Files(reg)
	require.Len(t, files, 2)
	require.Equal(t, "google/protobuf/timestamp.proto", files[0].Path())

	var names []string
	for _, c := range Classes(files...) {
		names = append(names, c.Name)
	}
	require.Equal(t, []string{"jenkins.Run", "jenkins.Project"}, names)

	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))
	_, err = LoadDescriptorSet(path)
	require.Error(t, err)
}

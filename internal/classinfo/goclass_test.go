package classinfo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type FixtureJob interface {
	GetFullName() string
}

type FixtureItem struct {
	Name        string `export:"" doc:"Item name."`
	DisplayName string `export:"displayName"`
	Secret      string `export:"-"`
}

func (i *FixtureItem) GetFullName() string { return "folder/" + i.Name }

type FixtureProject struct {
	FixtureItem
	Disabled bool `export:""`
}

type FixtureFreeStyle struct {
	*FixtureProject
	Builds  []*FixtureRun `export:""`
	Updated time.Time     `export:""`
	Labels  [2]string     `export:""`
}

type FixtureRun struct {
	Number int
}

func goUniverse(t *testing.T) *Universe {
	t.Helper()
	u := NewUniverse()
	require.NoError(t, u.RegisterGo(
		TypeOf[FixtureJob]().Named("Job"),
		TypeOf[FixtureItem]().Named("Item").AsAbstract(),
		TypeOf[FixtureProject]().Named("Project").AsAbstract(),
		TypeOf[*FixtureFreeStyle]().Named("FreeStyle").Describe("Freestyle project."),
		TypeOf[FixtureRun]().Named("Run"),
	))
	return u
}

func TestRegisterGoHierarchy(t *testing.T) {
	u := goUniverse(t)

	fs, ok := u.Lookup("FreeStyle")
	require.True(t, ok)
	require.Equal(t, "Project", fs.Super)
	require.Equal(t, Concrete, fs.Kind)
	require.True(t, fs.Exported, "exported metadata is inherited")
	require.Equal(t, "Freestyle project.", fs.Description)
	require.Equal(t, []string{"Job"}, fs.Interfaces)

	item, _ := u.Lookup("Item")
	require.Equal(t, Abstract, item.Kind)
	require.True(t, u.IsAssignable("FreeStyle", "Job"))

	run, _ := u.Lookup("Run")
	require.False(t, run.Exported)
}

func TestRegisterGoProperties(t *testing.T) {
	u := goUniverse(t)
	item, _ := u.Lookup("Item")
	props, err := u.Properties(item)
	require.NoError(t, err)
	require.Len(t, props, 2)
	require.Equal(t, "name", props[0].Name)
	require.Equal(t, "Item name.", props[0].Description)
	require.Equal(t, "displayName", props[1].Name)

	fs, _ := u.Lookup("FreeStyle")
	props, err = u.Properties(fs)
	require.NoError(t, err)
	got := map[string]string{}
	for _, p := range props {
		got[p.Name] = p.Type.String()
	}
	require.Equal(t, map[string]string{
		"builds":  "List<Run>",
		"updated": "time.Time",
		"labels":  "string[]",
	}, got)
}

func TestRegisterGoGettersReachEmbeddedFields(t *testing.T) {
	u := goUniverse(t)
	inst := &FixtureFreeStyle{FixtureProject: &FixtureProject{FixtureItem: FixtureItem{Name: "core"}}}

	item, _ := u.Lookup("Item")
	v, err := item.Properties[0].Get(inst)
	require.NoError(t, err)
	require.Equal(t, "core", v)

	_, err = item.Properties[0].Get(&FixtureRun{})
	require.Error(t, err)

	c, ok := u.ClassOf(inst)
	require.True(t, ok)
	require.Equal(t, "FreeStyle", c.Name)

	id, ok := u.IdentityOf(inst)
	require.True(t, ok)
	require.Equal(t, "folder/core", id)
}

func TestRegisterGoRejectsNonStruct(t *testing.T) {
	u := NewUniverse()
	require.Error(t, u.RegisterGo(TypeOf[int]()))
}

func TestGoClassName(t *testing.T) {
	require.Equal(t, "time.Time", GoClassName(timeType))
	require.Equal(t, "github.com.hanpama.classgraph.internal.classinfo.FixtureRun", GoClassName(TypeOf[*FixtureRun]().Type))
}

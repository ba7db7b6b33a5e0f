package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/config"
	"github.com/hanpama/classgraph/internal/datasource"
	"github.com/hanpama/classgraph/internal/plugin"
	"github.com/hanpama/classgraph/internal/protoreg"
)

type CompileSDLCmd struct {
	Source `embed:""`
	Out    string `short:"o" type:"path" help:"Write the schema to this file instead of stdout"`
}

func (c *CompileSDLCmd) Run(e *env) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	log := quietLogger(cfg, e.stderr)
	u, err := universe(cfg)
	if err != nil {
		return err
	}
	svc, err := compile(context.Background(), cfg, datasource.NewMemory(u), u, log)
	if err != nil {
		return err
	}
	cs := svc.Compiled()
	if c.Out == "" {
		_, err := io.WriteString(e.stdout, cs.SDL())
		return err
	}
	if err := os.WriteFile(c.Out, []byte(cs.SDL()), 0o644); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(e.stderr, "wrote %d types to %s\n", len(cs.Nodes()), c.Out)
	return nil
}

type CompileProtoCmd struct {
	Source  `embed:""`
	Package string `default:"classgraph" help:"Protobuf package of the generated file"`
	Out     string `short:"o" type:"path" help:"Output directory; prints to stdout when empty"`
}

func (c *CompileProtoCmd) Run(e *env) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	u, err := universe(cfg)
	if err != nil {
		return err
	}
	svc, err := compile(context.Background(), cfg, datasource.NewMemory(u), u, quietLogger(cfg, e.stderr))
	if err != nil {
		return err
	}
	reg, err := protoreg.Build(svc.Compiled(), c.Package)
	if err != nil {
		return err
	}
	if c.Out == "" {
		return protoreg.Render(reg, e.stdout)
	}
	path, err := protoreg.WriteFile(reg, c.Out)
	if err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(e.stderr, "wrote %s\n", path)
	return nil
}

type ClassesCmd struct {
	Source `embed:""`
	All    bool `help:"Include internal and unexported classes"`
}

func (c *ClassesCmd) Run(e *env) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	u, err := universe(cfg)
	if err != nil {
		return err
	}
	if cfg.Plugins.Dir != "" {
		bundle, err := plugin.Load(cfg.Plugins.Dir)
		if err != nil {
			return err
		}
		if err := bundle.Apply(u, nil); err != nil {
			return err
		}
	}

	classes := u.Classes()
	sort.Slice(classes, func(i, j int) bool { return classes[i].Name < classes[j].Name })

	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", bold("CLASS"), bold("KIND"), bold("SUPER"), bold("FLAGS"))
	for _, cl := range classes {
		if !c.All && (cl.Internal || !cl.Exported) {
			continue
		}
		super := cl.Super
		if super == "" {
			super = dim("-")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", cl.Name, cl.Kind, super, flags(cl))
	}
	return tw.Flush()
}

func flags(c *classinfo.Class) string {
	var out []string
	if c.Exported {
		out = append(out, "exported")
	}
	if c.Internal {
		out = append(out, "internal")
	}
	if c.IsProxy() {
		out = append(out, "proxy")
	}
	if len(c.Interfaces) > 0 {
		out = append(out, "implements "+strings.Join(c.Interfaces, ","))
	}
	return strings.Join(out, " ")
}

type ImportCmd struct {
	Config string `short:"c" type:"path" help:"YAML configuration file"`
	Dir    string `arg:"" type:"existingdir" help:"Plugin directory whose instances are stored"`
}

func (c *ImportCmd) Run(e *env) error {
	cfg := config.Default()
	if c.Config != "" {
		var err error
		if cfg, err = config.Load(c.Config); err != nil {
			return err
		}
	}
	if cfg.Storage.Driver != config.DriverBadger || cfg.Storage.Path == "" {
		return fmt.Errorf("import needs storage.driver %q with a storage.path", config.DriverBadger)
	}
	log := quietLogger(cfg, e.stderr)

	bundle, err := plugin.Load(c.Dir)
	if err != nil {
		return err
	}
	u, err := universe(cfg)
	if err != nil {
		return err
	}
	if err := bundle.Apply(u, nil); err != nil {
		return err
	}
	db, err := datasource.OpenBadger(cfg.Storage.Path, u, log)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Put(context.Background(), bundle.Instances...); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(e.stderr, "stored %d instances from %d manifests\n", len(bundle.Instances), len(bundle.Manifests))
	return nil
}

// quietLogger keeps one-shot commands from logging below warnings unless
// the configuration asks for debug output.
func quietLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	lc := cfg.Log
	if !strings.EqualFold(lc.Level, "debug") {
		lc.Level = "warn"
	}
	return lc.Logger(w)
}

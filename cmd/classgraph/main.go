package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/hanpama/classgraph/internal/app"
	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/config"
	"github.com/hanpama/classgraph/internal/datasource"
	"github.com/hanpama/classgraph/internal/protoclass"
)

var version = "dev"

// CLI is the root command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`

	Serve        ServeCmd        `cmd:"" help:"Run the HTTP GraphQL server over the class universe"`
	CompileSDL   CompileSDLCmd   `cmd:"" name:"compile-sdl" help:"Compile the class universe and print its GraphQL schema"`
	CompileProto CompileProtoCmd `cmd:"" name:"compile-proto" help:"Generate protobuf messages for the compiled schema"`
	Classes      ClassesCmd      `cmd:"" help:"List the classes of the universe"`
	Import       ImportCmd       `cmd:"" help:"Store plugin instances in the badger database"`
}

// env carries the output streams every command writes to.
type env struct {
	stdout io.Writer
	stderr io.Writer
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "classgraph: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("classgraph"),
		kong.Description("Serve an introspectable class universe as a GraphQL API"),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run(&env{stdout: stdout, stderr: stderr})
}

// Source holds the flags shared by commands that assemble a universe.
type Source struct {
	Config  string   `short:"c" type:"path" help:"YAML configuration file"`
	Plugins string   `type:"path" help:"Plugin manifest directory; overrides plugins.dir"`
	Root    []string `help:"Query root as name=Class; replaces schema.roots. Repeatable"`
}

func (s *Source) load() (*config.Config, error) {
	cfg := config.Default()
	if s.Config != "" {
		var err error
		if cfg, err = config.Load(s.Config); err != nil {
			return nil, err
		}
	}
	if s.Plugins != "" {
		cfg.Plugins.Dir = s.Plugins
	}
	if len(s.Root) > 0 {
		roots, err := parseRoots(s.Root)
		if err != nil {
			return nil, err
		}
		cfg.Schema.Roots = roots
	}
	return cfg, cfg.Validate()
}

func parseRoots(args []string) ([]config.Root, error) {
	roots := make([]config.Root, 0, len(args))
	for _, arg := range args {
		name, class, ok := strings.Cut(arg, "=")
		name, class = strings.TrimSpace(name), strings.TrimSpace(class)
		if !ok || name == "" || class == "" {
			return nil, fmt.Errorf("invalid root %q, want name=Class", arg)
		}
		roots = append(roots, config.Root{Name: name, Class: class})
	}
	return roots, nil
}

// universe creates the class universe with the configured identity policy
// and registers the messages of every configured descriptor set.
func universe(cfg *config.Config) (*classinfo.Universe, error) {
	policy, err := cfg.Schema.IdentityPolicy()
	if err != nil {
		return nil, err
	}
	u := classinfo.NewUniverse(classinfo.WithIdentityPolicy(policy))
	for _, path := range cfg.Schema.Descriptors {
		reg, err := protoclass.LoadDescriptorSet(path)
		if err != nil {
			return nil, err
		}
		if err := protoclass.Register(u, protoclass.Files(reg)...); err != nil {
			return nil, fmt.Errorf("register %s: %w", path, err)
		}
	}
	return u, nil
}

// openStore opens the configured primary data source. The returned close
// function is never nil.
func openStore(cfg *config.Config, u *classinfo.Universe, log *slog.Logger) (datasource.Source, func() error, error) {
	switch cfg.Storage.Driver {
	case config.DriverBadger:
		db, err := datasource.OpenBadger(cfg.Storage.Path, u, log)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return datasource.NewMemory(u), func() error { return nil }, nil
	}
}

// compile assembles a service from cfg and builds its schema once, loading
// the plugin directory when one is configured.
func compile(ctx context.Context, cfg *config.Config, primary datasource.Source, u *classinfo.Universe, log *slog.Logger) (*app.Service, error) {
	svc, err := app.New(u, primary, cfg.Schema, app.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if cfg.Plugins.Dir != "" {
		err = svc.LoadPlugins(ctx, cfg.Plugins.Dir)
	} else {
		err = svc.Rebuild(ctx)
	}
	if err != nil {
		return nil, err
	}
	return svc, nil
}

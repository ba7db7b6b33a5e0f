// Package config loads the classgraph configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hanpama/classgraph/internal/classinfo"
	"github.com/hanpama/classgraph/internal/errs"
	"github.com/hanpama/classgraph/internal/query"
	"github.com/hanpama/classgraph/internal/typegraph"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Schema    SchemaConfig    `yaml:"schema"`
	Plugins   PluginsConfig   `yaml:"plugins"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	Path         string        `yaml:"path"`
	Timeout      time.Duration `yaml:"timeout"`
	Pretty       bool          `yaml:"pretty"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	// RateLimit is in requests per second; 0 disables limiting.
	RateLimit  float64 `yaml:"rate_limit"`
	Burst      int     `yaml:"burst"`
	Playground bool    `yaml:"playground"`
}

// Root declares one query root: a field listing instances of a class.
type Root struct {
	Name  string `yaml:"name"`
	Class string `yaml:"class"`
}

type SchemaConfig struct {
	Roots []Root `yaml:"roots"`
	// Exclude hides classes from the schema.
	Exclude      []string `yaml:"exclude"`
	IDProperty   string   `yaml:"id_property"`
	Identity     string   `yaml:"identity"`
	FilterOrder  string   `yaml:"filter_order"`
	DefaultLimit int      `yaml:"default_limit"`
	// Descriptors are protobuf FileDescriptorSet files whose messages join
	// the class universe.
	Descriptors []string `yaml:"descriptors"`
}

type PluginsConfig struct {
	Dir      string        `yaml:"dir"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

const (
	DriverMemory = "memory"
	DriverBadger = "badger"
)

type StorageConfig struct {
	Driver string `yaml:"driver"`
	// Path is the badger directory. Empty keeps badger in memory.
	Path string `yaml:"path"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
	MetricsPath  string `yaml:"metrics_path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			Path:         "/graphql",
			Timeout:      10 * time.Second,
			MaxBodyBytes: 1 << 20,
			Playground:   true,
		},
		Schema: SchemaConfig{
			IDProperty:   "always",
			Identity:     "first-declared",
			FilterOrder:  query.SliceThenFilter.String(),
			DefaultLimit: typegraph.DefaultLimit,
		},
		Plugins:   PluginsConfig{Debounce: 500 * time.Millisecond},
		Storage:   StorageConfig{Driver: DriverMemory},
		Telemetry: TelemetryConfig{ServiceName: "classgraph", MetricsPath: "/metrics"},
		Log:       LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and validates the result. Unknown keys
// are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML document over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errs.WrapInvalid(err, "config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...any) { problems = append(problems, fmt.Errorf(format, args...)) }

	if c.Server.Addr == "" {
		add("server.addr is required")
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		add("server.path must start with /")
	}
	if c.Server.Timeout < 0 {
		add("server.timeout must not be negative")
	}
	if c.Server.MaxBodyBytes < 0 {
		add("server.max_body_bytes must not be negative")
	}
	if c.Server.RateLimit < 0 || c.Server.Burst < 0 {
		add("server.rate_limit and server.burst must not be negative")
	}

	seen := map[string]bool{}
	for i, r := range c.Schema.Roots {
		if r.Name == "" || r.Class == "" {
			add("schema.roots[%d] needs a name and a class", i)
			continue
		}
		if seen[r.Name] {
			add("schema.roots: duplicate root %q", r.Name)
		}
		seen[r.Name] = true
	}
	if _, err := c.Schema.IDPropertyPolicy(); err != nil {
		add("schema.id_property: %v", err)
	}
	if _, err := c.Schema.IdentityPolicy(); err != nil {
		add("schema.identity: %v", err)
	}
	if _, err := c.Schema.Order(); err != nil {
		add("schema.filter_order: %v", err)
	}
	if c.Schema.DefaultLimit < 0 {
		add("schema.default_limit must not be negative")
	}

	if c.Plugins.Watch && c.Plugins.Dir == "" {
		add("plugins.watch needs plugins.dir")
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverBadger:
	default:
		add("storage.driver must be %q or %q, got %q", DriverMemory, DriverBadger, c.Storage.Driver)
	}
	if c.Telemetry.MetricsPath != "" && !strings.HasPrefix(c.Telemetry.MetricsPath, "/") {
		add("telemetry.metrics_path must start with /")
	}
	if _, err := c.Log.level(); err != nil {
		add("log.level: %v", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		add("log.format must be text or json, got %q", c.Log.Format)
	}

	if len(problems) > 0 {
		return errs.WrapInvalid(errors.Join(problems...), "config")
	}
	return nil
}

func (s SchemaConfig) IDPropertyPolicy() (typegraph.IDPropertyPolicy, error) {
	return typegraph.ParseIDPropertyPolicy(s.IDProperty)
}

func (s SchemaConfig) IdentityPolicy() (classinfo.IdentityPolicy, error) {
	return classinfo.ParseIdentityPolicy(s.Identity)
}

func (s SchemaConfig) Order() (query.FilterOrder, error) {
	return query.ParseFilterOrder(s.FilterOrder)
}

func (l LogConfig) level() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(l.Level))
	return lvl, err
}

// Logger builds the process logger writing to w.
func (l LogConfig) Logger(w io.Writer) *slog.Logger {
	lvl, err := l.level()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

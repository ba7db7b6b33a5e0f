package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/hanpama/classgraph/internal/config"
	eventbus "github.com/hanpama/classgraph/internal/eventbus"
	"github.com/hanpama/classgraph/internal/metrics"
	"github.com/hanpama/classgraph/internal/otel"
	"github.com/hanpama/classgraph/internal/server"
)

const shutdownGrace = 5 * time.Second

type ServeCmd struct {
	Source `embed:""`
	Addr   string `help:"HTTP listen address; overrides server.addr"`
	Watch  bool   `help:"Reload plugins whenever the plugin directory changes"`
}

func (c *ServeCmd) Run(e *env) error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}
	if c.Watch {
		cfg.Plugins.Watch = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := cfg.Log.Logger(e.stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eventbus.Use(eventbus.New())
	shutdownTracing, err := otel.Setup(cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	handler, cleanup, err := mount(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	color.New(color.FgGreen).Fprintf(e.stderr, "classgraph listening on %s%s\n", cfg.Server.Addr, cfg.Server.Path)
	log.Info("server started", "addr", cfg.Server.Addr, "path", cfg.Server.Path)

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return srv.Shutdown(sctx)
}

// mount builds the service and the mux serving it. Plugin watching, when
// enabled, runs until ctx is done. cleanup releases the store and the
// metrics subscription.
func mount(ctx context.Context, cfg *config.Config, log *slog.Logger) (http.Handler, func(), error) {
	u, err := universe(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, closeStore, err := openStore(cfg, u, log)
	if err != nil {
		return nil, nil, err
	}
	m := metrics.New()
	unsubscribe := m.Subscribe()
	cleanup := func() {
		unsubscribe()
		if err := closeStore(); err != nil {
			log.Error("closing store", "err", err)
		}
	}

	svc, err := compile(ctx, cfg, store, u, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if cfg.Plugins.Watch {
		go func() {
			if err := svc.WatchPlugins(ctx, cfg.Plugins.Dir, cfg.Plugins.Debounce); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("plugin watcher stopped", "err", err)
			}
		}()
	}

	h, err := server.New(svc.Engines(), serverOptions(cfg.Server, log)...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	mux := http.NewServeMux()
	h.Mount(mux, cfg.Server.Path)
	if cfg.Telemetry.MetricsPath != "" {
		mux.Handle(cfg.Telemetry.MetricsPath, m.Handler())
	}
	return mux, cleanup, nil
}

func serverOptions(sc config.ServerConfig, log *slog.Logger) []server.Option {
	opts := []server.Option{
		server.WithLogger(log),
		server.WithPlayground(sc.Playground),
	}
	if sc.Timeout > 0 {
		opts = append(opts, server.WithTimeout(sc.Timeout))
	}
	if sc.Pretty {
		opts = append(opts, server.WithPretty())
	}
	if sc.MaxBodyBytes > 0 {
		opts = append(opts, server.WithMaxBodyBytes(sc.MaxBodyBytes))
	}
	if len(sc.CORSOrigins) > 0 {
		opts = append(opts, server.WithCORS(sc.CORSOrigins...))
	}
	if sc.RateLimit > 0 {
		opts = append(opts, server.WithRateLimit(sc.RateLimit, sc.Burst))
	}
	return opts
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"AskKit/internal/backend"
	"AskKit/internal/cipher"
	"AskKit/internal/config"
	"AskKit/internal/ipc"
	"AskKit/internal/native"
	"AskKit/internal/telemetry"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// env is the process wide setup shared by the commands
type env struct {
	cfg     config.Config
	flags   *globalFlags
	logger  *slog.Logger
	tracer  trace.Tracer
	meter   metric.Meter
	closers []func()
}

func setup(cmd *cobra.Command, flags *globalFlags) (*env, error) {
	cfg, err := loadConfig(cmd, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	e := &env{cfg: cfg, flags: flags, logger: logger}
	e.onClose(func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log: %v\n", err)
		}
	})

	tracer, meter, shutdown, err := telemetry.InitTelemetry(cmd.Context(), cfg.LogDir)
	if err != nil {
		e.close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	e.tracer, e.meter = tracer, meter
	e.onClose(shutdown)

	if cfg.Debug {
		logger.Debug("debug mode enabled", "command", cmd.CommandPath(), "data_dir", cfg.DataDir)
	}
	return e, nil
}

// onClose registers fn to run on close, most recent first
func (e *env) onClose(fn func()) {
	e.closers = append(e.closers, fn)
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
}

// openBackend opens the database and returns a router serving every
// launcher command in this process.
func (e *env) openBackend(ctx context.Context) (*ipc.Router, error) {
	db, err := telemetry.OpenDB(e.cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	e.onClose(func() { db.Close() })

	c, err := cipher.Open(e.cfg.KeyPath(), e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open key: %w", err)
	}

	client, err := backend.NewClient(e.logger,
		backend.WithEndpoints(e.cfg.Providers),
		backend.WithTracer(e.tracer),
		backend.WithMeter(e.meter),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	bus := ipc.NewBus()
	b, err := native.New(native.Deps{
		DB:       db,
		Cipher:   c,
		Streamer: client,
		Bus:      bus,
		Logger:   e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}
	e.onClose(func() { b.Close() })

	if err := b.Seed(ctx); err != nil {
		return nil, err
	}

	router := ipc.NewRouter(bus,
		ipc.WithTracer(e.tracer),
		ipc.WithMeter(e.meter),
		ipc.WithRouterLogger(e.logger),
	)
	b.Register(router)
	return router, nil
}

// bridge connects to the backend over the configured transport
func (e *env) bridge(ctx context.Context) (ipc.Bridge, error) {
	var (
		br  ipc.Bridge
		err error
	)
	switch e.cfg.Bridge.Transport {
	case config.TransportInProcess:
		br, err = e.openBackend(ctx)
	case config.TransportWebSocket:
		br, err = ipc.NewWebSocketClient(ctx, "ws://"+e.cfg.Bridge.Addr+"/ws", e.logger)
	case config.TransportHTTP:
		br, err = ipc.NewHTTPClient(ctx, "http://"+e.cfg.Bridge.Addr, e.logger)
	case config.TransportStdio:
		br, err = e.spawnBackend()
	default:
		return nil, fmt.Errorf("unknown transport: %s", e.cfg.Bridge.Transport)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect bridge: %w", err)
	}
	e.onClose(func() {
		if err := br.Close(); err != nil {
			e.logger.Warn("failed to close bridge", "error", err)
		}
	})
	return br, nil
}

// spawnBackend runs `askkit serve --transport stdio` as a child process
func (e *env) spawnBackend() (*ipc.StdioClient, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}
	args := []string{
		"serve",
		"--transport", config.TransportStdio,
		"--config", e.flags.configPath,
		"--data-dir", e.cfg.DataDir,
		"--log-dir", e.cfg.LogDir,
	}
	if e.cfg.Debug {
		args = append(args, "--debug")
	}
	return ipc.NewStdioClient(exe, args, e.logger)
}

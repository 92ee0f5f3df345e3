package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gyaneshwarpardhi/animgraph/internal/api"
	"github.com/gyaneshwarpardhi/animgraph/internal/config"
	"github.com/gyaneshwarpardhi/animgraph/internal/driver"
	"github.com/gyaneshwarpardhi/animgraph/internal/engine"
	"github.com/gyaneshwarpardhi/animgraph/internal/graph"
	"github.com/gyaneshwarpardhi/animgraph/internal/view"
)

type serveOpts struct {
	addr      string
	cfgPath   string
	logLevel  string
	logFormat string
}

func newServeCmd() *cobra.Command {
	opts := &serveOpts{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine and its HTTP command API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", ":8080", "HTTP listen address")
	cmd.Flags().StringVar(&opts.cfgPath, "config", "configs/scene.yaml", "path to scene YAML config")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides engine.log_level)")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	return cmd
}

func runServe(ctx context.Context, opts *serveOpts) error {
	level := new(slog.LevelVar)
	logger, err := newLogger(os.Stdout, opts.logFormat, level)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(opts.cfgPath)
	if err != nil {
		return err
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		return err
	}
	levelName := opts.logLevel
	if levelName == "" {
		levelName = cfg.Engine.LogLevel
	}
	if err := setLevel(level, levelName); err != nil {
		return err
	}

	// ── Build initial scene ──────────────────────────────────────────────────
	layer, m, err := buildScene(cfg, logger)
	if err != nil {
		return err
	}
	slog.Info("scene built", "nodes", m.NodeCount(), "views", len(cfg.Views), "bindings", len(cfg.Bindings))

	// ── Engine ───────────────────────────────────────────────────────────────
	eng := engine.New(m, driver.NewDriver(m, logger), cfg.Engine, logger)

	// ── Hot-reload watcher ───────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.SceneConfig) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		if opts.logLevel == "" {
			if err := setLevel(level, newCfg.Engine.LogLevel); err != nil {
				slog.Warn("hot-reload: keeping log level", "err", err)
			}
		}
		eng.Reconfigure(newCfg.Engine)
		slog.Info("engine settings hot-reloaded", "frame_rate", newCfg.Engine.FrameRate, "manual_clock", newCfg.Engine.ManualClock)
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ──────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         opts.addr,
		Handler:      api.New(eng, layer, loader, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ── Run until signalled ──────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return eng.Run(gctx)
	})
	g.Go(func() error {
		slog.Info("server starting", "addr", opts.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down…")
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()
	slog.Info("goodbye")
	return err
}

// buildScene mounts the configured views in an in-memory layer and builds the
// scene graph over it.
func buildScene(cfg *config.SceneConfig, logger *slog.Logger) (*view.Memory, *graph.Manager, error) {
	layer := view.NewMemory()
	for _, v := range cfg.Views {
		layer.Mount(view.Handle(v.Handle), v.Type, v.Props)
	}
	m := graph.NewManager(layer, graph.WithLogger(logger))
	if err := graph.Build(m, cfg); err != nil {
		return nil, nil, err
	}
	return layer, m, nil
}

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

	"github.com/urfave/cli/v2"

	"github.com/obsidianstack/seedmonitor/server/internal/alerts"
	"github.com/obsidianstack/seedmonitor/server/internal/config"
	"github.com/obsidianstack/seedmonitor/server/internal/directory"
	"github.com/obsidianstack/seedmonitor/server/internal/metrics"
	"github.com/obsidianstack/seedmonitor/server/internal/reporter"
	"github.com/obsidianstack/seedmonitor/server/internal/store"
	"github.com/obsidianstack/seedmonitor/server/internal/ws"
)

const (
	streamInterval  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

func serve(c *cli.Context) error {
	if err := setup(c, os.Stdout); err != nil {
		return err
	}

	path := c.String("config")
	slog.Info("seedmonitor starting", "config", path)

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"report_interval", cfg.Server.Report.Interval,
		"seed_nodes", len(cfg.SeedNodes),
		"webhooks", len(cfg.Server.Alerts.Webhooks),
	)

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New()
	m := metrics.New()

	dir, err := directory.FromConfig(cfg)
	if err != nil {
		return err
	}
	b, err := newBuilder(cfg, dir)
	if err != nil {
		return err
	}
	disp := newDispatcher(cfg, m)

	rep := reporter.New(st, b, reporter.Options{
		Interval:   cfg.Server.Report.Interval,
		Dispatcher: disp,
		Metrics:    m,
	})

	// WebSocket hub: pushes every new report and repeats it for late joiners.
	hub := ws.New(rep, st, streamInterval)
	rep.AddPublisher(hub)
	go hub.Run(ctx)
	go rep.Run(ctx)

	// Operator table and thresholds follow the file. Listen address, auth
	// and webhooks need a restart.
	go func() {
		err := config.Watch(ctx, path, func(next *config.Config) {
			if err := dir.Load(next); err != nil {
				slog.Warn("config reload: directory unchanged", "err", err)
				return
			}
			nb, err := newBuilder(next, dir)
			if err != nil {
				slog.Warn("config reload: report settings unchanged", "err", err)
				return
			}
			rep.SetBuilder(nb)
			slog.Info("config reloaded", "seed_nodes", dir.Len())
		})
		if err != nil {
			slog.Error("config watch stopped", "err", err)
		}
	}()

	httpSrv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: newMux(cfg, routes{
			store:   st,
			metrics: m,
			reports: rep,
			alerts:  disp,
			stream:  hub,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-srvErr:
		return fmt.Errorf("http server: %w", err)
	}

	slog.Info("seedmonitor shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	disp.Wait()
	return nil
}

func newDispatcher(cfg *config.Config, m *metrics.Metrics) *alerts.Dispatcher {
	ac := cfg.Server.Alerts
	return alerts.NewDispatcher(alerts.NotifierFromConfig(ac), alerts.Options{
		StatusPageURL: cfg.Server.Report.StatusPageURL,
		Timeout:       ac.Timeout,
		History:       ac.History,
		Metrics:       m,
	})
}

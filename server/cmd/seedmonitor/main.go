package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/obsidianstack/seedmonitor/server/internal/api"
	"github.com/obsidianstack/seedmonitor/server/internal/auth"
	"github.com/obsidianstack/seedmonitor/server/internal/compute"
	"github.com/obsidianstack/seedmonitor/server/internal/config"
	"github.com/obsidianstack/seedmonitor/server/internal/metrics"
	"github.com/obsidianstack/seedmonitor/server/internal/receiver"
	"github.com/obsidianstack/seedmonitor/server/internal/report"
	"github.com/obsidianstack/seedmonitor/server/internal/store"
)

func main() { os.Exit(main1()) }

func main1() int {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("seedmonitor: exiting", "err", err)
		return 1
	}
	return 0
}

func envFileFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "env-file",
		Usage: "dotenv file with webhook URLs and the API key; ignored when the default is missing",
		Value: ".env",
	}
}

func logLevelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "log-level",
		Usage:   "debug | info | warn | error",
		Value:   "info",
		EnvVars: []string{"SEEDMONITOR_LOG_LEVEL"},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "seedmonitor",
		Usage: "compare what seed nodes deliver and alert their operators",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "receive probe results, publish reports and dispatch alerts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Usage:   "path to config file",
						Value:   "config.yaml",
						EnvVars: []string{"SEEDMONITOR_CONFIG"},
					},
					envFileFlag(),
					logLevelFlag(),
				},
				Action: serve,
			},
			{
				Name:  "render",
				Usage: "render one report from a store export",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Usage: "path to config file; built-in defaults when empty",
					},
					&cli.StringFlag{
						Name:     "input",
						Usage:    "store export as served by /api/v1/export, - for stdin",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "html",
						Usage: "also write the HTML report to this path",
					},
					&cli.BoolFlag{
						Name:  "notify",
						Usage: "dispatch alerts for the breaches of the rendered report",
					},
					envFileFlag(),
					logLevelFlag(),
				},
				Action: render,
			},
		},
	}
}

// setup loads the dotenv file and installs the JSON logger on w.
func setup(c *cli.Context, w io.Writer) error {
	if path := c.String("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || c.IsSet("env-file") {
				return fmt.Errorf("load env file %q: %w", path, err)
			}
		}
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
	return nil
}

// newBuilder maps the report section of cfg onto a report.Builder.
func newBuilder(cfg *config.Config, dir report.Directory) (*report.Builder, error) {
	rc := cfg.Server.Report
	loc, err := rc.Location()
	if err != nil {
		return nil, fmt.Errorf("report timezone: %w", err)
	}
	rule, err := report.ParseRowRule(rc.RowRule)
	if err != nil {
		return nil, err
	}
	return report.NewBuilder(dir, report.Options{
		Thresholds: compute.Thresholds{
			ElevatedPct: rc.Thresholds.ElevatedPct,
			CriticalPct: rc.Thresholds.CriticalPct,
			DispatchPct: rc.Thresholds.DispatchPct,
		},
		SlowRTT:  rc.Thresholds.SlowRTT,
		RowRule:  rule,
		Location: loc,
	}), nil
}

// routes are the collaborators served over HTTP.
type routes struct {
	store   *store.Store
	metrics *metrics.Metrics
	reports api.ReportSource
	alerts  api.AlertSource
	stream  http.Handler
}

// newMux mounts the probe receiver behind API key auth and the read
// endpoints, metrics and the WebSocket stream next to it.
func newMux(cfg *config.Config, r routes) *http.ServeMux {
	guard := auth.APIKey(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key())
	recv := guard(receiver.New(r.store, r.metrics))

	mux := http.NewServeMux()
	mux.Handle("/api/v1/probes", recv)
	mux.Handle("/api/v1/checks", recv)
	mux.Handle("/api/", api.New(api.Deps{
		Store:   r.store,
		Reports: r.reports,
		Alerts:  r.alerts,
		Metrics: r.metrics,
	}))
	mux.Handle("/metrics", r.metrics.Handler())
	if r.stream != nil {
		mux.Handle("/ws/stream", r.stream)
	}
	return mux
}

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/obsidianstack/seedmonitor/server/internal/config"
	"github.com/obsidianstack/seedmonitor/server/internal/directory"
	"github.com/obsidianstack/seedmonitor/server/internal/store"
)

// render builds a single report from a store export, prints the text form to
// the app writer and optionally writes HTML and sends the alerts.
func render(c *cli.Context) error {
	if err := setup(c, c.App.ErrWriter); err != nil {
		return err
	}

	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}

	dir, err := directory.FromConfig(cfg)
	if err != nil {
		return err
	}
	b, err := newBuilder(cfg, dir)
	if err != nil {
		return err
	}

	dump, err := readInput(c.String("input"), c.App.Reader)
	if err != nil {
		return err
	}
	st := store.Import(dump)
	rep := b.Build(st.Snapshot(), st.LastCheckStarted(), time.Now())

	if _, err := io.WriteString(c.App.Writer, rep.Text()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if path := c.String("html"); path != "" {
		if err := os.WriteFile(path, []byte(rep.HTML()), 0o644); err != nil {
			return fmt.Errorf("write html report: %w", err)
		}
		slog.Info("render: html report written", "path", path)
	}

	if c.Bool("notify") && len(rep.Breaches) > 0 {
		disp := newDispatcher(cfg, nil)
		disp.Dispatch(c.Context, rep.Breaches)
		disp.Wait()
		for _, a := range disp.History() {
			slog.Info("render: alert", "node", a.Node, "key", a.Key, "state", a.State, "err", a.Error)
		}
	}
	return nil
}

func readInput(path string, stdin io.Reader) (store.Dump, error) {
	if path == "-" {
		return store.ReadDump(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return store.Dump{}, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return store.ReadDump(f)
}

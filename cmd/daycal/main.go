package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"daycal/internal/capture"
	"daycal/internal/config"
	appLog "daycal/internal/log"
	"daycal/internal/web"
)

var version = "0.1.0-dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		appLog.Error("daycal failed", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "daycal"
	app.Usage = "rolling multi-day calendar board"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config, c",
			Value:  "./config.yaml",
			Usage:  "path to the YAML config file (written with defaults if missing)",
			EnvVar: "DAYCAL_CONFIG",
		},
		cli.StringFlag{
			Name:  "listen",
			Usage: "HTTP listen address (overrides config)",
		},
		cli.StringFlag{
			Name:   "log-level",
			Usage:  "debug, info, warn or error",
			EnvVar: "LOG_LEVEL",
		},
	}
	app.Action = serve
	app.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "serve the board over HTTP (default)",
			Action: serve,
		},
		{
			Name:   "snapshot",
			Usage:  "render the board in headless Chromium and write a PNG",
			Action: snapshot,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "url", Usage: "board URL (default: the configured listen address)"},
				cli.StringFlag{Name: "out, o", Usage: "PNG path (default: capture.output)"},
				cli.IntFlag{Name: "width", Usage: "viewport width (default: capture.width)"},
				cli.IntFlag{Name: "height", Usage: "viewport height (default: capture.height)"},
				cli.StringFlag{Name: "chrome", Usage: "Chromium binary", EnvVar: "DAYCAL_CHROME"},
				cli.DurationFlag{Name: "timeout", Value: capture.DefaultTimeout, Usage: "overall capture timeout"},
			},
		},
	}
	return app
}

// loadConfig loads, validates and logs the effective configuration.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if lvl := c.GlobalString("log-level"); lvl != "" {
		appLog.SetLevel(appLog.Level(strings.ToUpper(strings.TrimSpace(lvl))))
	}

	path := c.GlobalString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if listen := c.GlobalString("listen"); listen != "" {
		cfg.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}

	r := cfg.Redacted()
	appLog.Info("effective config",
		"listen", r.Listen,
		"timezone", r.Timezone,
		"days", r.Days,
		"today_offset", r.TodayOffset,
		"language", r.Language,
		"theme", r.Theme,
		"provider", r.Source.Provider,
		"source_url", r.Source.URL,
		"calendars", r.Source.Calendars,
		"feeds", len(r.Source.Feeds),
		"refresh", r.Refresh,
		"ttl_minutes", r.TTLMinutes,
		"basic_auth", r.BasicAuth != nil,
	)
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func serve(c *cli.Context) error {
	appLog.Info("daycal starting", "version", version)
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	svc, err := newService(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := web.StartServer(ctx, cfg, svc); err != nil {
		return err
	}
	appLog.Info("daycal exiting")
	return nil
}

func snapshot(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	opts := capture.Options{
		URL:        c.String("url"),
		OutputPath: c.String("out"),
		Width:      c.Int("width"),
		Height:     c.Int("height"),
		ExecPath:   c.String("chrome"),
		Timeout:    c.Duration("timeout"),
	}
	if opts.URL == "" {
		opts.URL = "http://" + cfg.Listen + "/"
	}
	if opts.OutputPath == "" {
		opts.OutputPath = cfg.Capture.Output
	}
	if opts.Width == 0 {
		opts.Width = cfg.Capture.Width
	}
	if opts.Height == 0 {
		opts.Height = cfg.Capture.Height
	}
	if cfg.BasicAuth != nil {
		opts.Username, opts.Password = cfg.BasicAuth.Username, cfg.BasicAuth.Password
	}

	ctx, cancel := signalContext()
	defer cancel()

	started := time.Now()
	if err := capture.Snapshot(ctx, opts); err != nil {
		return err
	}
	appLog.Debug("snapshot done", "elapsed_ms", time.Since(started).Milliseconds())
	return nil
}

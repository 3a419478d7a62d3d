package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dietcal/internal/adherence"
	"dietcal/internal/capture"
	"dietcal/internal/config"
	"dietcal/internal/dashboard"
	appLog "dietcal/internal/log"
	"dietcal/internal/model"
	"dietcal/internal/refresh"
	"dietcal/internal/source"
	"dietcal/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	month      string
	snapshot   string
	debug      bool
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-password" {
		os.Exit(hashPassword(os.Args[2:]))
	}

	flags := parseFlags()
	os.Exit(run(flags))
}

func run(flags flagConfig) int {
	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		return 1
	}

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	appLog.Info("dietcal starting", "version", version)

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone, using local time", err)
	}

	month, err := dashboard.ParseMonth(flags.month, loc)
	if err != nil {
		appLog.Error("invalid -month", err)
		return 2
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"cache_ttl_seconds", conf.CacheTTLSeconds,
		"events_source", source.DisplayLocation(conf.EventsSource),
		"person_source", source.DisplayLocation(conf.PersonSource),
		"basic_auth", conf.BasicAuth != nil && conf.BasicAuth.Username != "",
		"once", flags.once,
		"snapshot", flags.snapshot,
	)

	// Root context canceled on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := source.NewLoader(source.NewFetcher(conf.CacheDir), conf.EventsSource, conf.PersonSource, loc)

	if flags.once {
		return runOnce(ctx, loader, month, loc, conf)
	}

	server := web.NewServer(conf, loader, loc)

	if flags.snapshot != "" {
		return runSnapshot(ctx, server, conf, flags)
	}

	if conf.RefreshEnabled() {
		sched, err := refresh.New(conf.RefreshCron, loc, func(ctx context.Context) {
			server.Refresh(ctx)
		})
		if err != nil {
			appLog.Error("invalid refresh schedule", err)
			return 1
		}
		sched.Start(ctx)
		defer sched.Stop()
	} else {
		appLog.Info("background refresh disabled")
	}

	if err := server.Run(ctx); err != nil {
		appLog.Error("http server failed", err)
		return 1
	}
	appLog.Info("dietcal exiting")
	return 0
}

type onceSummary struct {
	Month       string                    `json:"month"`
	Percentages adherence.Percentages     `json:"percentages"`
	Colors      map[string]model.DayColor `json:"colors"`
	Days        []model.DayStatus         `json:"days"`
	Errors      map[string]string         `json:"errors,omitempty"`
}

// runOnce loads both sources, prints the adherence summary as JSON and
// exits. An empty event list is a failure here since there is no month to
// score.
func runOnce(ctx context.Context, loader *source.Loader, month time.Time, loc *time.Location, conf *config.Config) int {
	snap := loader.Load(ctx)

	events := snap.Events
	if !month.IsZero() {
		events = adherence.FilterMonth(events, month.Year(), month.Month())
	}
	if _, err := adherence.ComputeMonthlyPercentages(events); err != nil {
		var empty *adherence.EmptyInputError
		if errors.As(err, &empty) {
			appLog.Error("no events to score", err, "events_source", source.DisplayLocation(conf.EventsSource))
			return 1
		}
	}

	view, err := dashboard.Build(snap, dashboard.Options{
		Month:     month,
		Location:  loc,
		WeekStart: conf.FirstWeekday(),
	})
	if err != nil {
		appLog.Error("failed to build dashboard", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(onceSummary{
		Month:       view.Month,
		Percentages: view.Percentages,
		Colors:      view.Colors,
		Days:        view.Days,
		Errors:      view.Errors,
	}); err != nil {
		appLog.Error("failed to write summary", err)
		return 1
	}
	return 0
}

// runSnapshot serves the dashboard on an ephemeral loopback port, captures
// it with headless Chromium and exits.
func runSnapshot(ctx context.Context, server *web.Server, conf *config.Config, flags flagConfig) int {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		appLog.Error("snapshot: cannot listen", err)
		return 1
	}
	srv := &http.Server{Handler: server.LocalHandler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("snapshot: server failed", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	page := url.URL{Scheme: "http", Host: ln.Addr().String(), Path: "/"}
	if flags.month != "" {
		page.RawQuery = url.Values{"month": {flags.month}}.Encode()
	}

	err = capture.CaptureDashboardPNG(ctx, capture.Options{
		URL:        page.String(),
		OutputPath: flags.snapshot,
		Width:      conf.Capture.Width,
		Height:     conf.Capture.Height,
		Timeout:    time.Duration(conf.Capture.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		appLog.Error("snapshot failed", err, "path", flags.snapshot)
		return 1
	}
	return 0
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./dietcal.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load the sources once, print the adherence summary as JSON and exit")
	flag.StringVar(&cfg.month, "month", "", "Month to score and show, as YYYY-MM (default: month of the first event)")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Capture the dashboard to this PNG path and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: dietcal [flags]\n       dietcal hash-password\n\nFlags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	return cfg
}

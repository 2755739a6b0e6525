package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gymcal/internal/capture"
	"gymcal/internal/config"
	"gymcal/internal/ics"
	appLog "gymcal/internal/log"
	"gymcal/internal/planner"
	"gymcal/internal/refresh"
	"gymcal/internal/store"
	"gymcal/internal/web"
)

const version = "0.3.0"

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	seed       bool
}

func main() {
	// A missing .env is fine; the environment may be set another way.
	_ = godotenv.Load()

	flags := parseFlags()
	appLog.Info("gymcal starting", "version", version)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"week_start", conf.WeekStart,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"storage", conf.Storage.Driver,
		"imports", len(conf.Imports),
		"capture", conf.Capture.Enabled,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("gymcal failed", err)
		os.Exit(1)
	}
	appLog.Info("gymcal exiting")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	st, err := store.Open(store.Config{
		Driver:      conf.Storage.Driver,
		Path:        conf.Storage.Path,
		BusyTimeout: conf.Storage.BusyTimeout(),
	})
	if err != nil {
		return err
	}
	defer st.Close()

	svc := planner.New(st, planner.Options{
		Location:     conf.Location(),
		WeekStart:    conf.FirstWeekday(),
		CalendarName: conf.Export.CalendarName,
		Imports:      importSources(conf),
		Fetcher:      ics.NewFetcher(cacheDir(conf), nil),
	})

	if conf.SeedDefaults || flags.seed {
		if _, err := store.SeedIfEmpty(ctx, st, store.DefaultFixtures(svc.Today())); err != nil {
			return err
		}
	}

	job, err := refresh.New(conf, svc, nil)
	if err != nil {
		return err
	}

	if flags.once {
		if conf.Capture.Enabled {
			// The capture needs the agenda page to be served.
			srvCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() { _ = web.StartServer(srvCtx, conf, svc) }()
			waitHealthy(ctx, conf.Listen, 5*time.Second)
		}
		return job.RunOnce(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = job.Run(ctx)
	}()

	err = web.StartServer(ctx, conf, svc)
	// A server that failed to start takes the scheduler down with it.
	cancel()
	wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// waitHealthy polls /health until the server answers or the timeout passes.
func waitHealthy(ctx context.Context, listen string, timeout time.Duration) {
	url := strings.TrimSuffix(capture.AgendaURL(listen), "/agenda") + "/health"
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	appLog.Warn("server not healthy before capture", "url", url)
}

func importSources(conf *config.Config) []planner.ImportSource {
	out := make([]planner.ImportSource, 0, len(conf.Imports))
	for _, imp := range conf.Imports {
		out = append(out, planner.ImportSource{
			ID:      imp.ID,
			Name:    imp.Name,
			URL:     imp.URL,
			GroupID: imp.GroupID,
			GymID:   imp.GymID,
		})
	}
	return out
}

// cacheDir keeps fetched feeds next to the database, or under ./data for
// the memory store.
func cacheDir(conf *config.Config) string {
	base := "./data"
	if conf.Storage.Driver != "memory" && conf.Storage.Path != "" {
		base = filepath.Dir(conf.Storage.Path)
	}
	return filepath.Join(base, "ics-cache")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", envOr("GYMCAL_CONFIG", "./gymcal.yaml"), "Path to config file")
	flag.StringVar(&cfg.listen, "listen", os.Getenv("GYMCAL_LISTEN"), "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one import+export(+capture) cycle and exit")
	flag.BoolVar(&cfg.seed, "seed", false, "Seed demo gyms and groups into an empty store")

	flag.Parse()

	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Package refresh runs the periodic cycle: pull configured feeds, write the
// iCalendar export and capture the agenda page.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"gymcal/internal/capture"
	"gymcal/internal/config"
	appLog "gymcal/internal/log"
	"gymcal/internal/model"
	"gymcal/internal/planner"
)

// CaptureFunc takes a screenshot of the agenda page.
type CaptureFunc func(ctx context.Context, opts capture.Options) error

// Job ties the planner to the configured refresh outputs.
type Job struct {
	cfg     *config.Config
	planner *planner.Service
	capture CaptureFunc
	parser  cron.Parser

	// one cycle at a time, cron or manual
	mu sync.Mutex
}

// New validates the refresh expression and returns a Job. A nil capture
// uses headless Chromium.
func New(cfg *config.Config, svc *planner.Service, capt CaptureFunc) (*Job, error) {
	if capt == nil {
		capt = capture.AgendaPNG
	}
	j := &Job{
		cfg:     cfg,
		planner: svc,
		capture: capt,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	if _, err := j.parser.Parse(cfg.RefreshCron); err != nil {
		return nil, fmt.Errorf("refresh %q: %w", cfg.RefreshCron, err)
	}
	return j, nil
}

// RunOnce performs one cycle. Every step runs even if an earlier one
// failed; the errors are joined.
func (j *Job) RunOnce(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := time.Now()
	var errs []error

	reports, err := j.planner.ImportAll(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	for _, r := range reports {
		appLog.Debug("import report", "source", r.Source, "added", r.Added, "updated", r.Updated, "skipped", len(r.Skipped))
	}

	if err := j.writeExport(ctx); err != nil {
		errs = append(errs, err)
	}

	if j.cfg.Capture.Enabled {
		err := j.capture(ctx, capture.Options{
			URL:        capture.AgendaURL(j.cfg.Listen),
			OutputPath: j.cfg.Capture.OutputPath,
			Width:      j.cfg.Capture.Width,
			Height:     j.cfg.Capture.Height,
			Timeout:    time.Duration(j.cfg.Capture.TimeoutSec) * time.Second,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}

	err = errors.Join(errs...)
	if err != nil {
		appLog.Error("refresh cycle finished with errors", err, "duration_ms", time.Since(start).Milliseconds())
		return err
	}
	appLog.Info("refresh cycle done", "imports", len(reports), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (j *Job) writeExport(ctx context.Context) error {
	path := j.cfg.Export.ICSPath
	if path == "" {
		return nil
	}
	today := j.planner.Today()
	win := model.Window{From: today, To: today.AddDays(j.cfg.HorizonDays)}
	body, err := j.planner.Export(ctx, win)
	if err != nil {
		return err
	}
	if err := config.WriteFileAtomic(path, body, 0o644); err != nil {
		return fmt.Errorf("write export %s: %w", path, err)
	}
	appLog.Debug("export written", "path", path, "window", win.String(), "bytes", len(body))
	return nil
}

// Run schedules RunOnce on the refresh expression in the planner's time
// zone and blocks until ctx is cancelled. Overlapping ticks are skipped.
func (j *Job) Run(ctx context.Context) error {
	loc := j.planner.Location()
	c := cron.New(
		cron.WithParser(j.parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := c.AddFunc(j.cfg.RefreshCron, func() { _ = j.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("refresh %q: %w", j.cfg.RefreshCron, err)
	}

	c.Start()
	appLog.Info("refresh scheduler started", "schedule", j.cfg.RefreshCron, "tz", loc.String())

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("refresh scheduler stopped")
	return nil
}

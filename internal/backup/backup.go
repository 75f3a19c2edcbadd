// Package backup writes scheduled JSON backups of the content calendar and
// prunes old ones.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"contentcal/internal/codec"
	"contentcal/internal/exporter"
	"contentcal/internal/fsutil"
	appLog "contentcal/internal/log"
	"contentcal/internal/metrics"
)

const (
	DefaultSchedule = "0 3 * * *"
	DefaultKeep     = 14
)

type Config struct {
	// Schedule is a standard 5-field cron expression.
	Schedule string
	Dir      string
	// Keep is how many backup files survive pruning; <= 0 means DefaultKeep.
	Keep int
}

type Job struct {
	cfg      Config
	lister   exporter.Lister
	exp      *exporter.Exporter
	metrics  *metrics.Metrics
	schedule cron.Schedule
	now      func() time.Time
}

func New(cfg Config, lister exporter.Lister, exp *exporter.Exporter, m *metrics.Metrics) (*Job, error) {
	if cfg.Dir == "" {
		return nil, errors.New("backup dir is empty")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Keep <= 0 {
		cfg.Keep = DefaultKeep
	}
	sched, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse backup schedule %q: %w", cfg.Schedule, err)
	}
	return &Job{cfg: cfg, lister: lister, exp: exp, metrics: m, schedule: sched, now: time.Now}, nil
}

// Next returns the next scheduled run after t.
func (j *Job) Next(t time.Time) time.Time {
	return j.schedule.Next(t)
}

// Start runs the job on its cron schedule until ctx is cancelled. The
// returned channel closes once the scheduler has stopped and any running
// backup has finished.
func (j *Job) Start(ctx context.Context) <-chan struct{} {
	c := cron.New()
	c.Schedule(j.schedule, cron.FuncJob(func() {
		if _, err := j.RunOnce(ctx); err != nil {
			appLog.Error("scheduled backup failed", err, "dir", j.cfg.Dir)
		}
	}))
	c.Start()
	appLog.Info("backup scheduler started", "schedule", j.cfg.Schedule, "dir", j.cfg.Dir, "next", j.Next(j.now()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("backup scheduler stopped")
	}()
	return done
}

// RunOnce writes one backup and prunes old files. It returns the written
// path, or "" when there was nothing to back up.
func (j *Job) RunOnce(ctx context.Context) (string, error) {
	art, err := j.exp.ExportFrom(ctx, j.lister, codec.FormatJSON)
	if errors.Is(err, exporter.ErrNothingToExport) {
		appLog.Info("backup skipped; no content items")
		j.metrics.Backup("skipped", j.now())
		return "", nil
	}
	if err != nil {
		j.metrics.Backup("failed", j.now())
		return "", err
	}

	path := filepath.Join(j.cfg.Dir, j.exp.StampedFilename(codec.FormatJSON))
	if err := fsutil.WriteFileAtomic(path, art.Body, 0o600); err != nil {
		j.metrics.Backup("failed", j.now())
		return "", fmt.Errorf("write backup: %w", err)
	}
	appLog.Info("backup written", "path", path, "items", art.Items, "bytes", len(art.Body))
	j.metrics.Backup("written", j.now())

	if err := j.prune(); err != nil {
		appLog.Error("backup prune failed", err, "dir", j.cfg.Dir)
	}
	return path, nil
}

// prune keeps the newest Keep backups. Backup names embed the date and time
// of day, so lexical order is chronological.
func (j *Job) prune() error {
	entries, err := os.ReadDir(j.cfg.Dir)
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !isBackupName(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) <= j.cfg.Keep {
		return nil
	}

	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	var errs []error
	for _, name := range names[j.cfg.Keep:] {
		if err := os.Remove(filepath.Join(j.cfg.Dir, name)); err != nil {
			errs = append(errs, err)
			continue
		}
		appLog.Debug("backup pruned", "file", name)
	}
	return errors.Join(errs...)
}

func isBackupName(name string) bool {
	return strings.Contains(name, "-backup-") && strings.HasSuffix(name, ".json")
}

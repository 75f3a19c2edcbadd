// Package exporter turns the current content item list into a downloadable
// artifact in one of the export formats.
package exporter

import (
	"context"
	"errors"
	"fmt"

	"contentcal/internal/codec"
	"contentcal/internal/log"
	"contentcal/internal/metrics"
	"contentcal/internal/model"
)

const DefaultFilenamePrefix = "contentpro"

var ErrNothingToExport = errors.New("no content items to export")

// Artifact is a fully encoded export, ready to be served or written.
type Artifact struct {
	Filename    string
	ContentType string
	Body        []byte
	Items       int
}

// Lister supplies the items to export.
type Lister interface {
	ListContentItems(ctx context.Context) ([]model.ContentItem, error)
}

type Config struct {
	// FilenamePrefix starts every artifact name; defaults to "contentpro".
	FilenamePrefix string
	Codec          codec.Options
}

type Exporter struct {
	cfg     Config
	metrics *metrics.Metrics
}

func New(cfg Config, m *metrics.Metrics) *Exporter {
	if cfg.FilenamePrefix == "" {
		cfg.FilenamePrefix = DefaultFilenamePrefix
	}
	cfg.Codec = cfg.Codec.WithDefaults()
	return &Exporter{cfg: cfg, metrics: m}
}

// Export encodes items as f. An empty list is rejected with
// ErrNothingToExport; encode failures never yield a partial artifact.
func (e *Exporter) Export(items []model.ContentItem, f codec.Format) (*Artifact, error) {
	enc, err := codec.NewEncoder(f, e.cfg.Codec)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		e.metrics.Export(string(f), "empty", 0)
		return nil, ErrNothingToExport
	}

	body, err := enc.Encode(items)
	if err != nil {
		e.metrics.Export(string(f), "failed", 0)
		log.Error("export failed", err, "format", f, "items", len(items))
		return nil, fmt.Errorf("export %s: %w", f, err)
	}

	a := &Artifact{
		Filename:    e.Filename(f),
		ContentType: f.ContentType(),
		Body:        body,
		Items:       len(items),
	}
	e.metrics.Export(string(f), "ok", len(body))
	log.Debug("export produced", "format", f, "file", a.Filename, "items", a.Items, "bytes", len(body))
	return a, nil
}

// ExportFrom lists items from l and exports them.
func (e *Exporter) ExportFrom(ctx context.Context, l Lister, f codec.Format) (*Artifact, error) {
	items, err := l.ListContentItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list content items: %w", err)
	}
	return e.Export(items, f)
}

// Filename returns the dated artifact name for f, e.g.
// contentpro-calendar-2026-03-01.csv or contentpro-backup-2026-03-01.json.
func (e *Exporter) Filename(f codec.Format) string {
	return e.filename(f, "2006-01-02")
}

// StampedFilename is Filename with the time of day appended, e.g.
// contentpro-backup-2026-03-01-093000.json, so several artifacts per day
// keep distinct names that still sort chronologically.
func (e *Exporter) StampedFilename(f codec.Format) string {
	return e.filename(f, "2006-01-02-150405")
}

func (e *Exporter) filename(f codec.Format, layout string) string {
	kind := "calendar"
	if f == codec.FormatJSON {
		kind = "backup"
	}
	date := e.cfg.Codec.Now().In(e.cfg.Codec.Location).Format(layout)
	return fmt.Sprintf("%s-%s-%s.%s", e.cfg.FilenamePrefix, kind, date, f)
}

// Package importer drives decoded candidate items, one at a time, through
// the content backend's create operation.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"contentcal/internal/codec"
	"contentcal/internal/log"
	"contentcal/internal/metrics"
	"contentcal/internal/model"
)

const (
	DefaultMaxFileBytes int64 = 10 << 20
	DefaultPace               = 100 * time.Millisecond
)

var (
	ErrEmptySelection = errors.New("no file selected")
	ErrFileTooLarge   = errors.New("file is too large")
	ErrNoItems        = errors.New("no valid items found")
)

// Creator persists one candidate and returns the stored item.
type Creator interface {
	CreateContentItem(ctx context.Context, c model.CandidateItem) (model.ContentItem, error)
}

// Progress is reported after every create attempt.
type Progress struct {
	Done  int
	Total int
}

// Fraction is Done/Total in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total)
}

// Observer receives progress updates. It runs on the importing goroutine
// and must not block.
type Observer func(Progress)

// Result summarizes one import batch.
type Result struct {
	BatchID      string              `json:"batchId"`
	Format       codec.Format        `json:"format"`
	Total        int                 `json:"total"`
	SuccessCount int                 `json:"successCount"`
	Errors       []string            `json:"errors"`
	Imported     []model.ContentItem `json:"imported"`
}

type Config struct {
	// MaxFileBytes is the size ceiling for input files; <= 0 means the default.
	MaxFileBytes int64
	// Pace separates create attempts so progress stays visible. Zero means
	// the default; negative disables pacing.
	Pace  time.Duration
	Codec codec.Options
}

type Importer struct {
	creator Creator
	cfg     Config
	metrics *metrics.Metrics
}

func New(creator Creator, cfg Config, m *metrics.Metrics) *Importer {
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = DefaultMaxFileBytes
	}
	if cfg.Pace == 0 {
		cfg.Pace = DefaultPace
	}
	return &Importer{creator: creator, cfg: cfg, metrics: m}
}

func (im *Importer) MaxFileBytes() int64 {
	return im.cfg.MaxFileBytes
}

// CheckFile validates a selection before anything is read: it must be
// present, carry a supported extension and fit under the size ceiling.
// A negative size means unknown and skips the size check.
func (im *Importer) CheckFile(name string, size int64) (codec.Format, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrEmptySelection
	}
	f, err := codec.FormatFromFilename(name)
	if err != nil {
		return "", err
	}
	if size > im.cfg.MaxFileBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrFileTooLarge, size, im.cfg.MaxFileBytes)
	}
	return f, nil
}

// ImportFile checks the selection, reads at most the size ceiling from r and
// imports its contents.
func (im *Importer) ImportFile(ctx context.Context, name string, size int64, r io.Reader, obs Observer) (*Result, error) {
	f, err := im.CheckFile(name, size)
	if err != nil {
		im.metrics.ImportBatch(formatLabel(f), "rejected", 0, 0, 0)
		return nil, err
	}
	data, err := ReadLimited(r, im.cfg.MaxFileBytes)
	if err != nil {
		im.metrics.ImportBatch(string(f), "rejected", 0, 0, 0)
		return nil, err
	}
	return im.Import(ctx, f, data, obs)
}

// ReadLimited reads r fully, failing with ErrFileTooLarge past limit bytes.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: exceeds the %d byte limit", ErrFileTooLarge, limit)
	}
	return data, nil
}

// Import decodes data and creates every candidate in source order. Decode
// failures and empty decodes are terminal. Per-item failures are collected
// in Result.Errors and never stop the batch. On context cancellation the
// partial result is returned together with the context error.
func (im *Importer) Import(ctx context.Context, f codec.Format, data []byte, obs Observer) (*Result, error) {
	dec, err := codec.NewDecoder(f, im.cfg.Codec)
	if err != nil {
		im.metrics.ImportBatch(formatLabel(f), "rejected", 0, 0, 0)
		return nil, err
	}
	candidates, err := dec.Decode(data)
	if err != nil {
		im.metrics.ImportBatch(string(f), "rejected", 0, 0, 0)
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}
	if len(candidates) == 0 {
		im.metrics.ImportBatch(string(f), "rejected", 0, 0, 0)
		return nil, ErrNoItems
	}
	return im.Create(ctx, f, candidates, obs)
}

// Create runs the create loop over already decoded candidates.
func (im *Importer) Create(ctx context.Context, f codec.Format, candidates []model.CandidateItem, obs Observer) (*Result, error) {
	if len(candidates) == 0 {
		return nil, ErrNoItems
	}

	start := time.Now()
	res := &Result{
		BatchID:  uuid.NewString(),
		Format:   f,
		Total:    len(candidates),
		Errors:   []string{},
		Imported: make([]model.ContentItem, 0, len(candidates)),
	}
	log.Info("import started", "batch", res.BatchID, "format", f, "items", res.Total)

	var runErr error
	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		item, err := im.creator.CreateContentItem(ctx, c)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Failed to import \"%s\": %v", c.Title, err))
			log.Debug("import item failed", "batch", res.BatchID, "index", i, "title", c.Title, "err", err)
		} else {
			res.SuccessCount++
			res.Imported = append(res.Imported, item)
		}

		if obs != nil {
			obs(Progress{Done: i + 1, Total: res.Total})
		}

		if i < len(candidates)-1 {
			if err := im.pause(ctx); err != nil {
				runErr = err
				break
			}
		}
	}

	outcome := "completed"
	if runErr != nil {
		outcome = "cancelled"
	}
	im.metrics.ImportBatch(string(f), outcome, res.SuccessCount, len(res.Errors), time.Since(start))
	log.Info("import finished",
		"batch", res.BatchID,
		"outcome", outcome,
		"success", res.SuccessCount,
		"failed", len(res.Errors),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)

	if runErr != nil {
		return res, runErr
	}
	return res, nil
}

func (im *Importer) pause(ctx context.Context) error {
	if im.cfg.Pace <= 0 {
		return nil
	}
	t := time.NewTimer(im.cfg.Pace)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func formatLabel(f codec.Format) string {
	if f == "" {
		return "unknown"
	}
	return string(f)
}

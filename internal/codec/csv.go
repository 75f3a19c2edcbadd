package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"contentcal/internal/model"
)

// csvHeader is the fixed column layout written by CSV export.
var csvHeader = []string{"Title", "Description", "Platform", "Status", "Scheduled Date", "Created Date"}

// CSV encodes and decodes comma separated, double-quote escaped files with
// a header row.
type CSV struct {
	opts Options
}

func NewCSV(opts Options) *CSV {
	return &CSV{opts: opts.WithDefaults()}
}

// Encode writes the header followed by one row per item. Quoting follows
// RFC 4180: fields holding a comma, quote or line break are quoted and
// embedded quotes doubled.
func (c *CSV) Encode(items []model.ContentItem) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, it := range items {
		row := []string{
			it.Title,
			it.Description,
			string(it.Platform),
			string(it.Status),
			model.FormatTimestamp(it.ScheduledDate),
			model.FormatTimestamp(it.CreatedAt),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row %q: %w", it.Title, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reads the first non-blank record as the header and maps every
// following record to a candidate. Records shorter than the header are
// skipped; a missing title becomes "Imported Item <n>".
func (c *CSV) Decode(data []byte) ([]model.CandidateItem, error) {
	r := csv.NewReader(bytes.NewReader(trimBOM(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var (
		columns map[string]int
		width   int
		items   []model.CandidateItem
		n       int
	)

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				n++
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if blankRecord(rec) {
			continue
		}

		if columns == nil {
			columns = headerIndex(rec)
			width = len(rec)
			continue
		}

		n++
		if len(rec) < width {
			continue
		}

		get := func(key string) (string, bool) {
			idx, ok := columns[key]
			if !ok || idx >= len(rec) {
				return "", false
			}
			return rec[idx], true
		}

		title := csvSynonyms.lookup(fieldTitle, get)
		if title == "" {
			title = placeholderTitle(n)
		}
		items = append(items, model.CandidateItem{
			Title:         title,
			Description:   csvSynonyms.lookup(fieldDescription, get),
			Platform:      model.ParsePlatform(csvSynonyms.lookup(fieldPlatform, get)),
			Status:        model.ParseStatus(csvSynonyms.lookup(fieldStatus, get)),
			ScheduledDate: model.TimestampOr(csvSynonyms.lookup(fieldScheduledDate, get), c.opts.Location, c.opts.Now()),
		})
	}

	return items, nil
}

// headerIndex maps normalized header names to their first column index.
func headerIndex(rec []string) map[string]int {
	out := make(map[string]int, len(rec))
	for i, cell := range rec {
		key := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(cell, `"`, "")))
		if _, dup := out[key]; !dup {
			out[key] = i
		}
	}
	return out
}

func blankRecord(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func trimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
}

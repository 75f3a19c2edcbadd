package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"contentcal/internal/model"
)

// JSON reads and writes the backup document. Decode also accepts a bare
// array of loosely keyed objects.
type JSON struct {
	opts Options
}

func NewJSON(opts Options) *JSON {
	return &JSON{opts: opts.WithDefaults()}
}

type backupDocument struct {
	ExportDate   string       `json:"exportDate"`
	TotalItems   int          `json:"totalItems"`
	ContentItems []backupItem `json:"contentItems"`
}

type backupItem struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Platform      string  `json:"platform"`
	Status        string  `json:"status"`
	ScheduledDate *string `json:"scheduledDate"`
	CreatedAt     *string `json:"createdAt"`
	UpdatedAt     *string `json:"updatedAt"`
}

// nullableTimestamp renders absent dates as JSON null.
func nullableTimestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := model.FormatTimestamp(t)
	return &s
}

// Encode writes the backup wrapper, indented by two spaces.
func (c *JSON) Encode(items []model.ContentItem) ([]byte, error) {
	doc := backupDocument{
		ExportDate:   model.FormatTimestamp(c.opts.Now()),
		TotalItems:   len(items),
		ContentItems: make([]backupItem, 0, len(items)),
	}
	for _, it := range items {
		doc.ContentItems = append(doc.ContentItems, backupItem{
			ID:            it.ID,
			Title:         it.Title,
			Description:   it.Description,
			Platform:      string(it.Platform),
			Status:        string(it.Status),
			ScheduledDate: nullableTimestamp(it.ScheduledDate),
			CreatedAt:     nullableTimestamp(it.CreatedAt),
			UpdatedAt:     nullableTimestamp(it.UpdatedAt),
		})
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}
	return out, nil
}

// Decode accepts either the backup wrapper ({"contentItems": [...]}) or a
// bare array. Any other top-level shape decodes to zero candidates, which
// the importer reports as "no valid items found".
func (c *JSON) Decode(data []byte) ([]model.CandidateItem, error) {
	var doc any
	if err := json.Unmarshal(trimBOM(data), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}

	switch v := doc.(type) {
	case map[string]any:
		arr, ok := v["contentItems"].([]any)
		if !ok {
			return nil, nil
		}
		return c.decodeObjects(arr, backupSynonyms), nil
	case []any:
		return c.decodeObjects(v, genericSynonyms), nil
	}
	return nil, nil
}

func (c *JSON) decodeObjects(arr []any, syn synonyms) []model.CandidateItem {
	items := make([]model.CandidateItem, 0, len(arr))
	for i, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		get := func(key string) (string, bool) {
			return scalarString(obj[key])
		}

		title := syn.lookup(fieldTitle, get)
		if title == "" {
			title = placeholderTitle(i + 1)
		}
		items = append(items, model.CandidateItem{
			Title:         title,
			Description:   syn.lookup(fieldDescription, get),
			Platform:      model.ParsePlatform(syn.lookup(fieldPlatform, get)),
			Status:        model.ParseStatus(syn.lookup(fieldStatus, get)),
			ScheduledDate: c.scheduledDate(obj, syn),
		})
	}
	return items
}

// scheduledDate reads the first non-empty date key. JSON numbers are Unix
// milliseconds; strings go through timestamp parsing.
func (c *JSON) scheduledDate(obj map[string]any, syn synonyms) time.Time {
	for _, key := range syn[fieldScheduledDate] {
		switch v := obj[key].(type) {
		case float64:
			return time.UnixMilli(int64(v)).UTC()
		case string:
			if strings.TrimSpace(v) != "" {
				return model.TimestampOr(v, c.opts.Location, c.opts.Now())
			}
		}
	}
	return c.opts.Now()
}

// scalarString renders JSON scalars as text. Objects, arrays and null are
// treated as absent.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	}
	return "", false
}

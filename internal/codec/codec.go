// Package codec translates between content items and the calendar
// interchange formats (CSV, ICS, JSON, plus XLSX for export).
//
// Every codec is a pure function of its input and Options: the only ambient
// inputs, the clock and the location for zone-less timestamps, are injected.
package codec

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"contentcal/internal/model"
)

// Format identifies an interchange format by its file extension.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatICS  Format = "ics"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

var (
	// ErrUnsupportedFormat is returned for formats outside the supported set.
	ErrUnsupportedFormat = errors.New("unsupported file format; please use CSV, ICS, or JSON files")
	// ErrInvalidJSON is returned when JSON input cannot be parsed at all.
	ErrInvalidJSON = errors.New("invalid JSON format")
)

// ImportFormats are the formats accepted for import, in display order.
var ImportFormats = []Format{FormatCSV, FormatICS, FormatJSON}

// ExportFormats are the formats that can be produced by export.
var ExportFormats = []Format{FormatCSV, FormatICS, FormatJSON, FormatXLSX}

// ParseFormat maps a user supplied format name (".CSV", "ics", ...) to a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	switch f {
	case FormatCSV, FormatICS, FormatJSON, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// FormatFromFilename returns the import format implied by name's extension.
// Only the import formats are accepted.
func FormatFromFilename(name string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
	for _, f := range ImportFormats {
		if ext == "."+string(f) {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// ContentType returns the MIME type used when serving f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatICS:
		return "text/calendar"
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Options carries the ambient inputs shared by all codecs.
type Options struct {
	// Now returns the current time; used for export stamps and as the
	// default scheduled date on import. Defaults to time.Now.
	Now func() time.Time
	// Location is used for timestamps that carry no zone. Defaults to time.Local.
	Location *time.Location
	// UIDDomain is the right-hand side of exported ICS UIDs.
	UIDDomain string
	// ProductID is the ICS PRODID value.
	ProductID string
}

const (
	defaultUIDDomain = "contentpro.app"
	defaultProductID = "-//ContentPro//Content Calendar//EN"
)

// WithDefaults fills unset fields with their defaults.
func (o Options) WithDefaults() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.UIDDomain == "" {
		o.UIDDomain = defaultUIDDomain
	}
	if o.ProductID == "" {
		o.ProductID = defaultProductID
	}
	return o
}

// Encoder turns items into a file body.
type Encoder interface {
	Encode(items []model.ContentItem) ([]byte, error)
}

// Decoder turns a file body into candidate items.
type Decoder interface {
	Decode(data []byte) ([]model.CandidateItem, error)
}

// Codec is an Encoder/Decoder pair for one format.
type Codec interface {
	Encoder
	Decoder
}

// NewEncoder returns the encoder for f.
func NewEncoder(f Format, opts Options) (Encoder, error) {
	switch f {
	case FormatCSV:
		return NewCSV(opts), nil
	case FormatICS:
		return NewICS(opts), nil
	case FormatJSON:
		return NewJSON(opts), nil
	case FormatXLSX:
		return NewXLSX(opts), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// NewDecoder returns the decoder for f. XLSX is export-only.
func NewDecoder(f Format, opts Options) (Decoder, error) {
	switch f {
	case FormatCSV:
		return NewCSV(opts), nil
	case FormatICS:
		return NewICS(opts), nil
	case FormatJSON:
		return NewJSON(opts), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
}

// placeholderTitle is used when a record carries no usable title.
func placeholderTitle(n int) string {
	return fmt.Sprintf("Imported Item %d", n)
}

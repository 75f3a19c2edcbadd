package codec

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"contentcal/internal/model"
)

// XLSXSheet is the name of the single worksheet written by XLSX export.
const XLSXSheet = "Content Calendar"

// XLSX writes a spreadsheet with the same columns as CSV export.
type XLSX struct {
	opts Options
}

func NewXLSX(opts Options) *XLSX {
	return &XLSX{opts: opts.WithDefaults()}
}

func (c *XLSX) Encode(items []model.ContentItem) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", XLSXSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(XLSXSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, it := range items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			it.Title,
			it.Description,
			string(it.Platform),
			string(it.Status),
			model.FormatTimestamp(it.ScheduledDate),
			model.FormatTimestamp(it.CreatedAt),
		}
		if err := f.SetSheetRow(XLSXSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

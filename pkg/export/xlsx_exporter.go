package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const xlsxDefaultSheet = "Sheet1"

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct {
	sheet string
}

// NewXLSXExporter constructs an exporter writing to the named sheet.
func NewXLSXExporter(sheet string) *XLSXExporter {
	if sheet == "" {
		sheet = xlsxDefaultSheet
	}
	return &XLSXExporter{sheet: sheet}
}

// Render writes the header row then one row per record. Numeric columns are
// stored as numbers so spreadsheet formulas work on them.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f := excelize.NewFile()
	defer f.Close()

	if e.sheet != xlsxDefaultSheet {
		if err := f.SetSheetName(xlsxDefaultSheet, e.sheet); err != nil {
			return nil, fmt.Errorf("name xlsx sheet: %w", err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create xlsx style: %w", err)
	}

	for j, header := range data.Headers {
		if err := e.setCell(f, j+1, 1, header); err != nil {
			return nil, err
		}
	}
	if err := e.styleRow(f, 1, len(data.Headers), bold); err != nil {
		return nil, err
	}

	for i := range data.Rows {
		row := i + 2
		for j, value := range data.Record(i) {
			var cell interface{} = value
			if data.isNumeric(data.Headers[j]) {
				if n, err := strconv.ParseFloat(value, 64); err == nil {
					cell = n
				}
			}
			if err := e.setCell(f, j+1, row, cell); err != nil {
				return nil, err
			}
		}
		if data.Emphasized[i] {
			if err := e.styleRow(f, row, len(data.Headers), bold); err != nil {
				return nil, err
			}
		}
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *XLSXExporter) setCell(f *excelize.File, col, row int, value interface{}) error {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Errorf("xlsx cell %d,%d: %w", col, row, err)
	}
	if err := f.SetCellValue(e.sheet, name, value); err != nil {
		return fmt.Errorf("set xlsx cell %s: %w", name, err)
	}
	return nil
}

func (e *XLSXExporter) styleRow(f *excelize.File, row, cols, style int) error {
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(cols, row)
	if err := f.SetCellStyle(e.sheet, first, last, style); err != nil {
		return fmt.Errorf("style xlsx row %d: %w", row, err)
	}
	return nil
}

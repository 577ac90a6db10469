// Package export renders operation reports as spreadsheets.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet is one worksheet: a header row followed by Rows, each aligned with Columns.
type Sheet struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Workbook renders the sheets in order and returns the xlsx bytes and a file name ending in .xlsx.
func Workbook(filename string, sheets ...Sheet) ([]byte, string, error) {
	if len(sheets) == 0 {
		return nil, "", fmt.Errorf("workbook needs at least one sheet")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, "", err
	}

	for i, sheet := range sheets {
		if err := writeSheet(f, sheet, headerStyle); err != nil {
			return nil, "", fmt.Errorf("sheet %s: %w", sheet.Name, err)
		}
		if i == 0 {
			index, _ := f.GetSheetIndex(sheet.Name)
			f.SetActiveSheet(index)
		}
	}
	// excelize always starts with Sheet1
	if !hasSheet(sheets, "Sheet1") {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return nil, "", err
		}
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	if !strings.HasSuffix(filename, ".xlsx") {
		filename += ".xlsx"
	}
	return buffer.Bytes(), filename, nil
}

func hasSheet(sheets []Sheet, name string) bool {
	for _, s := range sheets {
		if s.Name == name {
			return true
		}
	}
	return false
}

func writeSheet(f *excelize.File, sheet Sheet, headerStyle int) error {
	if _, err := f.NewSheet(sheet.Name); err != nil {
		return err
	}

	for i, col := range sheet.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet.Name, cell, col); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet.Name, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	for rowIdx, row := range sheet.Rows {
		for colIdx, val := range row {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err := f.SetCellValue(sheet.Name, cell, cellValue(val)); err != nil {
				return err
			}
		}
	}

	for i := range sheet.Columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheet.Name, col, col, 20); err != nil {
			return err
		}
	}
	return nil
}

func cellValue(val any) any {
	switch v := val.(type) {
	case nil:
		return ""
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.UTC().Format("2006-01-02 15:04:05")
	case []string:
		return strings.Join(v, ", ")
	case fmt.Stringer:
		return v.String()
	default:
		return v
	}
}

package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWorkbookWritesSheets(t *testing.T) {
	data, name, err := Workbook("unused-files",
		Sheet{
			Name:    "Files",
			Columns: []string{"ID", "Size", "Tags", "Created"},
			Rows: [][]any{
				{"a1", int64(120), []string{"x", "y"}, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
				{"b2", int64(7), nil, time.Time{}},
			},
		},
		Sheet{Name: "Summary", Columns: []string{"Metric", "Value"}, Rows: [][]any{{"total", 2}}},
	)
	require.NoError(t, err)
	assert.Equal(t, "unused-files.xlsx", name)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Files", "Summary"}, f.GetSheetList())

	rows, err := f.GetRows("Files")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Size", "Tags", "Created"}, rows[0])
	assert.Equal(t, []string{"a1", "120", "x, y", "2024-03-01 10:00:00"}, rows[1])
	assert.Equal(t, "b2", rows[2][0])
}

func TestWorkbookNeedsSheets(t *testing.T) {
	_, _, err := Workbook("empty")
	assert.Error(t, err)
}

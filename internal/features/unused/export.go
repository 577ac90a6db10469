package unused

import (
	"sort"

	"go-lms/internal/export"
)

// Workbook renders the candidates and the analysis as two sheets.
func Workbook(result *Result) ([]byte, string, error) {
	files := export.Sheet{
		Name:    "Unused Files",
		Columns: []string{"ID", "Name", "Path", "Category", "MIME Type", "Size", "Uploaded By", "Created At"},
	}
	for _, f := range result.Files {
		files.Rows = append(files.Rows, []any{f.ID, f.Name, f.Path, f.Category, f.MimeType, f.Size, f.UploadedBy, f.CreatedAt})
	}

	a := result.Analysis
	analysis := export.Sheet{
		Name:    "Analysis",
		Columns: []string{"Group", "Key", "Count", "Bytes"},
		Rows: [][]any{
			{"total", "", a.UnusedFiles, a.WastedBytes},
			{"scanned", "", a.Scanned, nil},
			{"scan_failures", "", len(a.ScanFailures), nil},
		},
	}
	analysis.Rows = append(analysis.Rows, bucketRows("category", a.ByCategory)...)
	analysis.Rows = append(analysis.Rows, bucketRows("mime_type", a.ByMimeType)...)

	return export.Workbook("unused-files-"+a.Cutoff.Format("20060102-150405"), files, analysis)
}

func bucketRows(group string, buckets map[string]Bucket) [][]any {
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][]any, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []any{group, k, buckets[k].Count, buckets[k].Bytes})
	}
	return rows
}

package integrity

import (
	"sort"

	"go-lms/internal/common/models"
	"go-lms/internal/export"
)

var categoryOrder = []models.IssueCategory{
	models.IssueMissingPhysicalFile,
	models.IssueSizeMismatch,
	models.IssuePathMalformed,
	models.IssuePermissionDenied,
	models.IssueMetadataIncomplete,
}

// Workbook renders a validation report as an Issues sheet and a Summary sheet.
func Workbook(report *models.OperationReport) ([]byte, string, error) {
	issues := export.Sheet{
		Name:    "Issues",
		Columns: []string{"File ID", "Path", "Category", "Message", "Expected", "Actual", "Repaired"},
	}
	for _, category := range orderedCategories(report) {
		for _, issue := range report.Issues[category] {
			issues.Rows = append(issues.Rows, []any{
				issue.FileID, issue.Path, string(issue.Category), issue.Message, issue.Expected, issue.Actual, issue.Repaired,
			})
		}
	}

	summary := export.Sheet{
		Name:    "Summary",
		Columns: []string{"Metric", "Value"},
		Rows: [][]any{
			{"operation_id", report.OperationID},
			{"dry_run", report.DryRun},
			{"files", report.Total},
			{"failed", report.Failed},
			{"issues", report.IssueCount()},
		},
	}
	for _, category := range orderedCategories(report) {
		summary.Rows = append(summary.Rows, []any{string(category), len(report.Issues[category])})
	}
	if report.Repairs != nil {
		summary.Rows = append(summary.Rows,
			[]any{"repairs_attempted", report.Repairs.Attempted},
			[]any{"repairs_successful", report.Repairs.Successful},
			[]any{"repairs_failed", report.Repairs.Failed},
		)
	}

	return export.Workbook("integrity-"+report.StartedAt.UTC().Format("20060102-150405"), issues, summary)
}

// orderedCategories lists the known categories first, then any others alphabetically.
func orderedCategories(report *models.OperationReport) []models.IssueCategory {
	out := make([]models.IssueCategory, 0, len(report.Issues))
	known := make(map[models.IssueCategory]bool, len(categoryOrder))
	for _, c := range categoryOrder {
		known[c] = true
		if len(report.Issues[c]) > 0 {
			out = append(out, c)
		}
	}
	var rest []models.IssueCategory
	for c := range report.Issues {
		if !known[c] {
			rest = append(rest, c)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}

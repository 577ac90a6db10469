package models

import (
	"time"

	"go-lms/internal/common/apperrors"
)

type Operation string

const (
	OperationDelete   Operation = "delete"
	OperationMove     Operation = "move"
	OperationOrganize Operation = "organize"
	OperationValidate Operation = "validate"
)

// Destructive reports whether the operation removes or relocates data.
func (o Operation) Destructive() bool {
	return o == OperationDelete || o == OperationMove
}

type ItemStatus string

const (
	ItemProcessed ItemStatus = "processed"
	ItemSkipped   ItemStatus = "skipped"
	ItemFailed    ItemStatus = "failed"
)

// AssetState is the snapshot of the fields an operation can change.
type AssetState struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	URL      string   `json:"url"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
	Size     int64    `json:"size"`
}

type ItemOutcome struct {
	ID         string            `json:"id"`
	Name       string            `json:"name,omitempty"`
	Status     ItemStatus        `json:"status"`
	Reason     string            `json:"reason,omitempty"`
	Before     *AssetState       `json:"before,omitempty"`
	After      *AssetState       `json:"after,omitempty"`
	Changes    map[string]Change `json:"changes,omitempty"`
	Error      string            `json:"error,omitempty"`
	ErrorKind  apperrors.Kind    `json:"error_kind,omitempty"`
	Details    any               `json:"details,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	FreedBytes int64             `json:"freed_bytes,omitempty"`
	Issues     []IssueCategory   `json:"issues,omitempty"`
}

// Fail marks the outcome failed and copies kind and details from err.
func (o *ItemOutcome) Fail(err error) {
	o.Status = ItemFailed
	o.Error = err.Error()
	o.ErrorKind = apperrors.KindOf(err)
	if details := apperrors.DetailsOf(err); details != nil {
		o.Details = details
	}
}

func (o *ItemOutcome) Skip(reason string) {
	o.Status = ItemSkipped
	o.Reason = reason
}

func (o *ItemOutcome) Warn(msg string) {
	o.Warnings = append(o.Warnings, msg)
}

type IssueCategory string

const (
	IssueMissingPhysicalFile IssueCategory = "missing_physical_file"
	IssueSizeMismatch        IssueCategory = "size_mismatch"
	IssuePathMalformed       IssueCategory = "path_malformed"
	IssuePermissionDenied    IssueCategory = "permission_denied"
	IssueMetadataIncomplete  IssueCategory = "metadata_incomplete"
)

type Issue struct {
	FileID   string        `json:"file_id"`
	Path     string        `json:"path"`
	Category IssueCategory `json:"category"`
	Message  string        `json:"message"`
	Expected any           `json:"expected,omitempty"`
	Actual   any           `json:"actual,omitempty"`
	Repaired bool          `json:"repaired"`
}

type RepairStats struct {
	Attempted  int `json:"attempted"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// OperationReport is the transient result of one bulk invocation.
// Counters are only changed through Record.
type OperationReport struct {
	OperationID string                    `json:"operation_id"`
	Operation   Operation                 `json:"operation"`
	DryRun      bool                      `json:"dry_run"`
	Total       int                       `json:"total"`
	Processed   int                       `json:"processed"`
	Skipped     int                       `json:"skipped"`
	Failed      int                       `json:"failed"`
	Items       []ItemOutcome             `json:"items"`
	Warnings    []string                  `json:"warnings,omitempty"`
	NotStarted  []string                  `json:"not_started,omitempty"`
	FreedBytes  int64                     `json:"freed_bytes,omitempty"`
	Issues      map[IssueCategory][]Issue `json:"issues,omitempty"`
	Repairs     *RepairStats              `json:"repairs,omitempty"`
	StartedAt   time.Time                 `json:"started_at"`
	Elapsed     time.Duration             `json:"-"`
	ElapsedMs   int64                     `json:"elapsed_ms"`
}

func NewReport(operationID string, op Operation, dryRun bool, total int, startedAt time.Time) *OperationReport {
	return &OperationReport{
		OperationID: operationID,
		Operation:   op,
		DryRun:      dryRun,
		Total:       total,
		Items:       make([]ItemOutcome, 0, total),
		StartedAt:   startedAt,
	}
}

// Record appends an outcome and updates the counters.
func (r *OperationReport) Record(o ItemOutcome) {
	switch o.Status {
	case ItemProcessed:
		r.Processed++
		r.FreedBytes += o.FreedBytes
	case ItemSkipped:
		r.Skipped++
	case ItemFailed:
		r.Failed++
	}
	r.Items = append(r.Items, o)
}

func (r *OperationReport) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// AddIssue files an issue under its category.
func (r *OperationReport) AddIssue(issue Issue) {
	if r.Issues == nil {
		r.Issues = make(map[IssueCategory][]Issue)
	}
	r.Issues[issue.Category] = append(r.Issues[issue.Category], issue)
}

// IssueCount returns the number of issues across all categories.
func (r *OperationReport) IssueCount() int {
	n := 0
	for _, list := range r.Issues {
		n += len(list)
	}
	return n
}

func (r *OperationReport) Finish(now time.Time) {
	r.Elapsed = now.Sub(r.StartedAt)
	r.ElapsedMs = r.Elapsed.Milliseconds()
}

// PartialFailure returns a PartialBatchFailure error when some items failed and others did not.
func (r *OperationReport) PartialFailure() error {
	if r.Failed > 0 && r.Failed < len(r.Items) {
		return apperrors.PartialBatch(r.Failed, len(r.Items))
	}
	return nil
}

// DiffStates lists the fields that differ between two snapshots.
func DiffStates(before, after *AssetState) map[string]Change {
	if before == nil || after == nil {
		return nil
	}
	changes := make(map[string]Change)
	if before.Name != after.Name {
		changes["name"] = Change{Old: before.Name, New: after.Name}
	}
	if before.Path != after.Path {
		changes["path"] = Change{Old: before.Path, New: after.Path}
	}
	if before.URL != after.URL {
		changes["url"] = Change{Old: before.URL, New: after.URL}
	}
	if before.Category != after.Category {
		changes["category"] = Change{Old: before.Category, New: after.Category}
	}
	if !sameStrings(before.Tags, after.Tags) {
		changes["tags"] = Change{Old: before.Tags, New: after.Tags}
	}
	if before.Size != after.Size {
		changes["size"] = Change{Old: before.Size, New: after.Size}
	}
	if len(changes) == 0 {
		return nil
	}
	return changes
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

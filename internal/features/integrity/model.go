package integrity

import (
	"go-lms/internal/features/file"
)

// Checks toggles the independent integrity checks. Each enabled check may add its own issue.
type Checks struct {
	Existence  bool `json:"existence"`
	Size       bool `json:"size"`
	Path       bool `json:"path"`
	Permission bool `json:"permission"`
	Metadata   bool `json:"metadata"`
}

func AllChecks() Checks {
	return Checks{Existence: true, Size: true, Path: true, Permission: true, Metadata: true}
}

func (c Checks) none() bool {
	return !c.Existence && !c.Size && !c.Path && !c.Permission && !c.Metadata
}

func (c Checks) physical() bool {
	return c.Existence || c.Size || c.Permission
}

// AutoRepair lists the divergences the validator may fix. Only the stored size is repairable.
type AutoRepair struct {
	Size bool `json:"size"`
}

// Request scopes one validation run. Without IDs or Filter every record is checked.
type Request struct {
	IDs         []string
	Filter      *file.Filter
	Checks      Checks
	AutoRepair  AutoRepair
	DryRun      bool
	Concurrency int
}

// ValidateInput is the transport shape of a validation request.
type ValidateInput struct {
	IDs         []string          `json:"ids" validate:"omitempty,dive,required"`
	Filter      *file.FilterInput `json:"filter"`
	Checks      *Checks           `json:"checks"` // default: all
	AutoRepair  AutoRepair        `json:"auto_repair"`
	DryRun      bool              `json:"dry_run"`
	Concurrency int               `json:"concurrency" validate:"omitempty,min=1,max=32"`
}

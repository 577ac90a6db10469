package bulk_operation

import (
	"go-lms/internal/common/models"
	"go-lms/internal/features/file"
	"go-lms/internal/features/policy"
	"go-lms/internal/features/relocation"
)

// Request is one bulk invocation. Exactly one of IDs and Filter selects the targets.
type Request struct {
	Operation       models.Operation
	IDs             []string
	Filter          *file.Filter
	DryRun          bool
	ContinueOnError bool
	BatchSize       int
	Concurrency     int
	Flags           policy.Flags

	Delete   DeleteOptions
	Move     MoveOptions
	Organize OrganizeOptions
}

type DeleteOptions struct {
	ReferenceHandling policy.ReferenceHandling
	DeletePhysical    bool
	BackupReferences  bool
}

type MoveOptions struct {
	Destination relocation.Destination
	Strategy    relocation.MoveStrategy
	Conflict    relocation.ConflictStrategy
	Verify      bool
	Backup      bool
}

type OrganizeStrategy string

const (
	OrganizeNone       OrganizeStrategy = ""
	OrganizeByCategory OrganizeStrategy = "by_category"
	OrganizeByType     OrganizeStrategy = "by_type"
	OrganizeByDate     OrganizeStrategy = "by_date"
	OrganizeByUploader OrganizeStrategy = "by_uploader"
	OrganizeByUsage    OrganizeStrategy = "by_usage"
)

type OrganizeOptions struct {
	Strategy         OrganizeStrategy
	AddTags          []string
	RemoveTags       []string
	NamingConvention string
}

func (o OrganizeOptions) isEmpty() bool {
	return o.Strategy == OrganizeNone && len(o.AddTags) == 0 && len(o.RemoveTags) == 0 && o.NamingConvention == ""
}

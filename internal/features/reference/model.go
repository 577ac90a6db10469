package reference

import (
	"context"
	"sort"
)

type Cardinality string

const (
	Singular Cardinality = "singular"
	Multi    Cardinality = "multi"
)

// Slot is a named attachment point of an entity kind.
// Embedded slots store {file_id, path, url} documents, the others store the bare id.
type Slot struct {
	Name        string
	Field       string
	Cardinality Cardinality
	Embedded    bool
}

// IDPath is the document path holding the file id.
func (s Slot) IDPath() string {
	if s.Embedded {
		return s.Field + ".file_id"
	}
	return s.Field
}

// EntityRef names one entity holding a file in one of its slots.
type EntityRef struct {
	Kind     string `json:"kind"`
	EntityID string `json:"entity_id"`
	Slot     string `json:"slot"`
	Label    string `json:"label,omitempty"`
}

// Probe finds the references held by one entity kind.
type Probe interface {
	Kind() string
	FindReferences(ctx context.Context, fileID string) ([]EntityRef, error)
}

// Cleaner is implemented by probes able to strip a file from every slot they own.
type Cleaner interface {
	CleanReferences(ctx context.Context, fileID string) (int64, error)
}

// Relinker is implemented by probes whose slots carry a denormalized path and url.
type Relinker interface {
	RelinkReferences(ctx context.Context, fileID, path, url string) (int64, error)
}

// Snapshotter returns the full documents of the given entities for backups.
type Snapshotter interface {
	SnapshotEntities(ctx context.Context, entityIDs []string) ([]map[string]any, error)
}

// Result is the outcome of scanning one file id across every registered probe.
// A failed scan reports HasReferences so that callers fail closed.
type Result struct {
	FileID        string                 `json:"file_id"`
	HasReferences bool                   `json:"has_references"`
	Total         int                    `json:"total"`
	PerEntityKind map[string][]EntityRef `json:"per_entity_kind"`
	ScanFailed    bool                   `json:"scan_failed,omitempty"`
	Errors        []string               `json:"errors,omitempty"`
}

// All flattens the references ordered by kind then entity id.
func (r Result) All() []EntityRef {
	kinds := make([]string, 0, len(r.PerEntityKind))
	for k := range r.PerEntityKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	out := make([]EntityRef, 0, r.Total)
	for _, k := range kinds {
		out = append(out, r.PerEntityKind[k]...)
	}
	return out
}

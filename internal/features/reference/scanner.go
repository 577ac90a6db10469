package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/config"
	"go-lms/internal/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scanner answers "who references this file" by asking every registered probe.
type Scanner struct {
	registry  *Registry
	logger    *zap.Logger
	cacheSize int
}

func NewScanner(registry *Registry, cacheSize int, logger *zap.Logger) *Scanner {
	if cacheSize < 1 {
		cacheSize = 1024
	}
	return &Scanner{
		registry:  registry,
		logger:    logger.With(zap.String("component", "reference_scanner")),
		cacheSize: cacheSize,
	}
}

// NewReferenceScanner is the fx constructor.
func NewReferenceScanner(registry *Registry, cfg *config.Config, logger *zap.Logger) *Scanner {
	return NewScanner(registry, cfg.Assets.ScanCacheSize, logger)
}

// Scan queries every probe concurrently. Probe errors mark the result failed and referenced.
func (s *Scanner) Scan(ctx context.Context, fileID string) Result {
	probes := s.registry.Probes()
	refs := make([][]EntityRef, len(probes))
	errs := make([]error, len(probes))

	var g errgroup.Group
	for i, p := range probes {
		i, p := i, p
		g.Go(func() error {
			refs[i], errs[i] = p.FindReferences(ctx, fileID)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{
		FileID:        fileID,
		PerEntityKind: make(map[string][]EntityRef),
	}
	for i, p := range probes {
		if errs[i] != nil {
			result.ScanFailed = true
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", p.Kind(), errs[i]))
			continue
		}
		if len(refs[i]) > 0 {
			result.PerEntityKind[p.Kind()] = append(result.PerEntityKind[p.Kind()], refs[i]...)
			result.Total += len(refs[i])
		}
	}
	result.HasReferences = result.Total > 0 || result.ScanFailed

	if result.ScanFailed {
		metrics.ReferenceScanFailed()
		s.logger.Warn("Reference scan failed",
			zap.String("file_id", fileID),
			zap.Strings("errors", result.Errors))
	}
	return result
}

// Clean strips fileID from the slots of every kind that references it.
func (s *Scanner) Clean(ctx context.Context, fileID string, result Result) (int64, error) {
	if result.ScanFailed {
		return 0, apperrors.Conflict("cannot clean references after a failed scan", result.Errors)
	}

	var cleaned int64
	for kind := range result.PerEntityKind {
		probe, ok := s.registry.Probe(kind)
		if !ok {
			return cleaned, apperrors.Internal("no probe registered for "+kind, nil)
		}
		cleaner, ok := probe.(Cleaner)
		if !ok {
			return cleaned, apperrors.Internal("references of "+kind+" cannot be cleaned", nil)
		}
		n, err := cleaner.CleanReferences(ctx, fileID)
		if err != nil {
			return cleaned, fmt.Errorf("clean %s references of %s: %w", kind, fileID, err)
		}
		cleaned += n
	}
	return cleaned, nil
}

// Relink rewrites the denormalized path and url held by every relinking probe.
func (s *Scanner) Relink(ctx context.Context, fileID, path, url string) (int64, error) {
	var updated int64
	for _, p := range s.registry.Probes() {
		relinker, ok := p.(Relinker)
		if !ok {
			continue
		}
		n, err := relinker.RelinkReferences(ctx, fileID, path, url)
		if err != nil {
			return updated, fmt.Errorf("relink %s references of %s: %w", p.Kind(), fileID, err)
		}
		updated += n
	}
	return updated, nil
}

// Snapshot is the JSON document written before references are cleaned.
type Snapshot struct {
	FileID     string                      `json:"file_id"`
	TakenAt    time.Time                   `json:"taken_at"`
	References []EntityRef                 `json:"references"`
	Documents  map[string][]map[string]any `json:"documents,omitempty"`
}

// Snapshot serializes the referencing entities of result, including full documents where the probe can provide them.
func (s *Scanner) Snapshot(ctx context.Context, result Result, at time.Time) ([]byte, error) {
	snap := Snapshot{
		FileID:     result.FileID,
		TakenAt:    at.UTC(),
		References: result.All(),
		Documents:  make(map[string][]map[string]any),
	}
	for kind, refs := range result.PerEntityKind {
		probe, ok := s.registry.Probe(kind)
		if !ok {
			continue
		}
		snapper, ok := probe.(Snapshotter)
		if !ok {
			continue
		}
		ids := make([]string, 0, len(refs))
		for _, r := range refs {
			ids = append(ids, r.EntityID)
		}
		docs, err := snapper.SnapshotEntities(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("snapshot %s entities: %w", kind, err)
		}
		snap.Documents[kind] = docs
	}
	return json.MarshalIndent(snap, "", "  ")
}

// Session memoizes scan results for one bulk invocation. Failed scans are never cached.
type Session struct {
	scanner *Scanner
	cache   *lru.Cache[string, Result]
}

func (s *Scanner) NewSession() *Session {
	cache, err := lru.New[string, Result](s.cacheSize)
	if err != nil {
		// only reachable with a non-positive size, which NewScanner rules out
		panic(err)
	}
	return &Session{scanner: s, cache: cache}
}

func (s *Session) Scan(ctx context.Context, fileID string) Result {
	if cached, ok := s.cache.Get(fileID); ok {
		return cached
	}
	result := s.scanner.Scan(ctx, fileID)
	if !result.ScanFailed {
		s.cache.Add(fileID, result)
	}
	return result
}

// Invalidate drops the cached result of fileID after its references changed.
func (s *Session) Invalidate(fileID string) {
	s.cache.Remove(fileID)
}

func (s *Session) Len() int {
	return s.cache.Len()
}

func (s *Session) Close() {
	s.cache.Purge()
}

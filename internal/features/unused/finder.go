package unused

import (
	"context"
	"sort"
	"time"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/config"
	"go-lms/internal/features/file"
	"go-lms/internal/features/reference"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const scanConcurrency = 8

type Query struct {
	GracePeriod time.Duration // zero means the configured default
	Filter      file.Filter
	Limit       int // zero means no limit
}

type Bucket struct {
	Count int   `json:"count"`
	Bytes int64 `json:"bytes"`
}

// Analysis aggregates the wasted space held by unused files.
type Analysis struct {
	GracePeriod  string            `json:"grace_period"`
	Cutoff       time.Time         `json:"cutoff"`
	Scanned      int               `json:"scanned"`
	UnusedFiles  int               `json:"unused_files"`
	WastedBytes  int64             `json:"wasted_bytes"`
	ByCategory   map[string]Bucket `json:"by_category"`
	ByMimeType   map[string]Bucket `json:"by_mime_type"`
	ScanFailures []string          `json:"scan_failures,omitempty"`
	Oldest       *time.Time        `json:"oldest,omitempty"`
	Truncated    bool              `json:"truncated"`
}

type Result struct {
	Files    []file.Summary `json:"files"`
	Analysis Analysis       `json:"analysis"`
}

// Finder lists files with zero references that are older than the grace period. It never mutates.
type Finder struct {
	repo         file.FileRepository
	scanner      *reference.Scanner
	defaultGrace time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

func NewFinder(repo file.FileRepository, scanner *reference.Scanner, defaultGrace time.Duration, logger *zap.Logger) *Finder {
	return &Finder{
		repo:         repo,
		scanner:      scanner,
		defaultGrace: defaultGrace,
		logger:       logger.With(zap.String("component", "unused_finder")),
		now:          time.Now,
	}
}

// NewUnusedFinder is the fx constructor.
func NewUnusedFinder(repo file.FileRepository, scanner *reference.Scanner, cfg *config.Config, logger *zap.Logger) *Finder {
	return NewFinder(repo, scanner, cfg.Assets.UnusedGracePeriod, logger)
}

func (f *Finder) Find(ctx context.Context, q Query) (*Result, error) {
	grace := q.GracePeriod
	if grace == 0 {
		grace = f.defaultGrace
	}
	if grace < 0 {
		return nil, apperrors.Validation("grace period must not be negative")
	}
	if q.Limit < 0 {
		return nil, apperrors.Validation("limit must not be negative")
	}

	cutoff := f.now().UTC().Add(-grace)
	candidates, err := f.repo.Find(ctx, q.Filter.CreatedBefore(cutoff), 0)
	if err != nil {
		return nil, apperrors.Internal("list candidate files", err)
	}

	session := f.scanner.NewSession()
	defer session.Close()

	scans := make([]reference.Result, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for i, asset := range candidates {
		i, asset := i, asset
		g.Go(func() error {
			scans[i] = session.Scan(gctx, asset.IDHex())
			return nil
		})
	}
	_ = g.Wait()

	result := &Result{
		Files: make([]file.Summary, 0),
		Analysis: Analysis{
			GracePeriod: grace.String(),
			Cutoff:      cutoff,
			Scanned:     len(candidates),
			ByCategory:  make(map[string]Bucket),
			ByMimeType:  make(map[string]Bucket),
		},
	}
	a := &result.Analysis
	for i, asset := range candidates {
		scan := scans[i]
		if scan.ScanFailed {
			a.ScanFailures = append(a.ScanFailures, asset.IDHex())
			continue
		}
		if scan.HasReferences {
			continue
		}

		a.UnusedFiles++
		a.WastedBytes += asset.Size
		a.ByCategory[asset.Category] = add(a.ByCategory[asset.Category], asset.Size)
		a.ByMimeType[asset.MimeType] = add(a.ByMimeType[asset.MimeType], asset.Size)
		if a.Oldest == nil || asset.CreatedAt.Before(*a.Oldest) {
			created := asset.CreatedAt
			a.Oldest = &created
		}

		if q.Limit > 0 && len(result.Files) >= q.Limit {
			a.Truncated = true
			continue
		}
		result.Files = append(result.Files, asset.Summary())
	}
	sort.Strings(a.ScanFailures)

	f.logger.Info("Unused file scan finished",
		zap.Duration("grace_period", grace),
		zap.Int("scanned", a.Scanned),
		zap.Int("unused", a.UnusedFiles),
		zap.Int64("wasted_bytes", a.WastedBytes),
		zap.Int("scan_failures", len(a.ScanFailures)))

	return result, nil
}

func add(b Bucket, size int64) Bucket {
	b.Count++
	b.Bytes += size
	return b
}

// Package relocation moves file assets between directories and categories,
// resolving name collisions under a conflict strategy.
package relocation

import (
	"fmt"
	"sync"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/storage"
)

type ConflictStrategy string

const (
	ConflictSkip      ConflictStrategy = "skip"
	ConflictOverwrite ConflictStrategy = "overwrite"
	ConflictRename    ConflictStrategy = "rename"
	// ConflictMerge currently behaves like overwrite. Neither replaces a file
	// owned by another asset or claimed earlier in the same invocation.
	ConflictMerge ConflictStrategy = "merge"
)

// ParseConflictStrategy maps the wire value; empty means rename.
func ParseConflictStrategy(s string) (ConflictStrategy, error) {
	if s == "" {
		return ConflictRename, nil
	}
	c := ConflictStrategy(s)
	if _, ok := conflictResolvers[c]; !ok {
		return "", apperrors.Validation("unknown conflict_strategy %q", s)
	}
	return c, nil
}

// Resolution is where a file will land.
type Resolution struct {
	FinalPath string `json:"final_path"`
	Renamed   bool   `json:"renamed"`
	Overwrite bool   `json:"overwrite"`
}

type conflictResolver func(r *Resolver, fileID, target string) (Resolution, error)

var conflictResolvers = map[ConflictStrategy]conflictResolver{
	ConflictSkip: func(r *Resolver, fileID, target string) (Resolution, error) {
		return Resolution{}, apperrors.Conflict(
			fmt.Sprintf("destination %s already exists", target),
			map[string]any{"path": target},
		)
	},
	ConflictOverwrite: overwrite,
	ConflictMerge:     overwrite,
	ConflictRename: func(r *Resolver, fileID, target string) (Resolution, error) {
		dir, name := splitDir(target)
		base, ext := storage.SplitName(name)
		for i := 1; i <= r.maxAttempts; i++ {
			candidate := storage.JoinDir(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
			taken, err := r.taken(fileID, candidate)
			if err != nil {
				return Resolution{}, err
			}
			if !taken {
				return Resolution{FinalPath: candidate, Renamed: true}, nil
			}
		}
		return Resolution{}, apperrors.Conflict(
			fmt.Sprintf("no free name for %s after %d attempts", target, r.maxAttempts),
			map[string]any{"path": target, "attempts": r.maxAttempts},
		)
	},
}

func overwrite(r *Resolver, fileID, target string) (Resolution, error) {
	if owner, ok := r.claimed[target]; ok && owner != fileID {
		return Resolution{}, ownedConflict(target, owner)
	}
	return Resolution{FinalPath: target, Overwrite: true}, nil
}

func ownedConflict(target, owner string) *apperrors.Error {
	return apperrors.Conflict(
		fmt.Sprintf("destination %s belongs to file %s", target, owner),
		map[string]any{"path": target, "owner_id": owner},
	)
}

// Resolver picks destination paths for one invocation. Paths it hands out count
// as taken for later items, so a dry run resolves the same names a live run would.
type Resolver struct {
	store       storage.Store
	maxAttempts int

	mu      sync.Mutex
	claimed map[string]string // path -> file id
}

func NewResolver(store storage.Store, maxAttempts int) *Resolver {
	if maxAttempts < 1 {
		maxAttempts = 100
	}
	return &Resolver{
		store:       store,
		maxAttempts: maxAttempts,
		claimed:     make(map[string]string),
	}
}

// Resolve returns the final path for moving fileID from current to target.
func (r *Resolver) Resolve(fileID, current, target string, strategy ConflictStrategy) (Resolution, error) {
	resolve, ok := conflictResolvers[strategy]
	if !ok {
		return Resolution{}, apperrors.Validation("unknown conflict_strategy %q", strategy)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if target == current {
		return Resolution{FinalPath: current}, nil
	}

	taken, err := r.taken(fileID, target)
	if err != nil {
		return Resolution{}, err
	}
	res := Resolution{FinalPath: target}
	if taken {
		if res, err = resolve(r, fileID, target); err != nil {
			return Resolution{}, err
		}
	}
	r.claimed[res.FinalPath] = fileID
	return res, nil
}

// Release forgets a claim, e.g. after a failed move.
func (r *Resolver) Release(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claimed, path)
}

// taken must be called with mu held.
func (r *Resolver) taken(fileID, p string) (bool, error) {
	if owner, ok := r.claimed[p]; ok && owner != fileID {
		return true, nil
	}
	return r.store.Exists(p)
}

func splitDir(p string) (string, string) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[:i], p[i+1:]
		}
	}
	return "", p
}

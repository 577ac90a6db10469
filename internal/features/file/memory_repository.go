package file

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-lms/internal/common/apperrors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryRepository is an in-process FileRepository. Records are copied on the way
// in and out so callers cannot mutate stored state.
type MemoryRepository struct {
	mu    sync.RWMutex
	files map[primitive.ObjectID]*FileAsset
	now   func() time.Time

	// Writes counts Insert/Update/Delete calls; tests use it to assert dry runs.
	Writes int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		files: make(map[primitive.ObjectID]*FileAsset),
		now:   time.Now,
	}
}

func (r *MemoryRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) Insert(ctx context.Context, file *FileAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if file.ID.IsZero() {
		file.ID = primitive.NewObjectID()
	}
	if _, exists := r.files[file.ID]; exists {
		return apperrors.Conflict("duplicate file id "+file.ID.Hex(), nil)
	}
	for _, f := range r.files {
		if f.Path == file.Path {
			return apperrors.Conflict("duplicate file path "+file.Path, nil)
		}
	}
	if file.CreatedAt.IsZero() {
		file.CreatedAt = r.now().UTC()
	}
	if file.UpdatedAt.IsZero() {
		file.UpdatedAt = file.CreatedAt
	}
	r.files[file.ID] = file.Clone()
	r.Writes++
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*FileAsset, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NotFound("file", id)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.files[oid]
	if !ok {
		return nil, apperrors.NotFound("file", id)
	}
	return f.Clone(), nil
}

func (r *MemoryRepository) FindByPath(ctx context.Context, p string) (*FileAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.files {
		if f.Path == p {
			return f.Clone(), nil
		}
	}
	return nil, apperrors.NotFound("file at path", p)
}

func (r *MemoryRepository) FindByIDs(ctx context.Context, ids []string) ([]*FileAsset, []string, error) {
	unique, oids, missing := splitIDs(ids)

	r.mu.RLock()
	byID := make(map[string]*FileAsset, len(oids))
	for _, oid := range oids {
		if f, ok := r.files[oid]; ok {
			byID[oid.Hex()] = f.Clone()
		}
	}
	r.mu.RUnlock()

	found, notFound := orderByInput(unique, byID)
	return found, append(missing, notFound...), nil
}

func (r *MemoryRepository) Find(ctx context.Context, filter Filter, limit int64) ([]*FileAsset, error) {
	r.mu.RLock()
	var out []*FileAsset
	for _, f := range r.files {
		if filter.Matches(f) {
			out = append(out, f.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.Hex() < out[j].ID.Hex()
	})
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id primitive.ObjectID, patch Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return apperrors.NotFound("file", id.Hex())
	}
	patch.Apply(f, r.now().UTC())
	r.Writes++
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return apperrors.NotFound("file", id.Hex())
	}
	delete(r.files, id)
	r.Writes++
	return nil
}

// Len returns the number of stored records.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.files)
}

package file

import (
	"context"
	"errors"
	"time"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type FileRepository interface {
	Insert(ctx context.Context, file *FileAsset) error
	Get(ctx context.Context, id string) (*FileAsset, error)
	// FindByPath returns the record stored at p, or a NotFound error.
	FindByPath(ctx context.Context, p string) (*FileAsset, error)
	// FindByIDs returns the found records in input order (duplicates collapsed) and the ids with no record.
	FindByIDs(ctx context.Context, ids []string) ([]*FileAsset, []string, error)
	Find(ctx context.Context, filter Filter, limit int64) ([]*FileAsset, error)
	Update(ctx context.Context, id primitive.ObjectID, patch Patch) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

type FileRepositoryImpl struct {
	Collection *mongo.Collection
	now        func() time.Time
}

func NewFileRepository(mongodb *database.MongodbDB) FileRepository {
	return &FileRepositoryImpl{
		Collection: mongodb.DB.Collection("files"),
		now:        time.Now,
	}
}

func (r *FileRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "path", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "uploaded_by", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
	})
	return err
}

func (r *FileRepositoryImpl) Insert(ctx context.Context, file *FileAsset) error {
	if file.ID.IsZero() {
		file.ID = primitive.NewObjectID()
	}
	now := r.now().UTC()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = now
	}
	file.UpdatedAt = now
	_, err := r.Collection.InsertOne(ctx, file)
	return err
}

func (r *FileRepositoryImpl) Get(ctx context.Context, id string) (*FileAsset, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.NotFound("file", id)
	}
	var file FileAsset
	err = r.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("file", id)
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *FileRepositoryImpl) FindByPath(ctx context.Context, p string) (*FileAsset, error) {
	var file FileAsset
	err := r.Collection.FindOne(ctx, bson.M{"path": p}).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperrors.NotFound("file at path", p)
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *FileRepositoryImpl) FindByIDs(ctx context.Context, ids []string) ([]*FileAsset, []string, error) {
	unique, oids, missing := splitIDs(ids)
	if len(oids) == 0 {
		return nil, missing, nil
	}

	cursor, err := r.Collection.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, nil, err
	}
	defer cursor.Close(ctx)

	var files []*FileAsset
	if err := cursor.All(ctx, &files); err != nil {
		return nil, nil, err
	}

	byID := make(map[string]*FileAsset, len(files))
	for _, f := range files {
		byID[f.ID.Hex()] = f
	}
	found, notFound := orderByInput(unique, byID)
	return found, append(missing, notFound...), nil
}

func (r *FileRepositoryImpl) Find(ctx context.Context, filter Filter, limit int64) ([]*FileAsset, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.Collection.Find(ctx, filter.ToBSON(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var files []*FileAsset
	if err := cursor.All(ctx, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func (r *FileRepositoryImpl) Update(ctx context.Context, id primitive.ObjectID, patch Patch) error {
	set := bson.M{"updated_at": r.now().UTC()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Path != nil {
		set["path"] = *patch.Path
	}
	if patch.URL != nil {
		set["url"] = *patch.URL
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Tags != nil {
		set["tags"] = *patch.Tags
	}
	if patch.Size != nil {
		set["size"] = *patch.Size
	}

	res, err := r.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.NotFound("file", id.Hex())
	}
	return nil
}

func (r *FileRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperrors.NotFound("file", id.Hex())
	}
	return nil
}

// splitIDs de-duplicates ids keeping order and separates the ones that are not valid ObjectIDs.
func splitIDs(ids []string) ([]string, []primitive.ObjectID, []string) {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	oids := make([]primitive.ObjectID, 0, len(ids))
	var invalid []string
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			invalid = append(invalid, id)
			continue
		}
		unique = append(unique, id)
		oids = append(oids, oid)
	}
	return unique, oids, invalid
}

func orderByInput(ids []string, byID map[string]*FileAsset) ([]*FileAsset, []string) {
	found := make([]*FileAsset, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			found = append(found, f)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing
}

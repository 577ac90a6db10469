package reference

import (
	"context"
	"fmt"

	"go-lms/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoProbe scans one content collection. File ids may be stored as ObjectIDs or hex strings.
type MongoProbe struct {
	kind       string
	collection *mongo.Collection
	labelField string
	slots      []Slot
}

func NewMongoProbe(kind string, collection *mongo.Collection, labelField string, slots ...Slot) *MongoProbe {
	return &MongoProbe{
		kind:       kind,
		collection: collection,
		labelField: labelField,
		slots:      slots,
	}
}

func (p *MongoProbe) Kind() string {
	return p.kind
}

func (p *MongoProbe) Slots() []Slot {
	return append([]Slot(nil), p.slots...)
}

func idValues(fileID string) []interface{} {
	values := []interface{}{fileID}
	if oid, err := primitive.ObjectIDFromHex(fileID); err == nil {
		values = append(values, oid)
	}
	return values
}

func (p *MongoProbe) FindReferences(ctx context.Context, fileID string) ([]EntityRef, error) {
	values := idValues(fileID)
	projection := bson.M{"_id": 1}
	if p.labelField != "" {
		projection[p.labelField] = 1
	}

	var refs []EntityRef
	for _, slot := range p.slots {
		cursor, err := p.collection.Find(ctx,
			bson.M{slot.IDPath(): bson.M{"$in": values}},
			options.Find().SetProjection(projection),
		)
		if err != nil {
			return nil, fmt.Errorf("query %s.%s: %w", p.kind, slot.Name, err)
		}

		var docs []bson.M
		if err := cursor.All(ctx, &docs); err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", p.kind, slot.Name, err)
		}
		for _, doc := range docs {
			refs = append(refs, EntityRef{
				Kind:     p.kind,
				EntityID: idString(doc["_id"]),
				Slot:     slot.Name,
				Label:    labelOf(doc[p.labelField]),
			})
		}
	}
	return refs, nil
}

// CleanReferences unsets singular slots and pulls the id out of multi-valued ones.
func (p *MongoProbe) CleanReferences(ctx context.Context, fileID string) (int64, error) {
	values := idValues(fileID)
	var modified int64
	for _, slot := range p.slots {
		filter := bson.M{slot.IDPath(): bson.M{"$in": values}}

		var update bson.M
		switch {
		case slot.Cardinality == Singular:
			update = bson.M{"$unset": bson.M{slot.Field: ""}}
		case slot.Embedded:
			update = bson.M{"$pull": bson.M{slot.Field: bson.M{"file_id": bson.M{"$in": values}}}}
		default:
			update = bson.M{"$pull": bson.M{slot.Field: bson.M{"$in": values}}}
		}

		res, err := p.collection.UpdateMany(ctx, filter, update)
		if err != nil {
			return modified, fmt.Errorf("clean %s.%s: %w", p.kind, slot.Name, err)
		}
		modified += res.ModifiedCount
	}
	return modified, nil
}

// RelinkReferences rewrites path and url inside embedded slots.
func (p *MongoProbe) RelinkReferences(ctx context.Context, fileID, path, url string) (int64, error) {
	values := idValues(fileID)
	var modified int64
	for _, slot := range p.slots {
		if !slot.Embedded {
			continue
		}
		filter := bson.M{slot.IDPath(): bson.M{"$in": values}}

		var (
			update bson.M
			opts   = options.Update()
		)
		if slot.Cardinality == Singular {
			update = bson.M{"$set": bson.M{slot.Field + ".path": path, slot.Field + ".url": url}}
		} else {
			update = bson.M{"$set": bson.M{
				slot.Field + ".$[el].path": path,
				slot.Field + ".$[el].url":  url,
			}}
			opts.SetArrayFilters(options.ArrayFilters{
				Filters: []interface{}{bson.M{"el.file_id": bson.M{"$in": values}}},
			})
		}

		res, err := p.collection.UpdateMany(ctx, filter, update, opts)
		if err != nil {
			return modified, fmt.Errorf("relink %s.%s: %w", p.kind, slot.Name, err)
		}
		modified += res.ModifiedCount
	}
	return modified, nil
}

func (p *MongoProbe) SnapshotEntities(ctx context.Context, entityIDs []string) ([]map[string]any, error) {
	ids := make([]interface{}, 0, len(entityIDs)*2)
	for _, id := range entityIDs {
		ids = append(ids, idValues(id)...)
	}
	cursor, err := p.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		out = append(out, map[string]any(d))
	}
	return out, nil
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

// labelOf accepts plain strings and bilingual {en, ar} documents.
func labelOf(v interface{}) string {
	switch l := v.(type) {
	case string:
		return l
	case bson.M:
		if en, ok := l["en"].(string); ok && en != "" {
			return en
		}
		if ar, ok := l["ar"].(string); ok {
			return ar
		}
	case bson.D:
		return labelOf(l.Map())
	}
	return ""
}

// DefaultProbes returns the probes for the article, course and user collections.
func DefaultProbes(db *mongo.Database) []Probe {
	return []Probe{
		NewMongoProbe("article", db.Collection("articles"), "title",
			Slot{Name: "featured_image", Field: "featured_image", Cardinality: Singular, Embedded: true},
			Slot{Name: "gallery", Field: "gallery", Cardinality: Multi, Embedded: true},
		),
		NewMongoProbe("course", db.Collection("courses"), "title",
			Slot{Name: "thumbnail", Field: "thumbnail", Cardinality: Singular, Embedded: true},
			Slot{Name: "materials", Field: "materials", Cardinality: Multi},
		),
		NewMongoProbe("user", db.Collection("users"), "email",
			Slot{Name: "avatar", Field: "avatar", Cardinality: Singular},
			Slot{Name: "national_id_document", Field: "national_id_document", Cardinality: Singular},
		),
	}
}

// NewRegistryFromDB is the fx constructor registering the default probes.
func NewRegistryFromDB(mongodb *database.MongodbDB) (*Registry, error) {
	return NewRegistry(DefaultProbes(mongodb.DB)...)
}

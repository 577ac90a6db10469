package file

import (
	"regexp"
	"strings"
	"time"

	"go-lms/internal/common/apperrors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Filter is an immutable query over file metadata. Build one with FilterBuilder.
type Filter struct {
	category      string
	mimeType      string
	minSize       *int64
	maxSize       *int64
	uploadedBy    *primitive.ObjectID
	createdBefore *time.Time
	createdAfter  *time.Time
	tags          []string
	pathPrefix    string
}

func (f Filter) IsEmpty() bool {
	return f.category == "" && f.mimeType == "" && f.minSize == nil && f.maxSize == nil &&
		f.uploadedBy == nil && f.createdBefore == nil && f.createdAfter == nil &&
		len(f.tags) == 0 && f.pathPrefix == ""
}

// CreatedBefore returns a copy of f narrowed to records created strictly before t.
func (f Filter) CreatedBefore(t time.Time) Filter {
	if f.createdBefore == nil || t.Before(*f.createdBefore) {
		f.createdBefore = &t
	}
	f.tags = append([]string(nil), f.tags...)
	return f
}

// ToBSON renders the filter as a Mongo query document.
func (f Filter) ToBSON() bson.M {
	query := bson.M{}
	if f.category != "" {
		query["category"] = f.category
	}
	if f.mimeType != "" {
		if strings.HasSuffix(f.mimeType, "/") {
			query["mime_type"] = bson.M{"$regex": "^" + regexp.QuoteMeta(f.mimeType)}
		} else {
			query["mime_type"] = f.mimeType
		}
	}
	if f.minSize != nil || f.maxSize != nil {
		size := bson.M{}
		if f.minSize != nil {
			size["$gte"] = *f.minSize
		}
		if f.maxSize != nil {
			size["$lte"] = *f.maxSize
		}
		query["size"] = size
	}
	if f.uploadedBy != nil {
		query["uploaded_by"] = *f.uploadedBy
	}
	if f.createdBefore != nil || f.createdAfter != nil {
		created := bson.M{}
		if f.createdBefore != nil {
			created["$lt"] = *f.createdBefore
		}
		if f.createdAfter != nil {
			created["$gte"] = *f.createdAfter
		}
		query["created_at"] = created
	}
	if len(f.tags) > 0 {
		query["tags"] = bson.M{"$all": f.tags}
	}
	if f.pathPrefix != "" {
		query["path"] = bson.M{"$regex": "^" + regexp.QuoteMeta(f.pathPrefix)}
	}
	return query
}

// Matches evaluates the filter in memory with the same semantics as ToBSON.
func (f Filter) Matches(a *FileAsset) bool {
	if f.category != "" && a.Category != f.category {
		return false
	}
	if f.mimeType != "" {
		if strings.HasSuffix(f.mimeType, "/") {
			if !strings.HasPrefix(a.MimeType, f.mimeType) {
				return false
			}
		} else if a.MimeType != f.mimeType {
			return false
		}
	}
	if f.minSize != nil && a.Size < *f.minSize {
		return false
	}
	if f.maxSize != nil && a.Size > *f.maxSize {
		return false
	}
	if f.uploadedBy != nil && a.UploadedBy != *f.uploadedBy {
		return false
	}
	if f.createdBefore != nil && !a.CreatedAt.Before(*f.createdBefore) {
		return false
	}
	if f.createdAfter != nil && a.CreatedAt.Before(*f.createdAfter) {
		return false
	}
	for _, want := range f.tags {
		found := false
		for _, t := range a.Tags {
			if t == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.pathPrefix != "" && !strings.HasPrefix(a.Path, f.pathPrefix) {
		return false
	}
	return true
}

// FilterBuilder accumulates filter fields and validates them in Build.
type FilterBuilder struct {
	f    Filter
	errs []string
}

func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{}
}

func (b *FilterBuilder) Category(c string) *FilterBuilder {
	b.f.category = strings.TrimSpace(c)
	return b
}

// MimeType matches exactly, or by prefix when t ends with "/" ("image/").
func (b *FilterBuilder) MimeType(t string) *FilterBuilder {
	b.f.mimeType = strings.TrimSpace(t)
	return b
}

func (b *FilterBuilder) SizeRange(min, max *int64) *FilterBuilder {
	if min != nil && *min < 0 {
		b.errs = append(b.errs, "min_size must not be negative")
	}
	if max != nil && *max < 0 {
		b.errs = append(b.errs, "max_size must not be negative")
	}
	if min != nil && max != nil && *min > *max {
		b.errs = append(b.errs, "min_size must not exceed max_size")
	}
	b.f.minSize, b.f.maxSize = min, max
	return b
}

func (b *FilterBuilder) UploadedBy(hex string) *FilterBuilder {
	if hex == "" {
		return b
	}
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		b.errs = append(b.errs, "uploaded_by is not a valid id")
		return b
	}
	b.f.uploadedBy = &oid
	return b
}

func (b *FilterBuilder) CreatedBefore(t time.Time) *FilterBuilder {
	b.f.createdBefore = &t
	return b
}

func (b *FilterBuilder) CreatedAfter(t time.Time) *FilterBuilder {
	b.f.createdAfter = &t
	return b
}

// OlderThan keeps records created more than d before now.
func (b *FilterBuilder) OlderThan(d time.Duration, now time.Time) *FilterBuilder {
	if d < 0 {
		b.errs = append(b.errs, "older_than must not be negative")
		return b
	}
	return b.CreatedBefore(now.Add(-d))
}

func (b *FilterBuilder) Tags(tags ...string) *FilterBuilder {
	b.f.tags = NormalizeTags(tags)
	return b
}

func (b *FilterBuilder) PathPrefix(p string) *FilterBuilder {
	b.f.pathPrefix = strings.TrimPrefix(strings.TrimSpace(p), "/")
	return b
}

func (b *FilterBuilder) Build() (Filter, error) {
	if b.f.createdBefore != nil && b.f.createdAfter != nil && !b.f.createdAfter.Before(*b.f.createdBefore) {
		b.errs = append(b.errs, "created_after must be before created_before")
	}
	if len(b.errs) > 0 {
		return Filter{}, apperrors.Validation("invalid filter: %s", strings.Join(b.errs, "; "))
	}
	f := b.f
	f.tags = append([]string(nil), b.f.tags...)
	return f, nil
}

// FilterInput is the transport shape of a filter.
type FilterInput struct {
	Category   string   `json:"category" query:"category"`
	MimeType   string   `json:"mime_type" query:"mime_type"`
	MinSize    *int64   `json:"min_size" query:"min_size"`
	MaxSize    *int64   `json:"max_size" query:"max_size"`
	UploadedBy string   `json:"uploaded_by" query:"uploaded_by"`
	OlderThan  string   `json:"older_than" query:"older_than"` // Go duration, e.g. "720h"
	Tags       []string `json:"tags" query:"tags"`
	PathPrefix string   `json:"path_prefix" query:"path_prefix"`
}

func (in *FilterInput) Build(now time.Time) (Filter, error) {
	b := NewFilterBuilder().
		Category(in.Category).
		MimeType(in.MimeType).
		SizeRange(in.MinSize, in.MaxSize).
		UploadedBy(in.UploadedBy).
		Tags(in.Tags...).
		PathPrefix(in.PathPrefix)
	if in.OlderThan != "" {
		d, err := time.ParseDuration(in.OlderThan)
		if err != nil {
			return Filter{}, apperrors.Validation("older_than: %v", err)
		}
		b.OlderThan(d, now)
	}
	return b.Build()
}

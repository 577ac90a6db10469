package file

import (
	"strings"
	"time"

	"go-lms/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PermissionLevel string

const (
	PermissionPublic     PermissionLevel = "public"
	PermissionPrivate    PermissionLevel = "private"
	PermissionRestricted PermissionLevel = "restricted"
)

func (p PermissionLevel) Valid() bool {
	switch p {
	case PermissionPublic, PermissionPrivate, PermissionRestricted:
		return true
	}
	return false
}

// LocalizedText holds the bilingual descriptive metadata.
type LocalizedText struct {
	En string `json:"en,omitempty" bson:"en,omitempty"`
	Ar string `json:"ar,omitempty" bson:"ar,omitempty"`
}

// FileAsset is the metadata record of one uploaded binary.
type FileAsset struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name           string             `json:"name" bson:"name"`
	MimeType       string             `json:"mime_type" bson:"mime_type"`
	Size           int64              `json:"size" bson:"size"`
	Path           string             `json:"path" bson:"path"` // relative to the storage root
	URL            string             `json:"url" bson:"url"`
	Category       string             `json:"category" bson:"category"`
	Tags           []string           `json:"tags" bson:"tags"`
	Permission     PermissionLevel    `json:"permission" bson:"permission"`
	Title          *LocalizedText     `json:"title,omitempty" bson:"title,omitempty"`
	Description    *LocalizedText     `json:"description,omitempty" bson:"description,omitempty"`
	CustomMetadata map[string]any     `json:"custom_metadata,omitempty" bson:"custom_metadata,omitempty"`
	UploadedBy     primitive.ObjectID `json:"uploaded_by" bson:"uploaded_by"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

func (f *FileAsset) IDHex() string {
	return f.ID.Hex()
}

// Clone returns a deep copy so callers can diff before/after states.
func (f *FileAsset) Clone() *FileAsset {
	c := *f
	c.Tags = append([]string(nil), f.Tags...)
	if f.Title != nil {
		t := *f.Title
		c.Title = &t
	}
	if f.Description != nil {
		d := *f.Description
		c.Description = &d
	}
	if f.CustomMetadata != nil {
		c.CustomMetadata = make(map[string]any, len(f.CustomMetadata))
		for k, v := range f.CustomMetadata {
			c.CustomMetadata[k] = v
		}
	}
	return &c
}

func (f *FileAsset) State() *models.AssetState {
	return &models.AssetState{
		Name:     f.Name,
		Path:     f.Path,
		URL:      f.URL,
		Category: f.Category,
		Tags:     append([]string(nil), f.Tags...),
		Size:     f.Size,
	}
}

// Summary is the listing shape used by the unused-file finder and exports.
type Summary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	URL        string    `json:"url"`
	Category   string    `json:"category"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	UploadedBy string    `json:"uploaded_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (f *FileAsset) Summary() Summary {
	s := Summary{
		ID:        f.ID.Hex(),
		Name:      f.Name,
		Path:      f.Path,
		URL:       f.URL,
		Category:  f.Category,
		MimeType:  f.MimeType,
		Size:      f.Size,
		CreatedAt: f.CreatedAt,
	}
	if !f.UploadedBy.IsZero() {
		s.UploadedBy = f.UploadedBy.Hex()
	}
	return s
}

// Patch lists the mutable fields of a FileAsset. Nil fields are left unchanged.
type Patch struct {
	Name     *string
	Path     *string
	URL      *string
	Category *string
	Tags     *[]string
	Size     *int64
}

func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Path == nil && p.URL == nil && p.Category == nil && p.Tags == nil && p.Size == nil
}

// Apply writes the patch onto f.
func (p Patch) Apply(f *FileAsset, now time.Time) {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Path != nil {
		f.Path = *p.Path
	}
	if p.URL != nil {
		f.URL = *p.URL
	}
	if p.Category != nil {
		f.Category = *p.Category
	}
	if p.Tags != nil {
		f.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Size != nil {
		f.Size = *p.Size
	}
	f.UpdatedAt = now
}

// NormalizeTags trims, drops empties and removes duplicates while keeping first-seen order.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Ptr is a small helper for building patches.
func Ptr[T any](v T) *T {
	return &v
}

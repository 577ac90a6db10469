package bulk_operation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/common/models"
	"go-lms/internal/features/file"
	"go-lms/internal/features/relocation"
	"go-lms/internal/storage"
	"go-lms/pkg/utils"
)

// organizer returns the directory an asset belongs in.
type organizer func(ctx context.Context, inv *invocation, asset *file.FileAsset) (string, error)

var organizers = map[OrganizeStrategy]organizer{
	OrganizeByCategory: func(ctx context.Context, inv *invocation, asset *file.FileAsset) (string, error) {
		return categoryDir(asset.Category), nil
	},
	OrganizeByType: func(ctx context.Context, inv *invocation, asset *file.FileAsset) (string, error) {
		return typeDir(asset.MimeType), nil
	},
	OrganizeByDate: func(ctx context.Context, inv *invocation, asset *file.FileAsset) (string, error) {
		return asset.CreatedAt.UTC().Format("2006/01"), nil
	},
	OrganizeByUploader: func(ctx context.Context, inv *invocation, asset *file.FileAsset) (string, error) {
		if asset.UploadedBy.IsZero() {
			return "uploader/unknown", nil
		}
		return "uploader/" + asset.UploadedBy.Hex(), nil
	},
	OrganizeByUsage: func(ctx context.Context, inv *invocation, asset *file.FileAsset) (string, error) {
		scan := inv.session.Scan(ctx, asset.IDHex())
		if scan.ScanFailed {
			return "", apperrors.Conflict("reference scan failed, usage unknown", map[string]any{"errors": scan.Errors})
		}
		if scan.Total > 0 {
			return "in-use", nil
		}
		return "unused", nil
	},
}

func categoryDir(category string) string {
	if slug := utils.Slugify(category); slug != "" {
		return slug
	}
	return "uncategorized"
}

var archiveTypes = map[string]bool{
	"application/zip":              true,
	"application/gzip":             true,
	"application/x-tar":            true,
	"application/x-7z-compressed":  true,
	"application/vnd.rar":          true,
	"application/x-rar-compressed": true,
}

func typeDir(mimeType string) string {
	mimeType = strings.ToLower(mimeType)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "images"
	case strings.HasPrefix(mimeType, "video/"):
		return "videos"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	case archiveTypes[mimeType]:
		return "archives"
	case mimeType == "application/pdf",
		strings.HasPrefix(mimeType, "text/"),
		strings.Contains(mimeType, "msword"),
		strings.Contains(mimeType, "officedocument"),
		strings.Contains(mimeType, "ms-excel"),
		strings.Contains(mimeType, "ms-powerpoint"):
		return "documents"
	}
	return "other"
}

var placeholderPattern = regexp.MustCompile(`\{[^{}]*\}`)

var knownPlaceholders = map[string]bool{
	"{name}": true, "{ext}": true, "{category}": true, "{date}": true, "{id}": true, "{index}": true,
}

func validateOrganize(o OrganizeOptions) error {
	if o.isEmpty() {
		return apperrors.Validation("organize needs a strategy, tags or a naming convention")
	}
	if o.Strategy != OrganizeNone {
		if _, ok := organizers[o.Strategy]; !ok {
			return apperrors.Validation("unknown organize strategy %q", o.Strategy)
		}
	}
	if o.NamingConvention != "" {
		if strings.Contains(o.NamingConvention, "/") {
			return apperrors.Validation("naming_convention must not contain a path separator")
		}
		for _, ph := range placeholderPattern.FindAllString(o.NamingConvention, -1) {
			if !knownPlaceholders[ph] {
				return apperrors.Validation("unknown placeholder %s in naming_convention", ph)
			}
		}
	}
	return nil
}

// renderName expands the naming template. The original extension is kept unless the template places {ext} itself.
func renderName(template string, asset *file.FileAsset, index int) string {
	base, ext := storage.SplitName(asset.Name)
	ext = strings.ToLower(ext)

	r := strings.NewReplacer(
		"{name}", base,
		"{ext}", strings.TrimPrefix(ext, "."),
		"{category}", categoryDir(asset.Category),
		"{date}", asset.CreatedAt.UTC().Format("20060102"),
		"{id}", asset.IDHex(),
		"{index}", strconv.Itoa(index+1),
	)
	name := utils.SanitizeFileName(r.Replace(template))
	if !strings.Contains(template, "{ext}") && ext != "" {
		name += ext
	}
	return name
}

// applyTags removes then adds, keeping first-seen order.
func applyTags(current, add, remove []string) []string {
	drop := make(map[string]bool, len(remove))
	for _, t := range file.NormalizeTags(remove) {
		drop[t] = true
	}
	kept := make([]string, 0, len(current)+len(add))
	for _, t := range current {
		if !drop[t] {
			kept = append(kept, t)
		}
	}
	return file.NormalizeTags(append(kept, add...))
}

func (e *Executor) organizeItem(ctx context.Context, inv *invocation, asset *file.FileAsset, index int) models.ItemOutcome {
	opts := inv.req.Organize
	req := relocation.MoveRequest{
		Strategy: relocation.MoveCategoryOnly,
		Conflict: relocation.ConflictRename,
		DryRun:   inv.req.DryRun,
	}

	if len(opts.AddTags) > 0 || len(opts.RemoveTags) > 0 {
		tags := applyTags(asset.Tags, opts.AddTags, opts.RemoveTags)
		req.Tags = &tags
	}

	if opts.Strategy != OrganizeNone {
		dir, err := organizers[opts.Strategy](ctx, inv, asset)
		if err != nil {
			out := newOutcome(asset)
			out.Fail(fmt.Errorf("organize %s: %w", opts.Strategy, err))
			return out
		}
		req.Strategy = relocation.MovePhysicalOnly
		req.Destination.Directory = dir
	}

	if opts.NamingConvention != "" {
		req.Strategy = relocation.MovePhysicalOnly
		req.FileName = renderName(opts.NamingConvention, asset, index)
	}

	return e.relocate(ctx, inv, asset, req, models.AuditActionOrganize, "already organized")
}

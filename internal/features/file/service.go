package file

import (
	"context"
	"io"
	"strings"
	"time"

	"go-lms/internal/common/apperrors"
	common_models "go-lms/internal/common/models"
	"go-lms/internal/features/audit"
	"go-lms/internal/features/reference"
	"go-lms/internal/storage"
	"go-lms/pkg/utils"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UploadInput describes a new asset. The stored size is the number of bytes actually written.
type UploadInput struct {
	FileName    string
	MimeType    string
	Category    string
	Directory   string
	Tags        []string
	Permission  PermissionLevel
	Title       *LocalizedText
	Description *LocalizedText
	UploadedBy  string
}

type FileService interface {
	Upload(ctx context.Context, in UploadInput, content io.Reader) (*FileAsset, error)
	GetFile(ctx context.Context, id string) (*FileAsset, error)
	Open(ctx context.Context, id string) (*FileAsset, io.ReadCloser, error)
	References(ctx context.Context, id string) (reference.Result, error)
}

type FileServiceImpl struct {
	FileRepo     FileRepository
	Store        storage.Store
	Scanner      *reference.Scanner
	AuditService audit.AuditService
	logger       *zap.Logger
	now          func() time.Time
}

func NewFileService(fileRepo FileRepository, store storage.Store, scanner *reference.Scanner, auditService audit.AuditService, logger *zap.Logger) FileService {
	return &FileServiceImpl{
		FileRepo:     fileRepo,
		Store:        store,
		Scanner:      scanner,
		AuditService: auditService,
		logger:       logger.With(zap.String("component", "file_service")),
		now:          time.Now,
	}
}

// StorageName builds a collision-resistant name that keeps the original extension.
func StorageName(original string) string {
	base, ext := storage.SplitName(original)
	return utils.SanitizeFileName(base) + "_" + uuid.NewString()[:8] + strings.ToLower(ext)
}

// Upload writes the blob and inserts its metadata as one unit; the blob is removed if the insert fails.
func (s *FileServiceImpl) Upload(ctx context.Context, in UploadInput, content io.Reader) (*FileAsset, error) {
	if strings.TrimSpace(in.FileName) == "" {
		return nil, apperrors.Validation("file name is required")
	}
	if in.Permission == "" {
		in.Permission = PermissionPublic
	}
	if !in.Permission.Valid() {
		return nil, apperrors.Validation("unknown permission %q", in.Permission)
	}

	dir := in.Directory
	if dir == "" {
		dir = utils.Slugify(in.Category)
		if dir == "" {
			dir = "uncategorized"
		}
	}
	dir, err := storage.NormalizePath(dir)
	if err != nil {
		return nil, err
	}

	var uploader primitive.ObjectID
	if in.UploadedBy != "" {
		if oid, err := primitive.ObjectIDFromHex(in.UploadedBy); err == nil {
			uploader = oid
		}
	}

	path := storage.JoinDir(dir, StorageName(in.FileName))
	size, err := s.Store.Write(path, content)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	asset := &FileAsset{
		ID:          primitive.NewObjectID(),
		Name:        in.FileName,
		MimeType:    in.MimeType,
		Size:        size,
		Path:        path,
		URL:         s.Store.URL(path),
		Category:    in.Category,
		Tags:        NormalizeTags(in.Tags),
		Permission:  in.Permission,
		Title:       in.Title,
		Description: in.Description,
		UploadedBy:  uploader,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.FileRepo.Insert(ctx, asset); err != nil {
		if rmErr := s.Store.Remove(path); rmErr != nil {
			s.logger.Error("Failed to remove orphaned upload", zap.String("path", path), zap.Error(rmErr))
		}
		return nil, apperrors.Internal("save file metadata", err)
	}

	if s.AuditService != nil {
		s.AuditService.LogChangeAsync(ctx, common_models.AuditActionUpload, "files", asset.IDHex(), map[string]common_models.Change{
			"path": {Old: nil, New: path},
			"size": {Old: nil, New: size},
		})
	}
	s.logger.Info("File uploaded", zap.String("file_id", asset.IDHex()), zap.String("path", path), zap.Int64("size", size))
	return asset, nil
}

func (s *FileServiceImpl) GetFile(ctx context.Context, id string) (*FileAsset, error) {
	return s.FileRepo.Get(ctx, id)
}

func (s *FileServiceImpl) Open(ctx context.Context, id string) (*FileAsset, io.ReadCloser, error) {
	asset, err := s.FileRepo.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.Store.Open(asset.Path)
	if err != nil {
		return nil, nil, err
	}
	return asset, rc, nil
}

func (s *FileServiceImpl) References(ctx context.Context, id string) (reference.Result, error) {
	asset, err := s.FileRepo.Get(ctx, id)
	if err != nil {
		return reference.Result{}, err
	}
	return s.Scanner.Scan(ctx, asset.IDHex()), nil
}

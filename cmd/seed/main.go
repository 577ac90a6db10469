package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go-lms/internal/config"
	"go-lms/internal/database"
	"go-lms/internal/dispatch"
	"go-lms/internal/features/audit"
	"go-lms/internal/features/file"
	"go-lms/internal/features/reference"
	"go-lms/internal/logger"
	"go-lms/internal/storage"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

type demoFile struct {
	name     string
	mime     string
	category string
	tags     []string
	size     int
}

var demoFiles = []demoFile{
	{"intro-banner.png", "image/png", "Course Media", []string{"banner"}, 2048},
	{"gallery-1.jpg", "image/jpeg", "Articles", []string{"gallery"}, 4096},
	{"gallery-2.jpg", "image/jpeg", "Articles", []string{"gallery"}, 3072},
	{"syllabus.pdf", "application/pdf", "Documents", []string{"syllabus"}, 8192},
	{"lecture-01.mp4", "video/mp4", "Videos", []string{"lecture"}, 16384},
	{"avatar.png", "image/png", "Avatars", nil, 1024},
	{"id-scan.pdf", "application/pdf", "Identity", []string{"restricted"}, 2048},
	{"orphan-notes.txt", "text/plain", "Documents", []string{"draft"}, 512},
	{"old-export.zip", "application/zip", "Archives", nil, 32768},
}

func embedded(f *file.FileAsset) bson.M {
	return bson.M{"file_id": f.ID, "path": f.Path, "url": f.URL}
}

// Seed uploads the demo files and creates articles, courses and users that reference most of them.
// The last two files stay unreferenced so the unused finder has candidates.
func Seed(
	lc fx.Lifecycle,
	fileService file.FileService,
	mongodb *database.MongodbDB,
	logger *zap.Logger,
	shutdowner fx.Shutdowner,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() {
					if err := shutdowner.Shutdown(); err != nil {
						logger.Error("Failed to shutdown", zap.Error(err))
					}
				}()

				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				defer cancel()

				logger.Info("Seeding demo file assets")
				assets := make(map[string]*file.FileAsset, len(demoFiles))
				for _, d := range demoFiles {
					content := bytes.Repeat([]byte{'x'}, d.size)
					asset, err := fileService.Upload(ctx, file.UploadInput{
						FileName:   d.name,
						MimeType:   d.mime,
						Category:   d.category,
						Tags:       d.tags,
						Permission: file.PermissionPublic,
						Title:      &file.LocalizedText{En: d.name},
					}, bytes.NewReader(content))
					if err != nil {
						logger.Error("Failed to upload demo file", zap.String("file", d.name), zap.Error(err))
						return
					}
					assets[d.name] = asset
				}

				// back-date two files past the default grace period
				for _, name := range []string{"orphan-notes.txt", "old-export.zip"} {
					_, err := mongodb.DB.Collection("files").UpdateOne(ctx,
						bson.M{"_id": assets[name].ID},
						bson.M{"$set": bson.M{"created_at": time.Now().UTC().Add(-72 * time.Hour)}})
					if err != nil {
						logger.Warn("Failed to back-date file", zap.String("file", name), zap.Error(err))
					}
				}

				articles := []any{
					bson.M{
						"_id":            primitive.NewObjectID(),
						"title":          bson.M{"en": "Welcome to the platform"},
						"featured_image": embedded(assets["intro-banner.png"]),
						"gallery":        bson.A{embedded(assets["gallery-1.jpg"]), embedded(assets["gallery-2.jpg"])},
					},
					bson.M{
						"_id":     primitive.NewObjectID(),
						"title":   bson.M{"en": "Photo recap"},
						"gallery": bson.A{embedded(assets["gallery-2.jpg"])},
					},
				}
				courses := []any{
					bson.M{
						"_id":       primitive.NewObjectID(),
						"title":     bson.M{"en": "Introduction to Go"},
						"thumbnail": embedded(assets["intro-banner.png"]),
						"materials": bson.A{assets["syllabus.pdf"].ID, assets["lecture-01.mp4"].ID},
					},
				}
				users := []any{
					bson.M{
						"_id":                  primitive.NewObjectID(),
						"email":                "student@example.com",
						"avatar":               assets["avatar.png"].ID,
						"national_id_document": assets["id-scan.pdf"].ID,
					},
				}

				for coll, docs := range map[string][]any{"articles": articles, "courses": courses, "users": users} {
					if _, err := mongodb.DB.Collection(coll).InsertMany(ctx, docs); err != nil {
						logger.Error("Failed to seed collection", zap.String("collection", coll), zap.Error(err))
						return
					}
					logger.Info("Seeded collection", zap.String("collection", coll), zap.Int("documents", len(docs)))
				}

				logger.Info(fmt.Sprintf("Seeding complete: %d files", len(assets)))
			}()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			database.NewDatabase,
			storage.NewStore,
			dispatch.NewDispatchQueue,
			file.NewFileRepository,
			audit.NewAuditRepository,
			audit.NewAuditService,
			reference.NewRegistryFromDB,
			reference.NewReferenceScanner,
			file.NewFileService,
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(Seed),
	)

	app.Run()
}

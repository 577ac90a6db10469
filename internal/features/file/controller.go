package file

import (
	"strings"

	"go-lms/internal/common/api"
	"go-lms/internal/common/apperrors"
	"go-lms/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type FileController struct {
	FileService FileService
}

func NewFileController(fileService FileService) *FileController {
	return &FileController{
		FileService: fileService,
	}
}

func localized(c *fiber.Ctx, field string) *LocalizedText {
	t := LocalizedText{En: c.FormValue(field + "_en"), Ar: c.FormValue(field + "_ar")}
	if t.En == "" && t.Ar == "" {
		return nil
	}
	return &t
}

// UploadFile godoc
// @Summary Upload file asset
// @Description Store a binary and create its metadata record
// @Tags assets
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to upload"
// @Param category formData string false "Category"
// @Param directory formData string false "Directory relative to the storage root"
// @Param tags formData string false "Comma separated tags"
// @Param permission formData string false "public, private or restricted"
// @Success 201 {object} FileAsset
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/admin/assets [post]
func (ctrl *FileController) UploadFile(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return api.Error(c, apperrors.Validation("file is required"))
	}
	content, err := header.Open()
	if err != nil {
		return api.Error(c, apperrors.Validation("cannot read upload: %v", err))
	}
	defer content.Close()

	var tags []string
	if raw := c.FormValue("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	uploadedBy := ""
	if claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims); ok {
		uploadedBy = claims.UserID
	}

	asset, err := ctrl.FileService.Upload(c.UserContext(), UploadInput{
		FileName:    header.Filename,
		MimeType:    header.Header.Get("Content-Type"),
		Category:    c.FormValue("category"),
		Directory:   c.FormValue("directory"),
		Tags:        tags,
		Permission:  PermissionLevel(c.FormValue("permission")),
		Title:       localized(c, "title"),
		Description: localized(c, "description"),
		UploadedBy:  uploadedBy,
	}, content)
	if err != nil {
		return api.Error(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(asset)
}

// GetFile godoc
// @Summary Get file asset
// @Tags assets
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} FileAsset
// @Failure 404 {object} map[string]interface{}
// @Router /api/admin/assets/{id} [get]
func (ctrl *FileController) GetFile(c *fiber.Ctx) error {
	asset, err := ctrl.FileService.GetFile(c.UserContext(), c.Params("id"))
	if err != nil {
		return api.Error(c, err)
	}
	return c.JSON(asset)
}

// DownloadFile godoc
// @Summary Download file asset
// @Tags assets
// @Produce octet-stream
// @Param id path string true "File ID"
// @Success 200 {file} file
// @Failure 404 {object} map[string]interface{}
// @Router /api/admin/assets/{id}/download [get]
func (ctrl *FileController) DownloadFile(c *fiber.Ctx) error {
	asset, content, err := ctrl.FileService.Open(c.UserContext(), c.Params("id"))
	if err != nil {
		return api.Error(c, err)
	}

	if asset.MimeType != "" {
		c.Set(fiber.HeaderContentType, asset.MimeType)
	}
	c.Attachment(asset.Name)
	return c.SendStream(content, int(asset.Size))
}

// GetReferences godoc
// @Summary List entities referencing a file
// @Tags assets
// @Produce json
// @Param id path string true "File ID"
// @Success 200 {object} reference.Result
// @Failure 404 {object} map[string]interface{}
// @Router /api/admin/assets/{id}/references [get]
func (ctrl *FileController) GetReferences(c *fiber.Ctx) error {
	result, err := ctrl.FileService.References(c.UserContext(), c.Params("id"))
	if err != nil {
		return api.Error(c, err)
	}
	return c.JSON(result)
}

// Package docs registers the swagger document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/api/admin/assets": {
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "Upload file asset",
                "parameters": [
                    {"type": "file", "name": "file", "in": "formData", "required": true},
                    {"type": "string", "name": "category", "in": "formData"},
                    {"type": "string", "name": "directory", "in": "formData"},
                    {"type": "string", "name": "tags", "in": "formData"},
                    {"type": "string", "name": "permission", "in": "formData"}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/file.FileAsset"}}}
            }
        },
        "/api/admin/assets/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "Get file asset",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/file.FileAsset"}}}
            }
        },
        "/api/admin/assets/{id}/download": {
            "get": {
                "tags": ["assets"],
                "summary": "Download file content",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/admin/assets/{id}/references": {
            "get": {
                "produces": ["application/json"],
                "tags": ["assets"],
                "summary": "List entities referencing a file",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/api/admin/files/delete": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["files"],
                "summary": "Bulk delete files",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.OperationReport"}},
                    "207": {"description": "Partial failure", "schema": {"$ref": "#/definitions/models.OperationReport"}},
                    "400": {"description": "Validation error"},
                    "409": {"description": "Blocked by policy"}
                }
            }
        },
        "/api/admin/files/move": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["files"],
                "summary": "Bulk move files",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.OperationReport"}},
                    "207": {"description": "Partial failure", "schema": {"$ref": "#/definitions/models.OperationReport"}}
                }
            }
        },
        "/api/admin/files/organize": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["files"],
                "summary": "Organize files",
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.OperationReport"}}}
            }
        },
        "/api/admin/files/validate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["files"],
                "summary": "Validate file integrity",
                "parameters": [
                    {"name": "request", "in": "body", "schema": {"type": "object"}},
                    {"type": "string", "name": "format", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.OperationReport"}}}
            }
        },
        "/api/admin/files/unused": {
            "get": {
                "produces": ["application/json"],
                "tags": ["files"],
                "summary": "Find unused files",
                "parameters": [
                    {"type": "string", "name": "grace_period", "in": "query"},
                    {"type": "string", "name": "category", "in": "query"},
                    {"type": "string", "name": "mime_type", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "string", "name": "format", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/api/admin/files/audit": {
            "get": {
                "produces": ["application/json"],
                "tags": ["audit"],
                "summary": "List audit lines",
                "parameters": [
                    {"type": "string", "name": "record_id", "in": "query"},
                    {"type": "string", "name": "action", "in": "query"},
                    {"type": "string", "name": "operation_id", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/health": {
            "get": {"tags": ["system"], "summary": "Liveness probe", "responses": {"200": {"description": "OK"}}}
        },
        "/health/ready": {
            "get": {"tags": ["system"], "summary": "Readiness probe", "responses": {"200": {"description": "OK"}, "503": {"description": "Unavailable"}}}
        }
    },
    "definitions": {
        "file.FileAsset": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "mime_type": {"type": "string"},
                "size": {"type": "integer"},
                "path": {"type": "string"},
                "url": {"type": "string"},
                "category": {"type": "string"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "permission": {"type": "string"},
                "uploaded_by": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "models.OperationReport": {
            "type": "object",
            "properties": {
                "operation_id": {"type": "string"},
                "operation": {"type": "string"},
                "dry_run": {"type": "boolean"},
                "total": {"type": "integer"},
                "processed": {"type": "integer"},
                "skipped": {"type": "integer"},
                "failed": {"type": "integer"},
                "items": {"type": "array", "items": {"type": "object"}},
                "warnings": {"type": "array", "items": {"type": "string"}},
                "not_started": {"type": "array", "items": {"type": "string"}},
                "freed_bytes": {"type": "integer"},
                "issues": {"type": "object"},
                "repairs": {"type": "object"},
                "started_at": {"type": "string"},
                "elapsed_ms": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "go-lms File Asset API",
	Description:      "Administrative file asset lifecycle and integrity operations.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ALX Report API",
        "description": "Rate-limited course-completion reporting API with incremental sync",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Progress", "description": "Course-completion read API"},
        {"name": "Authentication", "description": "Admin login"},
        {"name": "Settings", "description": "Per-company configuration"},
        {"name": "Sync", "description": "Sync engine operations"},
        {"name": "Export", "description": "Report downloads"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database unreachable"}
                }
            }
        },
        "/api/v1/progress": {
            "post": {
                "tags": ["Progress"],
                "summary": "Course progress report",
                "description": "Paginated completion rows for the token's company. Served incrementally when the consumer's sync ledger allows it.",
                "parameters": [
                    {"name": "Authorization", "in": "header", "type": "string", "required": true, "description": "Bearer token"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Flat array of progress rows"},
                    "400": {"description": "Invalid pagination", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "429": {"description": "Daily rate limit exceeded", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate admin",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/companies/{id}/settings": {
            "get": {
                "tags": ["Settings"],
                "summary": "List company settings",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Settings"],
                "summary": "Update company settings",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSettingsRequest"}}
                ],
                "responses": {
                    "204": {"description": "Updated"},
                    "400": {"description": "Unknown or invalid setting", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/companies/{id}/settings/copy": {
            "post": {
                "tags": ["Settings"],
                "summary": "Copy settings from another company",
                "parameters": [
                    {"name": "id", "in": "path", "type": "integer", "required": true},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CopySettingsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/sync/run": {
            "post": {
                "tags": ["Sync"],
                "summary": "Trigger an incremental sync pass",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SyncRunRequest"}}
                ],
                "responses": {
                    "200": {"description": "Run statistics", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A pass is already running", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/sync/populate": {
            "post": {
                "tags": ["Sync"],
                "summary": "Bootstrap the reporting table",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PopulateRequest"}}
                ],
                "responses": {
                    "200": {"description": "Populate statistics", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/sync/cleanup": {
            "post": {
                "tags": ["Sync"],
                "summary": "Soft-delete orphaned reporting rows",
                "parameters": [
                    {"name": "company_id", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/sync/status": {
            "get": {
                "tags": ["Sync"],
                "summary": "Sync and usage overview",
                "parameters": [
                    {"name": "company_id", "in": "query", "type": "integer", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/export/progress": {
            "get": {
                "tags": ["Export"],
                "summary": "Download a progress report",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "company_id", "in": "query", "type": "integer", "required": true},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File download"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "UpdateSettingsRequest": {
            "type": "object",
            "required": ["settings"],
            "properties": {
                "settings": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "CopySettingsRequest": {
            "type": "object",
            "properties": {
                "from_company_id": {"type": "integer"}
            }
        },
        "SyncRunRequest": {
            "type": "object",
            "properties": {
                "company_id": {"type": "integer"},
                "lookback_hours": {"type": "integer"}
            }
        },
        "PopulateRequest": {
            "type": "object",
            "properties": {
                "company_id": {"type": "integer"},
                "batch_size": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

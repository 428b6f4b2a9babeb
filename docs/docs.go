// Package docs registers the residencyd OpenAPI document with swag.
// Regenerate with `swag init -g cmd/residencyd/docs.go -o docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "residencyd maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/healthz": {
            "get": {
                "produces": ["text/plain"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/readyz": {
            "get": {
                "produces": ["text/plain"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "ready"},
                    "503": {"description": "loading"}
                }
            }
        },
        "/v1/models": {
            "get": {
                "produces": ["application/json"],
                "summary": "List known models",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}
                }
            }
        },
        "/v1/models/switch": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Load a model, unloading the current one",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.SwitchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SwitchResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "502": {"description": "Loader failure", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "No loader for family", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/models/{id}/unload": {
            "post": {
                "produces": ["application/json"],
                "summary": "Unload one model",
                "parameters": [
                    {"in": "path", "name": "id", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.UnloadResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/system/unload": {
            "post": {
                "produces": ["application/json"],
                "summary": "Release every backend and reset residency records",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.UnloadResponse"}}
                }
            }
        },
        "/v1/system/status": {
            "get": {
                "produces": ["application/json"],
                "summary": "Service, residency and ghost status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        },
        "/v1/system/ghost": {
            "get": {
                "produces": ["application/json"],
                "summary": "Current ghost-memory classification",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.GhostStatus"}},
                    "503": {"description": "Not configured", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/v1/system/metrics": {
            "get": {
                "produces": ["application/json"],
                "summary": "Host, GPU and residency metrics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.MetricsResponse"}}
                }
            }
        },
        "/v1/system/zombie-killer": {
            "get": {
                "produces": ["application/json"],
                "summary": "Zombie killer settings",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ZombieKillerConfig"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Update zombie killer settings",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.ZombieKillerUpdate"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ZombieKillerConfig"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/diagnostics/gpus": {
            "get": {
                "produces": ["application/json"],
                "summary": "Raw accelerator listing",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.DiagnosticsResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "model not found: foo"},
                "code": {"type": "integer", "example": 404}
            }
        },
        "types.SwitchRequest": {
            "type": "object",
            "properties": {"model": {"type": "string", "example": "juggernaut-xl"}}
        },
        "types.GhostStatus": {
            "type": "object",
            "properties": {
                "detected": {"type": "boolean"},
                "ghost_vram_mb": {"type": "number"},
                "severity": {"type": "string", "example": "medium"},
                "effective_vram_mb": {"type": "number"},
                "expected_vram_mb": {"type": "number"},
                "gpu_available": {"type": "boolean"},
                "checked_at_unix": {"type": "integer"}
            }
        },
        "types.SwitchResponse": {
            "type": "object",
            "properties": {
                "previous": {"type": "string"},
                "current": {"type": "string"},
                "changed": {"type": "boolean"},
                "ghost_memory": {"$ref": "#/definitions/types.GhostStatus"}
            }
        },
        "types.UnloadResponse": {
            "type": "object",
            "properties": {
                "unloaded": {"type": "string"},
                "released": {"type": "array", "items": {"type": "string"}},
                "failed": {"type": "object", "additionalProperties": {"type": "string"}},
                "records_cleared": {"type": "integer"},
                "ghost_memory": {"$ref": "#/definitions/types.GhostStatus"}
            }
        },
        "types.Model": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "family": {"type": "string"},
                "expected_vram_mb": {"type": "number"},
                "last_known_vram_mb": {"type": "number"},
                "loaded": {"type": "boolean"},
                "description": {"type": "string"}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "models": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}},
                "current": {"type": "string"}
            }
        },
        "types.LoadedModel": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "vram_mb": {"type": "number"},
                "ram_mb": {"type": "number"},
                "loaded_at_unix": {"type": "integer"}
            }
        },
        "types.ZombieKillerConfig": {
            "type": "object",
            "properties": {
                "enabled": {"type": "boolean"},
                "interval": {"type": "integer", "example": 30},
                "state": {"type": "string", "example": "idle"},
                "kills_total": {"type": "integer"}
            }
        },
        "types.ZombieKillerUpdate": {
            "type": "object",
            "properties": {
                "enabled": {"type": "boolean"},
                "interval": {"type": "integer", "example": 30}
            }
        },
        "types.StatusResponse": {"type": "object"},
        "types.MetricsResponse": {"type": "object"},
        "types.DiagnosticsResponse": {"type": "object"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "residencyd API",
	Description:      "GPU model residency tracking and ghost-memory detection.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

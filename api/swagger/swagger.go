package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Escuta Cidada API",
        "description": "Survey collection and dashboard analytics backend",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, tokens and password flows"},
        {"name": "Projects", "description": "Tenant project administration"},
        {"name": "Forms", "description": "Form and version authoring"},
        {"name": "Responses", "description": "Citizen response capture and listing"},
        {"name": "Metrics", "description": "Dashboard aggregations and reports"},
        {"name": "Exports", "description": "CSV and PDF exports"},
        {"name": "PowerBI", "description": "Embedded report tokens"},
        {"name": "Users", "description": "Account administration"}
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
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/responses": {
            "post": {
                "tags": ["Responses"],
                "summary": "Submit a form response",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Schema validation failed"}
                }
            },
            "get": {
                "tags": ["Responses"],
                "summary": "List responses with dashboard filters",
                "responses": {
                    "200": {"description": "Paginated responses", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/report": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Consolidated dashboard report",
                "parameters": [
                    {"name": "projetoId", "in": "query", "type": "integer", "required": true},
                    {"name": "temas", "in": "query", "type": "string"},
                    {"name": "bairros", "in": "query", "type": "string"},
                    {"name": "faixaEtaria", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Report payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Ambiguous or invalid filter"}
                }
            }
        },
        "/metrics/distribution": {
            "get": {
                "tags": ["Metrics"],
                "summary": "Value distribution of one answer field",
                "parameters": [
                    {"name": "fieldName", "in": "query", "type": "string", "required": true},
                    {"name": "valueType", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Distribution", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
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

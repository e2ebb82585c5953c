// Package docs registers the API description served under /swagger.
// Run `swag init -g cmd/tableflow/main.go -o cmd/tableflow/docs` to replace
// it with the full schema generated from the handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {
            "name": "Apache 2.0",
            "url": "http://www.apache.org/licenses/LICENSE-2.0.html"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/tenants/{tenant_id}/rules": {
            "get": {"tags": ["rules"], "summary": "List tenant rules", "parameters": [{"$ref": "#/parameters/tenant"}, {"type": "string", "name": "trigger_event", "in": "query"}, {"type": "boolean", "name": "active", "in": "query"}], "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/error"}}},
            "post": {"tags": ["rules"], "summary": "Create a rule", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/body"}], "responses": {"201": {"description": "Created"}, "400": {"$ref": "#/responses/error"}, "409": {"$ref": "#/responses/error"}}}
        },
        "/tenants/{tenant_id}/rules/{id}": {
            "get": {"tags": ["rules"], "summary": "Get a rule", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/rule"}], "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/responses/error"}}},
            "put": {"tags": ["rules"], "summary": "Update a rule", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/rule"}, {"$ref": "#/parameters/body"}], "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/error"}, "404": {"$ref": "#/responses/error"}}},
            "delete": {"tags": ["rules"], "summary": "Delete a rule", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/rule"}], "responses": {"204": {"description": "No Content"}, "404": {"$ref": "#/responses/error"}}}
        },
        "/tenants/{tenant_id}/rules/{id}/toggle": {
            "post": {"tags": ["rules"], "summary": "Flip a rule's active flag", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/rule"}], "responses": {"200": {"description": "OK"}, "404": {"$ref": "#/responses/error"}}}
        },
        "/tenants/{tenant_id}/rules/{id}/test": {
            "post": {"tags": ["rules"], "summary": "Dry-run a rule", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/rule"}, {"$ref": "#/parameters/body"}], "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/error"}, "404": {"$ref": "#/responses/error"}}}
        },
        "/tenants/{tenant_id}/rules/{id}/versions": {
            "get": {"tags": ["rules"], "summary": "Rule version history", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/rule"}], "responses": {"200": {"description": "OK"}, "503": {"$ref": "#/responses/error"}}}
        },
        "/tenants/{tenant_id}/rules/{id}/audit": {
            "get": {"tags": ["audit"], "summary": "Audit log of one rule", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/rule"}, {"$ref": "#/parameters/limit"}], "responses": {"200": {"description": "OK"}}}
        },
        "/tenants/{tenant_id}/rules/reorder": {
            "post": {"tags": ["rules"], "summary": "Set rule priorities", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/body"}], "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/error"}, "404": {"$ref": "#/responses/error"}}}
        },
        "/tenants/{tenant_id}/rules/defaults": {
            "post": {"tags": ["rules"], "summary": "Create the built-in rules for a tenant", "parameters": [{"$ref": "#/parameters/tenant"}], "responses": {"200": {"description": "OK"}}}
        },
        "/tenants/{tenant_id}/audit/logs": {
            "get": {"tags": ["audit"], "summary": "Tenant rule audit log", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/limit"}], "responses": {"200": {"description": "OK"}}}
        },
        "/tenants/{tenant_id}/executions": {
            "get": {"tags": ["audit"], "summary": "Rule execution history", "parameters": [{"$ref": "#/parameters/tenant"}, {"type": "string", "name": "table_number", "in": "query"}, {"type": "string", "format": "date-time", "name": "since", "in": "query"}, {"$ref": "#/parameters/limit"}, {"type": "integer", "name": "offset", "in": "query"}], "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/error"}}}
        },
        "/tenants/{tenant_id}/events": {
            "post": {"tags": ["engine"], "summary": "Deliver a trigger event", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/body"}], "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/error"}}}
        },
        "/tenants/{tenant_id}/tables/{table_number}/status": {
            "post": {"tags": ["tables"], "summary": "Change a table status manually", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/table"}, {"$ref": "#/parameters/body"}], "responses": {"200": {"description": "OK"}, "400": {"$ref": "#/responses/error"}, "404": {"$ref": "#/responses/error"}}}
        },
        "/tenants/{tenant_id}/tables/{table_number}/timers": {
            "get": {"tags": ["tables"], "summary": "List pending timers of a table", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/table"}], "responses": {"200": {"description": "OK"}}}
        },
        "/tenants/{tenant_id}/tables/{table_number}/clear-timers": {
            "post": {"tags": ["tables"], "summary": "Cancel pending timers of a table", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/table"}], "responses": {"200": {"description": "OK"}}}
        },
        "/tenants/{tenant_id}/tables/{table_number}/alerts": {
            "get": {"tags": ["tables"], "summary": "List recent alerts of a table", "parameters": [{"$ref": "#/parameters/tenant"}, {"$ref": "#/parameters/table"}, {"$ref": "#/parameters/limit"}], "responses": {"200": {"description": "OK"}}}
        }
    },
    "parameters": {
        "tenant": {"type": "string", "name": "tenant_id", "in": "path", "required": true},
        "rule": {"type": "string", "name": "id", "in": "path", "required": true},
        "table": {"type": "string", "name": "table_number", "in": "path", "required": true},
        "limit": {"type": "integer", "name": "limit", "in": "query"},
        "body": {"name": "request", "in": "body", "required": true, "schema": {"type": "object"}}
    },
    "responses": {
        "error": {"description": "Error", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
    },
    "definitions": {
        "errors.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "error_code": {"type": "string"},
                "details": {"type": "object"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Tableflow API",
	Description:      "Rule administration, trigger delivery and table control for the table status rule engine",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

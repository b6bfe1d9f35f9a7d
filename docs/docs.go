// Package docs holds the swagger document served at /swagger/*.
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
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/wallet": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Wallet"], "summary": "Get wallet", "responses": {"200": {"description": "OK"}}}
        },
        "/wallet/transactions": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Wallet"], "summary": "List wallet transactions",
                "parameters": [{"type": "integer", "description": "Page size", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/wallet/rewards": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Wallet"], "summary": "List rewards", "responses": {"200": {"description": "OK"}}}
        },
        "/withdrawals": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Withdrawals"], "summary": "List withdrawal requests",
                "parameters": [
                    {"type": "string", "name": "status", "in": "query"},
                    {"type": "integer", "name": "student_id", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["Withdrawals"], "summary": "Request withdrawal",
                "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "422": {"description": "Below minimum or insufficient funds"}, "429": {"description": "Too Many Requests"}}}
        },
        "/withdrawals/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Withdrawals"], "summary": "Get withdrawal request",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/withdrawals/{id}/approve": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Withdrawals"], "summary": "Approve withdrawal",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "409": {"description": "Already processed"}, "422": {"description": "Insufficient funds"}}}
        },
        "/withdrawals/{id}/reject": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Withdrawals"], "summary": "Reject withdrawal",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}, "409": {"description": "Already processed"}}}
        },
        "/grading-events": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["Grading"], "summary": "Record grading event",
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Unknown student"}}}
        },
        "/admin/wallets/{studentID}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Get student wallet",
                "parameters": [{"type": "integer", "name": "studentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/admin/wallets/{studentID}/transactions": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "List student transactions",
                "parameters": [{"type": "integer", "name": "studentID", "in": "path", "required": true}, {"type": "integer", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK"}}}
        },
        "/admin/wallets/{studentID}/balance": {
            "put": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Override balance",
                "parameters": [{"type": "integer", "name": "studentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}}}
        },
        "/admin/wallets/{studentID}/reconciliation": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["Admin"], "summary": "Reconcile wallet",
                "parameters": [{"type": "integer", "name": "studentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "LMS Reward Ledger API",
	Description:      "Student reward wallets, withdrawal approvals and grading rewards",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LMS Portal API",
        "description": "Course portal with PDF slide decks, gated lecture sites and realtime slide sync",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Authentication", "description": "Registration, login and sessions"},
        {"name": "Users", "description": "Account administration"},
        {"name": "Materials", "description": "PDF decks and rendered pages"},
        {"name": "Courses", "description": "Courses and their linked content"},
        {"name": "Enrollments", "description": "Apply/approve lifecycle and rosters"},
        {"name": "Sites", "description": "External lecture sites"},
        {"name": "Realtime", "description": "Websocket slide sync"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register account",
                "responses": {"201": {"description": "Created"}, "409": {"description": "Login id taken"}}
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {"200": {"description": "Tokens issued"}, "401": {"description": "Invalid credentials"}}
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {"200": {"description": "Tokens rotated"}, "401": {"description": "Invalid refresh token"}}
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "Session revoked"}}
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Principal"}}
            }
        },
        "/auth/password": {
            "put": {
                "tags": ["Authentication"],
                "summary": "Change password",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "Password changed"}}
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List accounts",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Accounts"}}
            },
            "post": {
                "tags": ["Users"],
                "summary": "Provision account",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/users/{id}/approve": {
            "post": {
                "tags": ["Users"],
                "summary": "Approve account",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "Approved"}}
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Withdraw approval",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "Withdrawn"}}
            }
        },
        "/materials": {
            "post": {
                "tags": ["Materials"],
                "summary": "Upload a PDF deck",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Conversion enqueued"},
                    "413": {"description": "File too large"},
                    "415": {"description": "Not a PDF"}
                }
            },
            "get": {
                "tags": ["Materials"],
                "summary": "List library materials",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Materials"}}
            }
        },
        "/materials/{id}/pages/{page}": {
            "get": {
                "tags": ["Materials"],
                "summary": "Serve a rendered page",
                "security": [{"BearerAuth": []}],
                "produces": ["image/png"],
                "responses": {
                    "200": {"description": "Page image"},
                    "403": {"description": "Access denied"},
                    "404": {"description": "Unknown page"}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "Course catalog",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Courses"}}
            },
            "post": {
                "tags": ["Courses"],
                "summary": "Create course",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/courses/{id}/enrollments": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Apply for enrollment",
                "security": [{"BearerAuth": []}],
                "responses": {"201": {"description": "Pending enrollment"}, "409": {"description": "Already applied"}}
            },
            "get": {
                "tags": ["Enrollments"],
                "summary": "Course enrollments",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Enrollments"}}
            }
        },
        "/courses/{id}/roster": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Export course roster",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "Roster file"}}
            }
        },
        "/enrollments/{id}/approve": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Approve enrollment",
                "security": [{"BearerAuth": []}],
                "responses": {"204": {"description": "Approved"}}
            }
        },
        "/sites/{slug}/resolve": {
            "get": {
                "tags": ["Sites"],
                "summary": "Resolve a site slug",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Embed target"},
                    "403": {"description": "Access denied"}
                }
            }
        },
        "/ws": {
            "get": {
                "tags": ["Realtime"],
                "summary": "Realtime slide-sync connection",
                "responses": {"101": {"description": "Switching Protocols"}}
            }
        },
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {"200": {"description": "Ready"}}
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

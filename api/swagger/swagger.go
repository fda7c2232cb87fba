package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "VaxCare API",
        "description": "Vaccination-program management platform",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh and session management"},
        {"name": "Users", "description": "Hierarchy account management"},
        {"name": "Regions", "description": "Administrative regions"},
        {"name": "Facilities", "description": "Health facilities and districts"},
        {"name": "Children", "description": "Child records and vaccination history"},
        {"name": "Stock", "description": "Vaccine stock levels"},
        {"name": "Dashboard", "description": "Scoped program counters"},
        {"name": "Reports", "description": "Asynchronous coverage and stock exports"},
        {"name": "System", "description": "Runtime observability"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "Tokens rotated"},
                    "401": {"description": "Invalid refresh token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Session revoked"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change password",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Password changed"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user info",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "User info"}
                }
            }
        },
        "/users": {
            "get": {
                "tags": ["Users"],
                "summary": "List users visible to the caller",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Scoped user list"},
                    "403": {"description": "Forbidden"}
                }
            },
            "post": {
                "tags": ["Users"],
                "summary": "Create a subordinate account",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "User created"},
                    "403": {"description": "Delegation denied"},
                    "409": {"description": "Role slot occupied"}
                }
            }
        },
        "/users/{id}": {
            "get": {
                "tags": ["Users"],
                "summary": "Get user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "User detail"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Users"],
                "summary": "Update user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "User updated"}
                }
            },
            "delete": {
                "tags": ["Users"],
                "summary": "Deactivate user",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "User deactivated"}
                }
            }
        },
        "/regions": {
            "get": {
                "tags": ["Regions"],
                "summary": "List regions",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Region list"}
                }
            },
            "post": {
                "tags": ["Regions"],
                "summary": "Create region (national only)",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Region created"},
                    "409": {"description": "Name already taken"}
                }
            }
        },
        "/facilities": {
            "get": {
                "tags": ["Facilities"],
                "summary": "List facilities inside the caller's scope",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Scoped facility list"}
                }
            },
            "post": {
                "tags": ["Facilities"],
                "summary": "Create facility",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Facility created"},
                    "409": {"description": "Name already taken in region"}
                }
            }
        },
        "/facilities/{id}": {
            "get": {
                "tags": ["Facilities"],
                "summary": "Get facility",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Facility detail"}
                }
            },
            "put": {
                "tags": ["Facilities"],
                "summary": "Update facility",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Facility updated"}
                }
            },
            "delete": {
                "tags": ["Facilities"],
                "summary": "Deactivate facility",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Facility deactivated"}
                }
            }
        },
        "/children": {
            "get": {
                "tags": ["Children"],
                "summary": "List children inside the caller's scope",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Scoped child list"}
                }
            },
            "post": {
                "tags": ["Children"],
                "summary": "Register child",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Child registered"}
                }
            }
        },
        "/children/{id}": {
            "get": {
                "tags": ["Children"],
                "summary": "Get child",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Child detail"}
                }
            },
            "put": {
                "tags": ["Children"],
                "summary": "Update child",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Child updated"}
                }
            },
            "delete": {
                "tags": ["Children"],
                "summary": "Delete child and history",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "204": {"description": "Child deleted"}
                }
            }
        },
        "/children/{id}/vaccinations": {
            "get": {
                "tags": ["Children"],
                "summary": "Vaccination history",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Dose list"}
                }
            },
            "post": {
                "tags": ["Children"],
                "summary": "Record administered dose",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "201": {"description": "Dose recorded"}
                }
            }
        },
        "/children/{id}/card": {
            "get": {
                "tags": ["Children"],
                "summary": "Immunization card (PDF)",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "PDF card"}
                }
            }
        },
        "/stock": {
            "get": {
                "tags": ["Stock"],
                "summary": "List stock levels inside the caller's scope",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Scoped stock list"}
                }
            },
            "put": {
                "tags": ["Stock"],
                "summary": "Record stock level",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Stock recorded"}
                }
            }
        },
        "/dashboard/summary": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Aggregated counters over the caller's scope",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Dashboard summary"}
                }
            }
        },
        "/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Submit report job",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "202": {"description": "Job queued"}
                }
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report job status",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Job detail with result URL when finished"}
                }
            }
        },
        "/reports/download/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download report through signed token",
                "responses": {
                    "200": {"description": "Report file"},
                    "401": {"description": "Token invalid or expired"}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Runtime metrics snapshot (national only)",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "Metrics snapshot"},
                    "403": {"description": "Forbidden"}
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

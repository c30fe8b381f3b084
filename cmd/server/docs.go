// Bookfinder - Reading-Pattern Book Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookfinder

// General API information for swag. Regenerate the docs package with:
//
//	swag init -g cmd/server/docs.go -o docs --parseInternal
//
// @title Bookfinder API
// @version 1.0
// @description Book search, reading history and reading-pattern recommendations.
// @description
// @description ## Authentication
// @description
// @description Routes under /me require a Supabase access token in the Authorization header.
// @description
// @description ## Errors
// @description
// @description Every response uses the same envelope: success, data, error{code,message,details}, meta{request_id,timestamp,duration_ms}.
//
// @contact.name GitHub Repository
// @contact.url https://github.com/tomtom215/bookfinder/issues
//
// @license.name AGPL-3.0-or-later
// @license.url https://www.gnu.org/licenses/agpl-3.0.html
//
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Supabase access token as "Bearer <token>".
//
// @tag.name Catalog
// @tag.description Open Library search
//
// @tag.name History
// @tag.description The caller's reading history
//
// @tag.name Recommendations
// @tag.description The caller's recommendations
package main

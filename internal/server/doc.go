// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the content repository and offline exports over HTTP.
//
// # Endpoints
//
//   - GET    /health                              - Database health check
//   - GET    /api/v1/sections[?parent=ID]         - List root sections or children
//   - GET    /api/v1/sections/{id}                - Get a section
//   - POST   /api/v1/sections                     - Add a section (admin)
//   - PATCH  /api/v1/sections/{id}                - Update or move a section (admin)
//   - DELETE /api/v1/sections/{id}                - Delete a section (admin)
//   - GET    /api/v1/sections/{id}/content        - List a section's content
//   - POST   /api/v1/sections/{id}/content        - Add content (admin)
//   - GET    /api/v1/content/{id}                 - Get content with its section
//   - PATCH  /api/v1/content/{id}                 - Update content (admin)
//   - DELETE /api/v1/content/{id}                 - Delete content (admin)
//   - POST   /api/v1/users/{uid}/favorites/{sid}  - Toggle a favorite
//   - GET    /api/v1/users/{uid}/favorites        - List favorites
//   - POST   /api/v1/users/{uid}/activity         - Record activity
//   - GET    /api/v1/stats                        - Summary statistics
//   - GET    /api/v1/stats/admin                  - Admin statistics (admin)
//   - GET    /api/v1/search?q=                    - Search sections
//   - POST   /api/v1/users/{uid}/export           - Build and download an offline pack
//   - DELETE /api/v1/users/{uid}/export           - Cancel a running export
//   - GET    /api/v1/exports/{id}                 - Export job status
//   - GET    /api/v1/exports/{id}/events          - WebSocket stream of job status
//
// Admin routes need "Authorization: Bearer <token>". With no token configured
// they answer 403.
//
// # Usage
//
//	srv := server.New(cfg.Server, repo, pipeline, logger)
//	if err := srv.ListenAndServe(ctx); err != nil {
//		return err
//	}
package server

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes a bankbot session over a JSON HTTP API.
//
// # Endpoints
//
//   - GET    /api/conversations                 - List summaries and the active id
//   - POST   /api/conversations                 - Create a conversation (201)
//   - GET    /api/conversations/{id}            - Title and messages
//   - PATCH  /api/conversations/{id}            - Rename: {"title": "..."}
//   - DELETE /api/conversations/{id}            - Delete, returns the new active id
//   - POST   /api/conversations/{id}/select     - Make active
//   - POST   /api/conversations/{id}/messages   - Submit: {"text": "..."}
//   - GET    /healthz                           - Liveness
//   - GET    /metrics                           - Prometheus metrics
//
// # Middleware
//
//   - Panic recovery
//   - Request logging and metrics per route template
//   - Per-client rate limiting (token bucket)
//   - Request body size limit
//   - Security headers
//
// # Usage
//
//	srv := server.New(controller, m, server.Config{Addr: "127.0.0.1:8080"})
//	if err := srv.ListenAndServe(ctx); err != nil {
//		log.Fatal(err)
//	}
package server

// Package server implements the HTTP server for the buildgate webhook receiver.
//
// This package provides:
//   - GitHub webhook handling for push, pull_request, status and check_run events
//   - Push and merge gating of the protected branch, with decisions recorded
//     in the history database and optionally published as commit statuses
//   - Build report collection from status and check_run deliveries
//   - Health, status and verdict endpoints for monitoring
//
// The server integrates with other packages:
//   - internal/project: Project configuration and validation
//   - internal/gate: Push and merge gate evaluation
//   - internal/sources: Per-project report, history and publishing backends
//   - internal/history: SQLite-based report store and decision log
//
// Security features:
//   - HMAC-SHA256 webhook signature verification
//   - Content-Type validation (application/json only)
//   - Payload size limits (1MB max)
//   - Rate limiting (global and per-webhook)
//   - Gates fail closed when build status cannot be determined
package server

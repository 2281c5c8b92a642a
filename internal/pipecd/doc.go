// Package pipecd provides the HTTP and websocket client for the deployment
// control plane.
//
// # Endpoints
//
//   - GET  /api/v1/deployments/{id}: deployment snapshot with its stages
//   - GET  /api/v1/deployments/{id}/stages/{stage}/logs: log blocks from
//     offset_index on, plus a completed flag
//   - POST /api/v1/deployments/{id}/stages/{stage}/approve
//   - POST /api/v1/deployments/{id}/stages/{stage}/skip
//   - GET  /api/v1/deployments/{id}/watch: websocket pushing a snapshot on
//     every change
//
// # Request Handling
//
// Every request carries a context, Accept: application/json, a User-Agent
// and a fresh X-Request-ID. A 404 maps to ErrNotFound; on the log endpoint it
// maps to stagelog.ErrNoLog so the scheduler treats it as "no log yet".
// Errors are wrapped with the failing step:
//   - "execute request: dial tcp: connection refused"
//   - "api /api/v1/deployments/d1 returned status 500"
//   - "decode response: unexpected EOF"
//
// The client keeps no state beyond its configuration and is safe for
// concurrent use. Retry policy belongs to the callers.
package pipecd

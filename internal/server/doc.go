// Package server implements the HTTP front end of the deployment gateway.
//
// Routes:
//   - POST /webhook/{service}: verify the delivery, filter on branch, run the deployment
//   - GET /health: liveness only, never touches a service
//   - GET /status/{service}: recent invocations, when the audit log is enabled
//
// Every deployment outcome is mapped to a status code and JSON body in one
// place, outcomeResponse. Webhook requests are rate limited per client IP and
// capped at MaxPayloadBytes.
package server

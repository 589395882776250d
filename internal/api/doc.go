// Package api implements the HTTP REST API and WebSocket server for Gatehouse.
//
// This package provides:
//   - REST endpoints to register devices and move them through the
//     pendiente, validado, entregado pipeline
//   - Occupancy stats, newest-first history and the CSV export
//   - A WebSocket hub pushing device and stats changes to open screens
//   - Optional bearer-token operator auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Side Effects
//
// Every successful mutation is audited, broadcast over WebSocket, published
// to MQTT, written to InfluxDB and, for registrations and deliveries, sent to
// the configured notifiers. All of these are optional and best effort; the
// registry is the only thing a request depends on.
//
// Usage:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

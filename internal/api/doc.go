// Package api provides the Home Assistant REST client.
//
// Endpoints used:
//   - GET  /api                              reachability probe and version
//   - GET  /api/states                       all entity states
//   - GET  /api/states/{entity_id}           one entity state
//   - POST /api/services/{domain}/{service}  service call
//
// Every request carries Authorization: Bearer <long-lived access token>.
// The WebSocket API lives in package connection, which falls back to this
// client when the socket is down.
package api

// Package connection implements the dual-transport link to Home Assistant.
//
// A Connection owns:
//   - A REST client (internal/api) used for the reachability probe and as the
//     fallback path when the socket is down
//   - One persistent WebSocket session, authenticated with the access token
//   - The pending-request table that correlates result frames to callers by id
//
// Requests sent over the socket are matched to responses by id only, so any
// number may be outstanding and replies may arrive in any order. Each request
// waits at most Config.RequestTimeout. The Supervisor keeps a Connection up,
// reconnecting with exponential backoff when the socket drops.
package connection

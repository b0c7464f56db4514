// Package hatest provides an in-process Home Assistant for tests.
//
// The Server speaks the REST endpoints (/api, /api/states, /api/services)
// and the WebSocket API (/api/websocket) closely enough for the connection,
// automation and tool packages to run end to end. Fault hooks let tests make
// the server silent during auth, drop or delay answers, reorder them, or cut
// every socket.
package hatest

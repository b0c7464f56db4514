// Package mcp serves registered tools over HTTP.
//
// Endpoints:
//   - POST /mcp        body {"tool": name, ...args}; routes args to the tool
//   - GET  /mcp/tools  manifests of every registered tool
//   - GET  /health     connects to Home Assistant if needed and reports its version
//
// Every response carries an X-Request-ID. Requests to /mcp pass through a
// token-bucket limiter, and every tool invocation is handed to an audit
// Recorder.
package mcp

// Package ctl implements hassctl, the operator command line for a Home
// Assistant instance.
//
// Each command opens its own connection, runs one operation through the same
// automation tool the HTTP server uses, prints the result in text, json or
// yaml, and disconnects.
package ctl

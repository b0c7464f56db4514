// Package automation manages Home Assistant automations through a connected
// connection.Connection.
//
// List, Create, Update and Delete use the config/automation socket
// commands. Trigger and Toggle call the automation.trigger and
// automation.toggle services. Every operation fails with
// connection.ErrNotConnected when the socket is down; the mutating ones
// otherwise report failures in a Result rather than an error.
package automation

// Package tool adapts services into invocable tools with JSON manifests.
//
// AutomationTool validates the arguments each action needs, calls the
// automation service and converts every failure into an Output with
// Success false. Registry lets the HTTP layer dispatch by tool name.
package tool

// Package database provides PostgreSQL connection pool management.
//
// The bridge stores one thing in PostgreSQL: the tool invocation journal
// written by package audit. Pools are sized from the audit.database section
// of the configuration.
package database

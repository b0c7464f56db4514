// Package audit journals tool invocations.
//
// Handlers hand an Entry to a Recorder. The Writer batches entries and
// inserts them into the tool_invocations table with pgx.Batch, flushing
// whenever BatchSize entries are pending, every FlushInterval, and once more
// on Stop. Inserts are append-only and idempotent on the entry id.
package audit

package audit

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS tool_invocations (
	id            UUID PRIMARY KEY,
	request_id    TEXT NOT NULL DEFAULT '',
	tool          TEXT NOT NULL,
	action        TEXT NOT NULL DEFAULT '',
	automation_id TEXT NOT NULL DEFAULT '',
	success       BOOLEAN NOT NULL,
	error         TEXT NOT NULL DEFAULT '',
	duration_ms   BIGINT NOT NULL,
	invoked_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS tool_invocations_invoked_at_idx ON tool_invocations (invoked_at);
`

const insertSQL = `
	INSERT INTO tool_invocations (id, request_id, tool, action, automation_id, success, error, duration_ms, invoked_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
`

// EnsureSchema creates the journal table and index if they do not exist.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

package postgresengine

import "fmt"

// Schema returns the reference DDL for the events and outbox tables with the given names.
// The payload columns are json, not jsonb, so that stored payloads are returned byte for byte.
// Table names are inserted verbatim and must be trusted identifiers.
func Schema(eventsTable string, outboxTable string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %[1]s (
    event_id               uuid                     NOT NULL PRIMARY KEY,
    stream_key             text                     NOT NULL,
    aggregate_version      integer                  NOT NULL CHECK (aggregate_version > 0),
    event_type             text                     NOT NULL,
    occurred_on            timestamp with time zone NOT NULL,
    payload_schema_version integer                  NOT NULL DEFAULT 1,
    payload                json                     NOT NULL,
    recorded_at            timestamp with time zone NOT NULL DEFAULT now(),
    CONSTRAINT %[1]s_stream_version_key UNIQUE (stream_key, aggregate_version)
);

CREATE TABLE IF NOT EXISTS %[2]s (
    id           uuid                     NOT NULL PRIMARY KEY,
    occurred_on  timestamp with time zone NOT NULL,
    type_name    text                     NOT NULL,
    payload      json                     NOT NULL,
    processed_on timestamp with time zone NULL
);

CREATE INDEX IF NOT EXISTS %[2]s_unprocessed_idx ON %[2]s (occurred_on, id) WHERE processed_on IS NULL;
`, eventsTable, outboxTable)
}

// DefaultSchema returns Schema for the default table names.
func DefaultSchema() string {
	return Schema(defaultEventsTableName, defaultOutboxTableName)
}

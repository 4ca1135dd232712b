package postgresengine

import (
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

// ErrBuildingQueryFailed is returned when goqu cannot render a statement.
var ErrBuildingQueryFailed = errors.New("building sql statement failed")

const (
	dialectPostgres         = "postgres"
	colEventID              = "event_id"
	colStreamKey            = "stream_key"
	colAggregateVersion     = "aggregate_version"
	colEventType            = "event_type"
	colOccurredOn           = "occurred_on"
	colPayloadSchemaVersion = "payload_schema_version"
	colPayload              = "payload"
	colID                   = "id"
	colTypeName             = "type_name"
	colProcessedOn          = "processed_on"
	cteContext              = "context"
	aliasMaxVersion         = "max_version"
	castUUID                = "?::uuid"
	castText                = "?::text"
	castInteger             = "?::integer"
	castTimestamp           = "?::timestamp with time zone"
	castJSON                = "?::json"
)

// buildInsertEventQuery renders an INSERT that only selects its row if the stream currently ends at
// record.AggregateVersion-1:
//
//	WITH context AS (SELECT MAX(aggregate_version) AS max_version FROM events WHERE stream_key = ...)
//	INSERT INTO events (...) SELECT ... FROM context WHERE COALESCE(max_version, 0) = version-1
func (es *EventStore) buildInsertEventQuery(record eventstore.EventRecord) (sqlQueryString, error) {
	builder := goqu.Dialect(dialectPostgres)

	cteStmt := builder.
		From(es.eventsTableName).
		Select(goqu.MAX(colAggregateVersion).As(aliasMaxVersion)).
		Where(goqu.C(colStreamKey).Eq(record.StreamKey))

	selectStmt := builder.
		From(cteContext).
		Select(
			goqu.L(castUUID, record.EventID.String()),
			goqu.L(castText, record.StreamKey),
			goqu.L(castInteger, record.AggregateVersion),
			goqu.L(castText, record.EventTypeName),
			goqu.L(castTimestamp, record.OccurredOn.UTC()),
			goqu.L(castInteger, record.PayloadSchemaVersion),
			goqu.L(castJSON, record.Payload),
		).
		Where(goqu.COALESCE(goqu.C(aliasMaxVersion), 0).Eq(goqu.V(record.AggregateVersion - 1)))

	insertStmt := builder.
		Insert(es.eventsTableName).
		Cols(
			colEventID,
			colStreamKey,
			colAggregateVersion,
			colEventType,
			colOccurredOn,
			colPayloadSchemaVersion,
			colPayload,
		).
		FromQuery(selectStmt).
		With(cteContext, cteStmt)

	return toSQL(insertStmt)
}

func (es *EventStore) buildSelectStreamQuery(streamKey string) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.eventsTableName).
		Select(
			goqu.L(castText, goqu.C(colEventID)),
			colStreamKey,
			colAggregateVersion,
			colEventType,
			colOccurredOn,
			colPayloadSchemaVersion,
			goqu.L(castText, goqu.C(colPayload)),
		).
		Where(goqu.C(colStreamKey).Eq(streamKey)).
		Order(goqu.I(colAggregateVersion).Asc())

	return toSQL(selectStmt)
}

func (es *EventStore) buildInsertOutboxQuery(message eventstore.OutboxMessage) (sqlQueryString, error) {
	insertStmt := goqu.Dialect(dialectPostgres).
		Insert(es.outboxTableName).
		Cols(colID, colOccurredOn, colTypeName, colPayload).
		Vals(goqu.Vals{
			goqu.L(castUUID, message.ID.String()),
			goqu.L(castTimestamp, message.OccurredOn.UTC()),
			message.TypeName,
			goqu.L(castJSON, message.SerializedPayload),
		})

	return toSQL(insertStmt)
}

// buildSelectUnprocessedQuery locks the selected rows and skips rows locked by concurrent relays.
func (es *EventStore) buildSelectUnprocessedQuery(limit int) (sqlQueryString, error) {
	selectStmt := goqu.Dialect(dialectPostgres).
		From(es.outboxTableName).
		Select(
			goqu.L(castText, goqu.C(colID)),
			colOccurredOn,
			colTypeName,
			goqu.L(castText, goqu.C(colPayload)),
			colProcessedOn,
		).
		Where(goqu.C(colProcessedOn).IsNull()).
		Order(goqu.I(colOccurredOn).Asc(), goqu.I(colID).Asc()).
		Limit(uint(limit)).
		ForUpdate(exp.SkipLocked)

	return toSQL(selectStmt)
}

// buildMarkProcessedQuery never overwrites an existing processed_on.
func (es *EventStore) buildMarkProcessedQuery(ids []uuid.UUID, processedOn time.Time) (sqlQueryString, error) {
	idValues := make([]string, 0, len(ids))
	for _, id := range ids {
		idValues = append(idValues, id.String())
	}

	updateStmt := goqu.Dialect(dialectPostgres).
		Update(es.outboxTableName).
		Set(goqu.Record{colProcessedOn: goqu.L(castTimestamp, processedOn.UTC())}).
		Where(
			goqu.C(colID).In(idValues),
			goqu.C(colProcessedOn).IsNull(),
		)

	return toSQL(updateStmt)
}

type sqlRenderer interface {
	ToSQL() (string, []any, error)
}

func toSQL(stmt sqlRenderer) (sqlQueryString, error) {
	sqlQuery, _, err := stmt.ToSQL()
	if err != nil {
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

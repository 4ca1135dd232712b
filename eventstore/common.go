package eventstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

// ErrVersionConflict signals that another writer already took the stream position.
// Recover by reloading the aggregate and retrying the business operation.
var ErrVersionConflict = errors.New("version conflict, stream position already taken")

// ErrStorageFailure signals a transient or permanent I/O failure of the storage engine.
var ErrStorageFailure = errors.New("storage failure")

// ErrTransactionClosed is returned when committing an already committed or rolled back transaction.
var ErrTransactionClosed = errors.New("transaction already committed or rolled back")

// ErrForeignTransaction is returned when a transaction is passed to an engine that did not begin it.
var ErrForeignTransaction = fmt.Errorf("%w: transaction was not started by this store", domain.ErrInvalidArgument)

// ErrNilDatabaseConnection is returned when an engine is constructed without a database handle.
var ErrNilDatabaseConnection = fmt.Errorf("%w: database connection must not be nil", domain.ErrInvalidArgument)

// ErrEmptyTableNameSupplied is returned when an engine option sets an empty table name.
var ErrEmptyTableNameSupplied = fmt.Errorf("%w: empty table name supplied", domain.ErrInvalidArgument)

// ErrInvalidStreamKey is returned for type names or ids that cannot form a stream key.
var ErrInvalidStreamKey = fmt.Errorf("%w: invalid stream key", domain.ErrInvalidArgument)

// StreamKeySeparator separates the aggregate type name from the aggregate id in a stream key.
const StreamKeySeparator = "_"

// StreamKey builds the partition key "{TypeName}_{AggregateId}".
// Type names must not contain the separator, which keeps stream keys unique across aggregate types.
func StreamKey(typeName string, aggregateID string) (string, error) {
	if err := ValidateTypeName(typeName); err != nil {
		return "", err
	}

	if aggregateID == "" {
		return "", errors.Join(ErrInvalidStreamKey, errors.New("empty aggregate id"))
	}

	return typeName + StreamKeySeparator + aggregateID, nil
}

// ValidateTypeName checks that an aggregate type name can be used as a stream key prefix.
func ValidateTypeName(typeName string) error {
	if typeName == "" {
		return errors.Join(ErrInvalidStreamKey, errors.New("empty aggregate type name"))
	}

	if strings.Contains(typeName, StreamKeySeparator) {
		return errors.Join(
			ErrInvalidStreamKey,
			fmt.Errorf("aggregate type name %q must not contain %q", typeName, StreamKeySeparator),
		)
	}

	return nil
}

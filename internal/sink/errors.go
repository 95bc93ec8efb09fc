package sink

import "codeberg.org/mutker/iiocapture/internal/errors"

const (
	ErrOpen  = errors.ErrSinkOpen
	ErrWrite = errors.ErrSinkWrite
	ErrClose = errors.ErrSinkClose

	ErrSchemaInitFailed       = errors.ErrorCode("sink_schema_init_failed")
	ErrSchemaValidationFailed = errors.ErrorCode("sink_schema_validation_failed")
	ErrSchemaMigrationFailed  = errors.ErrorCode("sink_schema_migration_failed")
	ErrTransactionFailed      = errors.ErrorCode("sink_transaction_failed")
)

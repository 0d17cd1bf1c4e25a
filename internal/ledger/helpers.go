package ledger

import (
	"database/sql"
	"errors"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// rollbackWithError ignores the rollback error after a successful commit
func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if rbErr := rb.Rollback(); rbErr != nil && *err == nil && !errors.Is(rbErr, sql.ErrTxDone) {
		*err = rbErr
	}
}

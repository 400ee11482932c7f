package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"donation-ledger/pkg/platform/sentinel"

	"github.com/lib/pq"
)

// classify maps driver failures onto store sentinels. what names the
// operation for the error message.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("%s: %v: %w", what, err, sentinel.ErrUnavailable)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "40001", pqErr.Code == "40P01", pqErr.Code == "57014":
			return fmt.Errorf("%s: %s: %w", what, pqErr.Code.Name(), sentinel.ErrUnavailable)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "53", pqErr.Code.Class() == "57":
			return fmt.Errorf("%s: %s: %w", what, pqErr.Code.Name(), sentinel.ErrUnavailable)
		case pqErr.Code == "23503":
			return fmt.Errorf("%s: %s: %w", what, pqErr.Constraint, sentinel.ErrBrokenReference)
		case pqErr.Code == "22003":
			return fmt.Errorf("%s: %s: %w", what, pqErr.Code.Name(), sentinel.ErrOutOfRange)
		case pqErr.Code == "23505", pqErr.Code == "23514":
			return fmt.Errorf("%s: %s: %w", what, pqErr.Constraint, sentinel.ErrConflict)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, what)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	return nil
}

// requireTransition checks a conditional update. Zero rows affected means the
// row is no longer in the state the update was conditioned on.
func requireTransition(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, what)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, sentinel.ErrConflict)
	}
	return nil
}

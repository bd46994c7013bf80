package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Dialect captures what differs between the supported databases.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

func (d Dialect) schema() []string {
	if d == SQLite {
		return sqliteSchema
	}
	return postgresSchema
}

// lockSubscriberQuery selects the subscriber row and, on PostgreSQL, holds a row
// lock on it until the transaction ends. SQLite transactions are already exclusive.
func (d Dialect) lockSubscriberQuery() string {
	if d == SQLite {
		return `SELECT id FROM subscribers WHERE id = $1`
	}
	return `SELECT id FROM subscribers WHERE id = $1 FOR UPDATE`
}

// isDuplicate reports whether err is a unique constraint violation.
func (d Dialect) isDuplicate(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// markPaid flips the paid flag of exactly the given unpaid sessions of a subscriber.
func (d Dialect) markPaid(ctx context.Context, tx *sql.Tx, subscriberID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	if d == Postgres {
		res, err := tx.ExecContext(ctx,
			`UPDATE sessions SET paid = TRUE WHERE subscriber_id = $1 AND paid = FALSE AND id = ANY($2)`,
			subscriberID, pq.Array(ids))
		if err != nil {
			return fmt.Errorf("failed to mark sessions paid: %w", err)
		}
		return checkAffected(res, int64(len(ids)))
	}

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE sessions SET paid = TRUE WHERE subscriber_id = $1 AND id = $2 AND paid = FALSE`)
	if err != nil {
		return fmt.Errorf("failed to prepare mark paid: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		res, err := stmt.ExecContext(ctx, subscriberID, id)
		if err != nil {
			return fmt.Errorf("failed to mark session %d paid: %w", id, err)
		}
		if err := checkAffected(res, 1); err != nil {
			return fmt.Errorf("session %d: %w", id, err)
		}
	}
	return nil
}

func checkAffected(res sql.Result, want int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n != want {
		return fmt.Errorf("expected to mark %d unpaid sessions, marked %d", want, n)
	}
	return nil
}

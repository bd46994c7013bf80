// Package sqlstore implements storage.Store on PostgreSQL and SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/matsecom/pkg/catalog"
	"github.com/platinummonkey/matsecom/pkg/model"
	"github.com/platinummonkey/matsecom/pkg/storage"
	"github.com/sirupsen/logrus"
)

// Store is a SQL-backed storage.Store.
type Store struct {
	cm      *ConnectionManager
	dialect Dialect
	now     func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open connects to the database selected by config.Type ("postgres" or "sqlite")
// and creates the schema if it does not exist.
func Open(ctx context.Context, config storage.Config, log *logrus.Logger) (*Store, error) {
	var cc ConnectionConfig
	var dialect Dialect

	switch config.Type {
	case "postgres":
		dialect = Postgres
		cc = ConnectionConfig{
			Driver:      string(Postgres),
			PrimaryURL:  config.PostgresURL,
			ReplicaURLs: ParseReplicaURLs(config.PostgresReplicaURLs),
			MaxConns:    config.PostgresMaxConns,
			MinConns:    config.PostgresMinConns,
			Timeout:     config.PostgresTimeout,
			MaxLifetime: config.PostgresMaxLifetime,
			MaxIdleTime: config.PostgresMaxIdleTime,
		}
	case "sqlite":
		dialect = SQLite
		cc = ConnectionConfig{
			Driver:     string(SQLite),
			PrimaryURL: SQLiteDSN(config.SQLitePath),
			Timeout:    config.PostgresTimeout,
		}
	default:
		return nil, fmt.Errorf("unsupported sql storage type %q", config.Type)
	}

	cm, err := NewConnectionManager(cc, log)
	if err != nil {
		return nil, err
	}

	s := &Store{cm: cm, dialect: dialect, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		cm.Close()
		return nil, err
	}
	return s, nil
}

// SQLiteDSN builds a go-sqlite3 DSN whose transactions take the write lock at BEGIN.
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000", path)
}

// NewWithDB wraps an already open database. Used with sqlmock in tests.
func NewWithDB(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		cm:      &ConnectionManager{primary: db, config: ConnectionConfig{Driver: string(dialect)}, log: logrus.New()},
		dialect: dialect,
		now:     time.Now,
	}
}

// Migrate creates tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.cm.Primary().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// ConnectionManager exposes the underlying pools, e.g. for the replica health routine.
func (s *Store) ConnectionManager() *ConnectionManager { return s.cm }

const subscriberColumns = `id, forename, surname, imsi, terminal_type, subscription_type, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscriber(row rowScanner) (*model.Subscriber, error) {
	var sub model.Subscriber
	var terminal, subscription string
	if err := row.Scan(&sub.ID, &sub.Forename, &sub.Surname, &sub.IMSI, &terminal, &subscription, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.Terminal = catalog.TerminalID(terminal)
	sub.Subscription = catalog.SubscriptionID(subscription)
	return &sub, nil
}

func (s *Store) CreateSubscriber(ctx context.Context, sub *model.Subscriber) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = s.now().UTC()
	}
	query := `
		INSERT INTO subscribers (forename, surname, imsi, terminal_type, subscription_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.cm.Primary().QueryRowContext(ctx, query,
		sub.Forename, sub.Surname, sub.IMSI, string(sub.Terminal), string(sub.Subscription), sub.CreatedAt,
	).Scan(&sub.ID)
	if err != nil {
		if s.dialect.isDuplicate(err) {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateIMSI, sub.IMSI)
		}
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	return nil
}

func (s *Store) GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error) {
	row := s.cm.Primary().QueryRowContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE id = $1`, id)
	sub, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subscriber %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return sub, nil
}

func (s *Store) GetSubscriberByIMSI(ctx context.Context, imsi string) (*model.Subscriber, error) {
	row := s.cm.Primary().QueryRowContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE imsi = $1`, imsi)
	sub, err := scanSubscriber(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subscriber with imsi %s: %w", imsi, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return sub, nil
}

func (s *Store) ListSubscribers(ctx context.Context) ([]*model.Subscriber, error) {
	rows, err := s.cm.Replica().QueryContext(ctx, `SELECT `+subscriberColumns+` FROM subscribers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscribers: %w", err)
	}
	defer rows.Close()

	subs := make([]*model.Subscriber, 0)
	for rows.Next() {
		sub, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *Store) DeleteSubscriber(ctx context.Context, id int64) error {
	tx, err := s.cm.Primary().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE subscriber_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE subscriber_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete invoices: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM subscribers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("subscriber %d: %w", id, storage.ErrNotFound)
	}
	return tx.Commit()
}

const sessionColumns = `id, subscriber_id, service, timestamp, duration, data_volume, call_seconds, paid`

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func querySessions(ctx context.Context, q queryer, filter model.SessionFilter) ([]*model.Session, error) {
	var where []string
	var args []interface{}
	if filter.SubscriberID != 0 {
		args = append(args, filter.SubscriberID)
		where = append(where, fmt.Sprintf("subscriber_id = $%d", len(args)))
	}
	if filter.Paid != nil {
		args = append(args, *filter.Paid)
		where = append(where, fmt.Sprintf("paid = $%d", len(args)))
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*model.Session, 0)
	for rows.Next() {
		var sess model.Session
		var service string
		if err := rows.Scan(&sess.ID, &sess.SubscriberID, &service, &sess.Timestamp,
			&sess.Duration, &sess.DataVolume, &sess.CallSeconds, &sess.Paid); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sess.Service = catalog.ServiceID(service)
		sessions = append(sessions, &sess)
	}
	return sessions, rows.Err()
}

func (s *Store) ListSessions(ctx context.Context, filter model.SessionFilter) ([]*model.Session, error) {
	return querySessions(ctx, s.cm.Replica(), filter)
}

const invoiceColumns = `id, subscriber_id, timestamp, data_volume, call_minutes, charges, session_count`

func scanInvoice(row rowScanner) (*model.Invoice, error) {
	var inv model.Invoice
	if err := row.Scan(&inv.ID, &inv.SubscriberID, &inv.Timestamp, &inv.DataVolume,
		&inv.CallMinutes, &inv.Charges, &inv.SessionCount); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*model.Invoice, error) {
	row := s.cm.Primary().QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %d: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, subscriberID int64) ([]*model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	var args []interface{}
	if subscriberID != 0 {
		query += ` WHERE subscriber_id = $1`
		args = append(args, subscriberID)
	}
	query += ` ORDER BY id`

	rows, err := s.cm.Replica().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]*model.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// Atomically runs fn inside one database transaction that holds the subscriber's
// row lock. The transaction is rolled back if fn fails.
func (s *Store) Atomically(ctx context.Context, subscriberID int64, fn func(tx storage.Tx) error) error {
	tx, err := s.cm.Primary().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, s.dialect.lockSubscriberQuery(), subscriberID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("subscriber %d: %w", subscriberID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to lock subscriber: %w", err)
	}

	if err := fn(&sqlTx{tx: tx, dialect: s.dialect, subscriberID: subscriberID}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	return s.cm.HealthCheck(ctx)
}

func (s *Store) Close() error {
	return s.cm.Close()
}

type sqlTx struct {
	tx           *sql.Tx
	dialect      Dialect
	subscriberID int64
}

func (t *sqlTx) Sessions(ctx context.Context, paid *bool) ([]*model.Session, error) {
	return querySessions(ctx, t.tx, model.SessionFilter{SubscriberID: t.subscriberID, Paid: paid})
}

func (t *sqlTx) CreateSession(ctx context.Context, sess *model.Session) error {
	if sess.SubscriberID != t.subscriberID {
		return fmt.Errorf("session belongs to subscriber %d, transaction is scoped to %d", sess.SubscriberID, t.subscriberID)
	}
	query := `
		INSERT INTO sessions (subscriber_id, service, timestamp, duration, data_volume, call_seconds, paid)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	err := t.tx.QueryRowContext(ctx, query,
		sess.SubscriberID, string(sess.Service), sess.Timestamp, sess.Duration,
		sess.DataVolume, sess.CallSeconds, sess.Paid,
	).Scan(&sess.ID)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (t *sqlTx) MarkPaid(ctx context.Context, ids []int64) error {
	return t.dialect.markPaid(ctx, t.tx, t.subscriberID, ids)
}

func (t *sqlTx) CreateInvoice(ctx context.Context, inv *model.Invoice) error {
	if inv.SubscriberID != t.subscriberID {
		return fmt.Errorf("invoice belongs to subscriber %d, transaction is scoped to %d", inv.SubscriberID, t.subscriberID)
	}
	query := `
		INSERT INTO invoices (subscriber_id, timestamp, data_volume, call_minutes, charges, session_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := t.tx.QueryRowContext(ctx, query,
		inv.SubscriberID, inv.Timestamp, inv.DataVolume, inv.CallMinutes, inv.Charges, inv.SessionCount,
	).Scan(&inv.ID)
	if err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

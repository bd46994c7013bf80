package storage

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/matsecom/pkg/model"
)

var (
	// ErrNotFound is returned when a subscriber or invoice does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateIMSI is returned when a subscriber with the same IMSI exists.
	ErrDuplicateIMSI = errors.New("imsi already registered")
)

// SubscriberStore persists subscribers.
type SubscriberStore interface {
	CreateSubscriber(ctx context.Context, sub *model.Subscriber) error
	GetSubscriber(ctx context.Context, id int64) (*model.Subscriber, error)
	GetSubscriberByIMSI(ctx context.Context, imsi string) (*model.Subscriber, error)
	ListSubscribers(ctx context.Context) ([]*model.Subscriber, error)
	// DeleteSubscriber removes the subscriber together with its sessions and invoices.
	DeleteSubscriber(ctx context.Context, id int64) error
}

// UsageReader serves read-only views of sessions and invoices.
type UsageReader interface {
	ListSessions(ctx context.Context, filter model.SessionFilter) ([]*model.Session, error)
	GetInvoice(ctx context.Context, id int64) (*model.Invoice, error)
	ListInvoices(ctx context.Context, subscriberID int64) ([]*model.Invoice, error)
}

// Tx is a unit of work scoped to a single subscriber. Reads observe the writes made
// earlier in the same Tx. Writes become visible to others only when the Tx commits.
type Tx interface {
	Sessions(ctx context.Context, paid *bool) ([]*model.Session, error)
	CreateSession(ctx context.Context, s *model.Session) error
	MarkPaid(ctx context.Context, sessionIDs []int64) error
	CreateInvoice(ctx context.Context, inv *model.Invoice) error
}

// Store is the persistence contract used by the registry, the simulator and the
// invoice generator.
type Store interface {
	SubscriberStore
	UsageReader

	// Atomically runs fn with exclusive access to the subscriber's usage records.
	// Calls for the same subscriber never overlap. If fn returns an error nothing
	// it wrote is kept. ErrNotFound is returned when the subscriber does not exist.
	Atomically(ctx context.Context, subscriberID int64, fn func(tx Tx) error) error

	HealthCheck(ctx context.Context) error
	Close() error
}

// Config for storage backend
type Config struct {
	Type string // "memory", "postgres", "sqlite"

	// PostgreSQL config
	PostgresURL         string
	PostgresReplicaURLs string // Comma-separated
	PostgresMaxConns    int
	PostgresMinConns    int
	PostgresTimeout     time.Duration
	PostgresMaxLifetime time.Duration
	PostgresMaxIdleTime time.Duration

	// SQLite config
	SQLitePath string

	// S3 invoice archive config
	S3Enabled      bool
	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3Prefix       string
	S3AccessKey    string
	S3SecretKey    string
	S3UsePathStyle bool

	// Redis config
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RedisMaxRetries int
	RedisPoolSize   int

	// Subscriber lookup cache
	CacheEnabled bool
	CacheSize    int
	CacheTTL     time.Duration
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:                "memory",
		SQLitePath:          "matsecom.db",
		PostgresMaxConns:    20,
		PostgresMinConns:    2,
		PostgresTimeout:     10 * time.Second,
		PostgresMaxLifetime: 30 * time.Minute,
		PostgresMaxIdleTime: 5 * time.Minute,
		S3Region:            "us-east-1",
		S3Prefix:            "invoices/",
		RedisDB:             0,
		RedisMaxRetries:     3,
		RedisPoolSize:       10,
		CacheEnabled:        true,
		CacheSize:           1024,
		CacheTTL:            5 * time.Minute,
	}
}

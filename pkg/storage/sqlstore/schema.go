package sqlstore

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS subscribers (
		id                BIGSERIAL PRIMARY KEY,
		forename          TEXT NOT NULL,
		surname           TEXT NOT NULL,
		imsi              CHAR(15) NOT NULL UNIQUE,
		terminal_type     TEXT NOT NULL,
		subscription_type TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id            BIGSERIAL PRIMARY KEY,
		subscriber_id BIGINT NOT NULL REFERENCES subscribers(id) ON DELETE CASCADE,
		service       TEXT NOT NULL,
		timestamp     TIMESTAMPTZ NOT NULL,
		duration      BIGINT NOT NULL CHECK (duration > 0),
		data_volume   BIGINT NOT NULL CHECK (data_volume >= 0),
		call_seconds  BIGINT NOT NULL CHECK (call_seconds >= 0),
		paid          BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_subscriber_paid ON sessions (subscriber_id, paid)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id            BIGSERIAL PRIMARY KEY,
		subscriber_id BIGINT NOT NULL REFERENCES subscribers(id) ON DELETE CASCADE,
		timestamp     TIMESTAMPTZ NOT NULL,
		data_volume   BIGINT NOT NULL,
		call_minutes  BIGINT NOT NULL,
		charges       BIGINT NOT NULL,
		session_count INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_subscriber ON invoices (subscriber_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS subscribers (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		forename          TEXT NOT NULL,
		surname           TEXT NOT NULL,
		imsi              TEXT NOT NULL UNIQUE,
		terminal_type     TEXT NOT NULL,
		subscription_type TEXT NOT NULL,
		created_at        DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		subscriber_id INTEGER NOT NULL REFERENCES subscribers(id),
		service       TEXT NOT NULL,
		timestamp     DATETIME NOT NULL,
		duration      INTEGER NOT NULL CHECK (duration > 0),
		data_volume   INTEGER NOT NULL CHECK (data_volume >= 0),
		call_seconds  INTEGER NOT NULL CHECK (call_seconds >= 0),
		paid          BOOLEAN NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_subscriber_paid ON sessions (subscriber_id, paid)`,
	`CREATE TABLE IF NOT EXISTS invoices (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		subscriber_id INTEGER NOT NULL REFERENCES subscribers(id),
		timestamp     DATETIME NOT NULL,
		data_volume   INTEGER NOT NULL,
		call_minutes  INTEGER NOT NULL,
		charges       INTEGER NOT NULL,
		session_count INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_subscriber ON invoices (subscriber_id)`,
}

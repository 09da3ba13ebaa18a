package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"   // Postgres driver registration.
	_ "modernc.org/sqlite" // SQLite driver registration.

	"rss_notify/internal/model"
	"rss_notify/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Dialect identifies the SQL flavour behind a DSN.
type Dialect string

// Supported dialects.
const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// DialectFor picks the dialect from a DSN: postgres:// URLs select Postgres,
// anything else is treated as a SQLite path.
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// DriverName returns the database/sql driver registered for d.
func (d Dialect) DriverName() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "sqlite"
}

// SQL implements Directory on SQLite or Postgres.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects to dsn, verifies the connection and runs pending migrations.
func Open(ctx context.Context, dsn string) (*SQL, error) {
	dialect := DialectFor(dsn)

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
		// Keep a single connection so ":memory:" databases are shared.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	if err := migrations.Run(db, string(dialect)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQL{db: db, dialect: dialect}, nil
}

// ping waits for the database to accept connections, retrying with
// exponential backoff while a freshly started server is still coming up.
func ping(ctx context.Context, db *sql.DB) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(bo, ctx))
}

// Close closes the underlying database connection.
func (s *SQL) Close() error {
	return s.db.Close()
}

// AddSubscriber inserts a subscriber unless its chat ID is already present.
// A zero CreatedAt is stamped with the current time.
func (s *SQL) AddSubscriber(ctx context.Context, sub model.Subscriber) (bool, error) {
	created := sub.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO subscribers (chat_id, display_name, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (chat_id) DO NOTHING`),
		sub.ChatID, sub.DisplayName, created.UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert subscriber: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListSubscribers returns all subscribers in registration order.
func (s *SQL) ListSubscribers(ctx context.Context) ([]model.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, display_name, created_at FROM subscribers ORDER BY created_at, chat_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.Subscriber
	for rows.Next() {
		var sub model.Subscriber
		var created string
		if err := rows.Scan(&sub.ChatID, &sub.DisplayName, &created); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		if sub.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("parse created_at of subscriber %d: %w", sub.ChatID, err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// CountSubscribers returns the number of registered subscribers.
func (s *SQL) CountSubscribers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscribers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return n, nil
}

// rebind rewrites ? placeholders into $n for Postgres.
func (s *SQL) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

package tilecachepostgresql

import (
	"context"
	"database/sql"
	"time"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/headlessmap/tilecache"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const postgresqlSchema = `
CREATE TABLE IF NOT EXISTS resource_cache (
	key TEXT PRIMARY KEY,
	data BYTEA NOT NULL,
	created_at TIMESTAMP WITHOUT TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS resource_cache_created_at_idx ON resource_cache (created_at);
`

var _ tilecache.Cache = &PostgresqlCache{}

// PostgresqlCache shares fetched tiles between processes. Entries older than MaxAge are treated as missing.
type PostgresqlCache struct {
	db     *sqlx.DB
	MaxAge time.Duration
}

// NewCache connects to "user:pass@host/dbname?options" and ensures the schema exists
func NewCache(connStr string) (*PostgresqlCache, errorsx.Error) {
	db, err := sqlx.Open("postgres", "postgresql://"+connStr)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	_, err = db.Exec(postgresqlSchema)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return NewCacheFromDB(db), nil
}

func NewCacheFromDB(db *sqlx.DB) *PostgresqlCache {
	return &PostgresqlCache{
		db:     db,
		MaxAge: time.Hour * 24 * 7,
	}
}

type cacheRowType struct {
	Data      []byte    `db:"data"`
	CreatedAt time.Time `db:"created_at"`
}

func (c *PostgresqlCache) Get(ctx context.Context, key string) ([]byte, bool, errorsx.Error) {
	row := new(cacheRowType)
	err := c.db.GetContext(ctx, row, `SELECT data, created_at FROM resource_cache WHERE key = $1`, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, errorsx.Wrap(err, "key", key)
	}

	if c.MaxAge > 0 && time.Since(row.CreatedAt) > c.MaxAge {
		return nil, false, nil
	}

	return row.Data, true, nil
}

func (c *PostgresqlCache) Put(ctx context.Context, key string, data []byte) errorsx.Error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO resource_cache (key, data, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data, created_at = EXCLUDED.created_at
	`, key, data, time.Now().UTC())
	if err != nil {
		return errorsx.Wrap(err, "key", key)
	}

	return nil
}

func (c *PostgresqlCache) Close() errorsx.Error {
	return errorsx.Wrap(c.db.Close())
}

package db

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v4/stdlib" // Import Postgres driver.
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/extra/bundebug"
)

// ErrNotFound is returned if nothing is found.
var ErrNotFound = errors.New("not found")

const connectRetryInterval = 4 * time.Second

// PgDB represents a Postgres database connection. Raw snapshot queries go through sqlx; model
// lookups go through bun over the same pool.
type PgDB struct {
	sql *sqlx.DB
	bun *bun.DB
}

func dataSourceName(opts *Config) string {
	q := url.Values{}
	q.Set("application_name", "hpcoords")
	q.Set("sslmode", opts.SSLMode)
	if opts.SSLRootCert != "" {
		q.Set("sslrootcert", opts.SSLRootCert)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(opts.User, opts.Password),
		Host:     net.JoinHostPort(opts.Host, opts.Port),
		Path:     "/" + opts.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Connect connects to the database described by opts, retrying while it is unreachable.
func Connect(ctx context.Context, opts *Config) (*PgDB, error) {
	log.Infof("connecting to database %s:%s", opts.Host, opts.Port)
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(connectRetryInterval), opts.ConnectRetries)
	db, err := ConnectPostgres(ctx, dataSourceName(opts), b)
	if err != nil {
		return nil, errors.Wrapf(err, "error connecting to database: %s:%s", opts.Host, opts.Port)
	}

	if opts.MaxOpenConns > 0 {
		db.sql.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.Debug {
		db.bun.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db, nil
}

// ConnectPostgres connects to a Postgres database, retrying according to b.
func ConnectPostgres(ctx context.Context, dsn string, b backoff.BackOff) (*PgDB, error) {
	var sqlDB *sqlx.DB
	numTries := 0
	err := backoff.RetryNotify(func() error {
		numTries++
		var err error
		sqlDB, err = sqlx.ConnectContext(ctx, "pgx", dsn)
		return err
	}, backoff.WithContext(b, ctx), func(err error, d time.Duration) {
		log.WithError(err).Warnf("failed to connect to postgres, trying again in %s", d)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not connect to database after %v tries", numTries)
	}
	return &PgDB{sql: sqlDB, bun: bun.NewDB(sqlDB.DB, pgdialect.New())}, nil
}

// Close closes the underlying connection pool.
func (db *PgDB) Close() error {
	return db.sql.Close()
}

// Ping checks that the database is reachable.
func (db *PgDB) Ping(ctx context.Context) error {
	return db.sql.PingContext(ctx)
}

// queryRows runs query and scans every row into the slice pointed to by v.
func (db *PgDB) queryRows(ctx context.Context, query string, v interface{}, args ...interface{}) error {
	return db.sql.SelectContext(ctx, v, query, args...)
}

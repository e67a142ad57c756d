package sessions

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/qrkiosk/internal/dbx"
	"github.com/dmitrijs2005/qrkiosk/internal/filex"
	"github.com/dmitrijs2005/qrkiosk/internal/logging"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"
)

const defaultPostgresUser = "kiosk"

// Open connects to the store named by rawURL and prepares it for use.
//
// Supported schemes:
//
//	postgres://host:5432/db   key is the password; user defaults to "kiosk"
//	sqlite://path/to/file.db  key is only required to enable the store
//	redis://host:6379/0       key is the password
//	memory://                 process-local, lost on exit
//
// SQL backends are migrated before Open returns.
func Open(ctx context.Context, rawURL, key string, logger logging.Logger) (Repository, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		return openPostgres(ctx, u, key, logger)
	case "sqlite", "sqlite3", "file":
		return openSQLite(ctx, u, logger)
	case "redis", "rediss":
		return openRedis(ctx, u, key, logger)
	case "memory", "mem":
		logger.Info(ctx, "using in-memory session store")
		return NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported store scheme %q", u.Scheme)
	}
}

func openPostgres(ctx context.Context, u *url.URL, key string, logger logging.Logger) (Repository, error) {
	user := defaultPostgresUser
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, key)

	db, err := sql.Open("pgx", u.String())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	repo := NewSQLRepository(db, dbx.Postgres)
	if err := repo.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info(ctx, "connected to postgres session store", "host", u.Host, "database", strings.TrimPrefix(u.Path, "/"))
	return repo, nil
}

func openSQLite(ctx context.Context, u *url.URL, logger logging.Logger) (Repository, error) {
	path := u.Host + u.Path
	if u.Opaque != "" {
		path = u.Opaque
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite store url has no path")
	}
	if err := filex.EnsureParentDir(path); err != nil {
		return nil, err
	}

	dsn := path
	if u.RawQuery != "" {
		dsn += "?" + u.RawQuery
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer; also keeps WithTx from waiting on itself
	db.SetMaxOpenConns(1)

	repo := NewSQLRepository(db, dbx.SQLite)
	if err := repo.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info(ctx, "opened sqlite session store", "path", path)
	return repo, nil
}

func openRedis(ctx context.Context, u *url.URL, key string, logger logging.Logger) (Repository, error) {
	opts, err := redis.ParseURL(u.String())
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	opts.Password = key

	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info(ctx, "connected to redis session store", "addr", opts.Addr, "db", opts.DB)
	return NewRedisRepository(cli), nil
}

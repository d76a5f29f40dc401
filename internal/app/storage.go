package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devtitozzzzg/todo/internal/config"
	"github.com/devtitozzzzg/todo/internal/migrations"
	"github.com/devtitozzzzg/todo/internal/repo"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Storage bundles the repositories of one backend.
type Storage struct {
	Users repo.UserRepo
	Todos repo.TodoRepo

	closeFn func()
}

// Close releases the underlying connections.
func (s *Storage) Close() {
	if s != nil && s.closeFn != nil {
		s.closeFn()
	}
}

// OpenStorage connects to the configured backend and applies migrations.
func OpenStorage(ctx context.Context, cfg config.Config) (*Storage, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg.PG.DSN)
	default:
		return openSQLite(ctx, cfg.Storage.SQLitePath)
	}
}

// Migrate applies pending migrations without building the rest of the app.
func Migrate(ctx context.Context, cfg config.Config) (int, error) {
	if cfg.Storage.Driver == config.DriverPostgres {
		return runMigrations(ctx, cfg.PG.DSN)
	}
	db, err := newSQLite(cfg.Storage.SQLitePath)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	return migrations.Up(ctx, db, migrations.SQLite)
}

func openSQLite(ctx context.Context, path string) (*Storage, error) {
	db, err := newSQLite(path)
	if err != nil {
		return nil, err
	}
	if _, err := migrations.Up(ctx, db, migrations.SQLite); err != nil {
		db.Close()
		return nil, err
	}
	return &Storage{
		Users:   repo.NewSQLiteUserRepo(db),
		Todos:   repo.NewSQLiteTodoRepo(db),
		closeFn: func() { _ = db.Close() },
	}, nil
}

func newSQLite(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is its own database.
		db.SetMaxOpenConns(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}
	return db, nil
}

func openPostgres(ctx context.Context, dsn string) (*Storage, error) {
	if _, err := runMigrations(ctx, dsn); err != nil {
		return nil, err
	}
	pool, err := newPostgres(dsn)
	if err != nil {
		return nil, err
	}
	return &Storage{
		Users:   repo.NewPGUserRepo(pool),
		Todos:   repo.NewPGTodoRepo(pool),
		closeFn: pool.Close,
	}, nil
}

func newPostgres(dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg parse config: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("pg connect: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg ping: %w", err)
	}

	return pool, nil
}

func runMigrations(ctx context.Context, dsn string) (int, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return 0, fmt.Errorf("migrate open db: %w", err)
	}
	defer db.Close()

	return migrations.Up(ctx, db, migrations.Postgres)
}

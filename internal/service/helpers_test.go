package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/devtitozzzzg/todo/internal/auth"
	"github.com/devtitozzzzg/todo/internal/migrations"
	"github.com/devtitozzzzg/todo/internal/repo"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var jst = time.FixedZone("JST", 9*60*60)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := migrations.Up(context.Background(), db, migrations.SQLite); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestUserService(db *sql.DB) *UserService {
	s := NewUserService(repo.NewSQLiteUserRepo(db))
	s.cost = bcrypt.MinCost
	return s
}

func newTestSessionService(db *sql.DB) *SessionService {
	return NewSessionService(
		newTestUserService(db),
		auth.NewMemoryStore(time.Hour),
		auth.NewTokenSigner([]byte("test-secret"), time.Hour),
		nil,
	)
}

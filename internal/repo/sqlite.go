package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	dom "github.com/devtitozzzzg/todo/internal/domain"
	"github.com/devtitozzzzg/todo/internal/utils"
)

// SQLiteTodoRepo implements TodoRepo on a database/sql handle opened with
// the sqlite3 driver.
type SQLiteTodoRepo struct {
	db *sql.DB
}

func NewSQLiteTodoRepo(db *sql.DB) *SQLiteTodoRepo {
	return &SQLiteTodoRepo{db: db}
}

func (r *SQLiteTodoRepo) Create(ctx context.Context, t dom.Todo) (dom.Todo, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO todo (title, body, created_at) VALUES (?, ?, ?)`,
		t.Title, t.Body, t.CreatedAt,
	)
	if err != nil {
		return dom.Todo{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return dom.Todo{}, err
	}
	t.ID = id
	return t, nil
}

func (r *SQLiteTodoRepo) GetByID(ctx context.Context, id int64) (dom.Todo, error) {
	var t dom.Todo
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, body, created_at FROM todo WHERE id = ?`, id,
	).Scan(&t.ID, &t.Title, &t.Body, &t.CreatedAt)
	return t, sqlNotFound(err)
}

func (r *SQLiteTodoRepo) List(ctx context.Context) ([]dom.Todo, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, title, body, created_at FROM todo ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []dom.Todo{}
	for rows.Next() {
		var t dom.Todo
		if err := rows.Scan(&t.ID, &t.Title, &t.Body, &t.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func (r *SQLiteTodoRepo) Update(ctx context.Context, id int64, title, body string) (dom.Todo, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE todo SET title = ?, body = ? WHERE id = ?`, title, body, id)
	if err != nil {
		return dom.Todo{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return dom.Todo{}, err
	} else if n == 0 {
		return dom.Todo{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *SQLiteTodoRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM todo WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SQLiteUserRepo implements UserRepo with SQLite.
type SQLiteUserRepo struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteUserRepo(db *sql.DB) *SQLiteUserRepo {
	return &SQLiteUserRepo{db: db, now: utils.ClockIn(time.UTC)}
}

func (r *SQLiteUserRepo) GetByUsername(ctx context.Context, username string) (dom.User, error) {
	var u dom.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM "user" WHERE username = ?`, username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	return u, sqlNotFound(err)
}

func (r *SQLiteUserRepo) GetByID(ctx context.Context, id int64) (dom.User, error) {
	var u dom.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM "user" WHERE id = ?`, id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	return u, sqlNotFound(err)
}

func (r *SQLiteUserRepo) Create(ctx context.Context, username, passwordHash string) (dom.User, error) {
	u := dom.User{Username: username, PasswordHash: passwordHash, CreatedAt: r.now()}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO "user" (username, password_hash, created_at) VALUES (?, ?, ?)`,
		u.Username, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if utils.IsSQLiteUniqueViolation(err) {
			return dom.User{}, ErrDuplicate
		}
		return dom.User{}, err
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return dom.User{}, err
	}
	return u, nil
}

func sqlNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

package repo

import (
	"context"
	"errors"

	dom "github.com/devtitozzzzg/todo/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TodoRepo interface {
	Create(ctx context.Context, t dom.Todo) (dom.Todo, error)
	GetByID(ctx context.Context, id int64) (dom.Todo, error)
	List(ctx context.Context) ([]dom.Todo, error)
	Update(ctx context.Context, id int64, title, body string) (dom.Todo, error)
	Delete(ctx context.Context, id int64) error
}

type PGTodoRepo struct {
	db *pgxpool.Pool
}

func NewPGTodoRepo(db *pgxpool.Pool) *PGTodoRepo {
	return &PGTodoRepo{db: db}
}

func (r *PGTodoRepo) Create(ctx context.Context, t dom.Todo) (dom.Todo, error) {
	query := `
		INSERT INTO todo (title, body, created_at)
		VALUES ($1, $2, $3)
		RETURNING id, title, body, created_at`
	var out dom.Todo
	err := r.db.QueryRow(ctx, query, t.Title, t.Body, t.CreatedAt).Scan(
		&out.ID, &out.Title, &out.Body, &out.CreatedAt,
	)
	return out, err
}

func (r *PGTodoRepo) GetByID(ctx context.Context, id int64) (dom.Todo, error) {
	query := `SELECT id, title, body, created_at FROM todo WHERE id = $1`
	var t dom.Todo
	err := r.db.QueryRow(ctx, query, id).Scan(&t.ID, &t.Title, &t.Body, &t.CreatedAt)
	return t, pgNotFound(err)
}

func (r *PGTodoRepo) List(ctx context.Context) ([]dom.Todo, error) {
	rows, err := r.db.Query(ctx, `SELECT id, title, body, created_at FROM todo ORDER BY id ASC`)
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

func (r *PGTodoRepo) Update(ctx context.Context, id int64, title, body string) (dom.Todo, error) {
	query := `
		UPDATE todo SET title = $2, body = $3
		WHERE id = $1
		RETURNING id, title, body, created_at`
	var t dom.Todo
	err := r.db.QueryRow(ctx, query, id, title, body).Scan(&t.ID, &t.Title, &t.Body, &t.CreatedAt)
	return t, pgNotFound(err)
}

func (r *PGTodoRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM todo WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func pgNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

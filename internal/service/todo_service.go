package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/devtitozzzzg/todo/internal/cache"
	dom "github.com/devtitozzzzg/todo/internal/domain"
	"github.com/devtitozzzzg/todo/internal/repo"
	"github.com/devtitozzzzg/todo/internal/utils"

	"golang.org/x/sync/singleflight"
)

// Column widths of the todo table, counted in characters.
const (
	MaxTitleLen = 50
	MaxBodyLen  = 500
)

type TodoService struct {
	repo   repo.TodoRepo
	cache  *cache.TodoCache
	sf     singleflight.Group
	now    func() time.Time
	logger *slog.Logger
}

// NewTodoService creates a TodoService stamping todos in loc. If c is nil,
// caching is disabled.
func NewTodoService(r repo.TodoRepo, c *cache.TodoCache, loc *time.Location, logger *slog.Logger) *TodoService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &TodoService{repo: r, cache: c, now: utils.ClockIn(loc), logger: logger}
}

func (s *TodoService) Create(ctx context.Context, title, body string) (dom.Todo, error) {
	title, body, err := cleanFields(title, body)
	if err != nil {
		return dom.Todo{}, err
	}
	t, err := s.repo.Create(ctx, dom.Todo{
		Title:     title,
		Body:      body,
		CreatedAt: s.now(),
	})
	if err != nil {
		return dom.Todo{}, fmt.Errorf("create todo: %w", err)
	}
	s.invalidateCache(ctx, t.ID)
	return t, nil
}

// List returns every todo by id. With a cache, concurrent misses of one
// generation share a single database read.
func (s *TodoService) List(ctx context.Context) ([]dom.Todo, error) {
	if s.cache == nil {
		return s.repo.List(ctx)
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.logger.Warn("todo cache read failed", "key", "gen", "error", err)
		return s.repo.List(ctx)
	}
	v, err, _ := s.sf.Do("list:"+strconv.FormatInt(gen, 10), func() (interface{}, error) {
		if list, err := s.cache.GetList(ctx); err == nil && list != nil {
			return list, nil
		} else if err != nil {
			s.logger.Warn("todo cache read failed", "key", "list", "error", err)
		}
		list, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetList(ctx, gen, list); err != nil {
			s.logger.Warn("todo cache write failed", "key", "list", "error", err)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]dom.Todo), nil
}

func (s *TodoService) GetByID(ctx context.Context, id int64) (dom.Todo, error) {
	if s.cache == nil {
		t, err := s.repo.GetByID(ctx, id)
		return t, notFound(err)
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.logger.Warn("todo cache read failed", "key", "gen", "error", err)
		t, err := s.repo.GetByID(ctx, id)
		return t, notFound(err)
	}
	key := "item:" + strconv.FormatInt(id, 10) + ":" + strconv.FormatInt(gen, 10)
	v, err, _ := s.sf.Do(key, func() (interface{}, error) {
		if t, ok, err := s.cache.GetItem(ctx, id); err == nil && ok {
			return t, nil
		} else if err != nil {
			s.logger.Warn("todo cache read failed", "id", id, "error", err)
		}
		t, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.cache.SetItem(ctx, gen, t); err != nil {
			s.logger.Warn("todo cache write failed", "id", id, "error", err)
		}
		return t, nil
	})
	if err != nil {
		return dom.Todo{}, notFound(err)
	}
	return v.(dom.Todo), nil
}

// Update overwrites title and body. CreatedAt is left as stored.
func (s *TodoService) Update(ctx context.Context, id int64, title, body string) (dom.Todo, error) {
	title, body, err := cleanFields(title, body)
	if err != nil {
		return dom.Todo{}, err
	}
	t, err := s.repo.Update(ctx, id, title, body)
	if err != nil {
		return dom.Todo{}, notFound(err)
	}
	s.invalidateCache(ctx, id)
	return t, nil
}

func (s *TodoService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFound(err)
	}
	s.invalidateCache(ctx, id)
	return nil
}

func (s *TodoService) invalidateCache(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn("todo cache invalidation failed", "id", id, "error", err)
	}
}

func cleanFields(title, body string) (string, string, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" || body == "" ||
		utf8.RuneCountInString(title) > MaxTitleLen || utf8.RuneCountInString(body) > MaxBodyLen {
		return "", "", ErrValidation
	}
	return title, body, nil
}

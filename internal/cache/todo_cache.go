package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	dom "github.com/devtitozzzzg/todo/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	keyList    = "todo:list"
	keyItemPfx = "todo:item:"
	// keyGen is bumped by every invalidation. Fills carry the generation
	// read before the database query and are dropped if it moved.
	keyGen = "todo:gen"
)

var errStale = errors.New("cache generation moved")

// TodoCache caches the todo list and individual todos in Redis.
type TodoCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewTodoCache returns a new TodoCache.
func NewTodoCache(rdb *redis.Client, ttl time.Duration) *TodoCache {
	return &TodoCache{rdb: rdb, ttl: ttl}
}

// Generation returns the current invalidation counter. Read it before
// loading from the database and hand it to SetList or SetItem.
func (c *TodoCache) Generation(ctx context.Context) (int64, error) {
	return generation(ctx, c.rdb)
}

// GetList returns cached list or nil if miss.
func (c *TodoCache) GetList(ctx context.Context) ([]dom.Todo, error) {
	var list []dom.Todo
	ok, err := c.get(ctx, keyList, &list)
	if !ok || err != nil {
		return nil, err
	}
	if list == nil {
		list = []dom.Todo{}
	}
	return list, nil
}

// SetList stores the list unless an invalidation happened after gen was read.
func (c *TodoCache) SetList(ctx context.Context, gen int64, list []dom.Todo) error {
	return c.setAt(ctx, gen, keyList, list)
}

// GetItem returns the cached todo. ok is false on a miss.
func (c *TodoCache) GetItem(ctx context.Context, id int64) (t dom.Todo, ok bool, err error) {
	ok, err = c.get(ctx, itemKey(id), &t)
	return t, ok, err
}

// SetItem stores one todo unless an invalidation happened after gen was read.
func (c *TodoCache) SetItem(ctx context.Context, gen int64, t dom.Todo) error {
	return c.setAt(ctx, gen, itemKey(t.ID), t)
}

// Invalidate drops the list and the given items and bumps the generation.
func (c *TodoCache) Invalidate(ctx context.Context, ids ...int64) error {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, keyList)
	for _, id := range ids {
		keys = append(keys, itemKey(id))
	}
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, keyGen)
		p.Del(ctx, keys...)
		return nil
	})
	return err
}

// InvalidateAll removes the list and every cached item.
func (c *TodoCache) InvalidateAll(ctx context.Context) error {
	if err := c.Invalidate(ctx); err != nil {
		return err
	}
	iter := c.rdb.Scan(ctx, 0, keyItemPfx+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *TodoCache) get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, err
	}
	return true, nil
}

// setAt writes key under WATCH on the generation, so a concurrent
// invalidation either lands first and the write is skipped, or aborts it.
func (c *TodoCache) setAt(ctx context.Context, gen int64, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := generation(ctx, tx)
		if err != nil {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, c.ttl)
			return nil
		})
		return err
	}, keyGen)
	if errors.Is(err, errStale) || errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func generation(ctx context.Context, g getter) (int64, error) {
	n, err := g.Get(ctx, keyGen).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func itemKey(id int64) string {
	return keyItemPfx + strconv.FormatInt(id, 10)
}

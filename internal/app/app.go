package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devtitozzzzg/todo/internal/auth"
	"github.com/devtitozzzzg/todo/internal/config"
	"github.com/devtitozzzzg/todo/internal/metrics"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type App struct {
	cfg     config.Config
	storage *Storage
	redis   *redis.Client
	router  *gin.Engine
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{cfg: cfg}

	st, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.storage = st
	logger.Info("storage ready", "driver", cfg.Storage.Driver)

	if cfg.Redis.Enabled() {
		rdb, err := newRedis(cfg.Redis)
		if err != nil {
			st.Close()
			return nil, err
		}
		a.redis = rdb
		logger.Info("redis ready", "addr", cfg.Redis.Addr)
	} else {
		logger.Warn("redis not configured: sessions kept in memory, todo cache disabled")
	}

	secret, err := sessionSecret(cfg.Session, logger)
	if err != nil {
		a.closeAll()
		return nil, err
	}

	a.router, err = newRouter(ctx, cfg, a.storage, a.redis, secret, logger, metrics.New())
	if err != nil {
		a.closeAll()
		return nil, err
	}
	return a, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Close releases Redis and storage connections.
func (a *App) Close(context.Context) error {
	a.closeAll()
	return nil
}

func (a *App) closeAll() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.storage.Close()
}

func newRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return rdb, nil
}

func sessionSecret(cfg config.SessionConfig, logger *slog.Logger) ([]byte, error) {
	if cfg.Secret != "" {
		return []byte(cfg.Secret), nil
	}
	logger.Warn("SESSION_SECRET not set: using a random key, sessions end on restart")
	return auth.RandomSecret(32)
}

func newRouter(ctx context.Context, cfg config.Config, st *Storage, rdb *redis.Client, secret []byte, logger *slog.Logger, m *metrics.Metrics) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger), m.Middleware())

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "Cookie"},
		ExposeHeaders: []string{"Content-Length", "Content-Type"},
		MaxAge:        12 * time.Hour,
	}))

	if err := Setup(ctx, r, cfg, st, rdb, secret, logger, m); err != nil {
		return nil, err
	}
	return r, nil
}

package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/devtitozzzzg/todo/docs"
	"github.com/devtitozzzzg/todo/internal/auth"
	"github.com/devtitozzzzg/todo/internal/cache"
	"github.com/devtitozzzzg/todo/internal/config"
	"github.com/devtitozzzzg/todo/internal/handlers"
	"github.com/devtitozzzzg/todo/internal/metrics"
	"github.com/devtitozzzzg/todo/internal/service"
	"github.com/devtitozzzzg/todo/internal/views"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

const loginPath = "/login"

// Setup registers all routes on the given engine. rdb may be nil.
func Setup(ctx context.Context, r *gin.Engine, cfg config.Config, st *Storage, rdb *redis.Client, secret []byte, logger *slog.Logger, m *metrics.Metrics) error {
	tmpl, err := views.Templates()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	r.GET("/health", healthHandler(cfg))
	r.GET("/version", versionHandler(cfg))
	r.GET("/metrics", gin.WrapH(m.Handler()))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))

	ttl := cfg.Session.TTL.Duration()
	var (
		sessionStore auth.Store
		todoCache    *cache.TodoCache
	)
	if rdb != nil {
		sessionStore = auth.NewRedisStore(rdb, ttl)
		todoCache = cache.NewTodoCache(rdb, cfg.Redis.DefaultTTL.Duration())
		// Entries left by a previous run may not match the current database.
		if err := todoCache.InvalidateAll(ctx); err != nil {
			logger.Warn("todo cache flush failed", "error", err)
		}
	} else {
		sessionStore = auth.NewMemoryStore(ttl)
	}

	userSvc := service.NewUserService(st.Users)
	sessionSvc := service.NewSessionService(userSvc, sessionStore, auth.NewTokenSigner(secret, ttl), logger)
	todoSvc := service.NewTodoService(st.Todos, todoCache, cfg.App.Location(), logger)

	authHandler := handlers.NewAuthHandler(sessionSvc, userSvc, m, logger, cfg.Session.CookieSecure)
	registerAuthPages(r, authHandler)

	pages := r.Group("", auth.RequireSession(sessionSvc, loginPath))
	pages.GET("/logout", authHandler.Logout)
	pages.POST("/logout", authHandler.Logout)
	registerTodoPages(pages, handlers.NewTodoPages(todoSvc, logger))

	api := r.Group("/api/v1")
	registerAuthRoutes(api, authHandler)
	protected := api.Group("", auth.RequireSessionAPI(sessionSvc))
	protected.GET("/auth/me", authHandler.APIMe)
	registerTodoRoutes(protected, handlers.NewTodoHandler(todoSvc, logger))
	return nil
}

func healthHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true, "env": cfg.App.Env})
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(200, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(500, gin.H{"error": err.Error()})
			return
		}
		c.Data(200, "application/json; charset=utf-8", []byte(doc))
	}
}

func registerAuthPages(r *gin.Engine, h *handlers.AuthHandler) {
	r.GET("/signup", h.SignupPage)
	r.POST("/signup", h.Signup)
	r.GET(loginPath, h.LoginPage)
	r.POST(loginPath, h.Login)
}

func registerTodoPages(g *gin.RouterGroup, h *handlers.TodoPages) {
	g.GET("/", h.Index)
	g.GET("/create", h.CreatePage)
	g.POST("/create", h.Create)
	g.GET("/:id/edit", h.EditPage)
	g.POST("/:id/edit", h.Edit)
	g.GET("/:id/delete", h.Delete)
	g.GET("/:id/detail", h.DetailPage)
	g.POST("/:id/detail", h.Detail)
}

func registerTodoRoutes(api *gin.RouterGroup, h *handlers.TodoHandler) {
	api.POST("/todos", h.Create)
	api.GET("/todos", h.List)
	api.GET("/todos/:id", h.GetByID)
	api.PATCH("/todos/:id", h.Update)
	api.DELETE("/todos/:id", h.Delete)
}

func registerAuthRoutes(api *gin.RouterGroup, h *handlers.AuthHandler) {
	api.POST("/auth/login", h.APILogin)
	api.POST("/auth/register", h.APIRegister)
	api.POST("/auth/logout", h.APILogout)
}

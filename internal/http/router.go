package http

import (
	"context"
	"time"

	"github.com/geocoder89/orghub/internal/auth"
	"github.com/geocoder89/orghub/internal/cache"
	"github.com/geocoder89/orghub/internal/config"
	"github.com/geocoder89/orghub/internal/http/handlers"
	"github.com/geocoder89/orghub/internal/http/middlewares"
	"github.com/geocoder89/orghub/internal/observability"
	"github.com/geocoder89/orghub/internal/repo/postgres"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func NewRouter(cfg config.Config, pool *pgxpool.Pool, store cache.Store) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	r.Use(otelgin.Middleware("orghub"))

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)
	r.Use(prom.GinHandleMiddleware())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// health
	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	// wire up repositories
	usersRepo := postgres.NewUsersRepo(pool, prom)
	orgsRepo := postgres.NewOrganisationsRepo(pool, prom)

	// wire up handlers
	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	authHandler := handlers.NewAuthHandler(usersRepo, orgsRepo, jwtManager)
	usersHandler := handlers.NewUsersHandler(usersRepo)
	orgsHandler := handlers.NewOrganisationsHandler(orgsRepo, usersRepo, store)

	authGroup := r.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	authMw := middlewares.NewAuthMiddleware(jwtManager)

	api := r.Group("/api")
	api.Use(authMw.RequireAuth())
	api.GET("/users/:id", usersHandler.GetUser)
	api.GET("/organisations", orgsHandler.List)
	api.POST("/organisations", orgsHandler.Create)
	api.GET("/organisations/:orgId", orgsHandler.Get)
	api.POST("/organisations/:orgId/users", orgsHandler.AddUser)

	return r
}

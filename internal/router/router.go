package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/shining-stars/backend/internal/cache"
	"github.com/anonto42/shining-stars/backend/internal/handlers"
	"github.com/anonto42/shining-stars/backend/internal/middleware"
	"github.com/anonto42/shining-stars/backend/internal/models"
	"github.com/anonto42/shining-stars/backend/internal/repositories"
	"github.com/anonto42/shining-stars/backend/internal/storage"
	"github.com/anonto42/shining-stars/backend/internal/validators"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// Options carries the connections and settings the routes are built from.
type Options struct {
	Postgres     *gorm.DB
	Mongo        *mongo.Database
	Redis        *redis.Client
	FirebaseAuth *auth.Client

	JWTSecret       string
	TokenTTL        time.Duration
	ViewDedupWindow time.Duration
	UploadDir       string
}

// API holds the repositories and helpers behind the HTTP routes.
type API struct {
	PostRepo  repositories.PostRepository
	UserRepo  repositories.UserRepository
	Media     handlers.MediaStore
	Views     *cache.ViewTracker
	Verifier  handlers.IDTokenVerifier
	JWTSecret string
	TokenTTL  time.Duration
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo, logger *slog.Logger, origins []string) {
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	e.Use(eMiddleware.RequestIDWithConfig(eMiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLogger(logger))
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORSWithConfig(eMiddleware.CORSConfig{
		AllowOrigins: origins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	slog.Info("Global middleware configured")
}

// SetupRoutes migrates the user table, prepares the post indexes and wires
// every route.
func SetupRoutes(ctx context.Context, e *echo.Echo, opts Options) error {
	if err := opts.Postgres.AutoMigrate(&models.User{}); err != nil {
		return fmt.Errorf("auto migrate users: %w", err)
	}
	slog.Info("PostgreSQL auto-migrations completed")

	postRepo := repositories.NewMongoPostRepository(opts.Mongo)
	if err := postRepo.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure post indexes: %w", err)
	}
	slog.Info("MongoDB post indexes ensured")

	media, err := storage.NewLocalMediaStore(opts.UploadDir)
	if err != nil {
		return err
	}
	e.Static(storage.PublicPrefix, media.Dir())

	// A nil *auth.Client must not become a non-nil interface.
	var verifier handlers.IDTokenVerifier
	if opts.FirebaseAuth != nil {
		verifier = opts.FirebaseAuth
	}

	RegisterAPI(e, API{
		PostRepo:  postRepo,
		UserRepo:  repositories.NewPostgresUserRepository(opts.Postgres),
		Media:     media,
		Views:     cache.NewViewTracker(opts.Redis, opts.ViewDedupWindow),
		Verifier:  verifier,
		JWTSecret: opts.JWTSecret,
		TokenTTL:  opts.TokenTTL,
	})
	return nil
}

// RegisterAPI registers the health, auth and authenticated API routes.
func RegisterAPI(e *echo.Echo, api API) {
	e.GET("/health", handlers.HealthCheck)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/auth")
	handlers.NewAuthHandler(api.UserRepo, api.Verifier, api.JWTSecret, api.TokenTTL).RegisterAuthRoutes(authGroup)
	slog.Info("Auth routes configured")

	// --- Protected routes (require JWT authentication) ---
	g := e.Group("/api")
	g.Use(middleware.JWTAuthMiddleware(api.JWTSecret))

	handlers.NewUserHandler(api.UserRepo).RegisterProfileRoutes(g)
	handlers.NewFeedHandler(api.PostRepo).RegisterFeedRoutes(g)
	handlers.NewPostHandler(api.PostRepo, api.UserRepo, api.Media, api.Views).RegisterPostRoutes(g)
	handlers.NewCommentHandler(api.PostRepo, api.UserRepo).RegisterCommentRoutes(g)
	handlers.NewLikeHandler(api.PostRepo).RegisterLikeRoutes(g)
	handlers.NewStatsHandler(api.PostRepo).RegisterStatsRoutes(g)
	slog.Info("All routes configured", slog.Int("routes", len(e.Routes())))
}

// NewMetricsServer serves Prometheus metrics on their own port.
func NewMetricsServer(port string, metrics http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics)
	return &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

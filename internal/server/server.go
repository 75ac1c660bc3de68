package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jwgillispie/sway/internal/auth"
	"github.com/jwgillispie/sway/internal/cache"
	"github.com/jwgillispie/sway/internal/config"
	"github.com/jwgillispie/sway/internal/review"
	"github.com/jwgillispie/sway/internal/spot"
	"github.com/jwgillispie/sway/internal/storage"
	"github.com/jwgillispie/sway/internal/user"
)

type Server struct {
	App   *fiber.App
	Cfg   config.Config
	DB    *pgxpool.Pool
	Redis *redis.Client
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, uploader storage.Uploader) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:   app,
		Cfg:   cfg,
		DB:    db,
		Redis: redisClient,
	}

	registerRoutes(s, uploader)
	return s
}

func registerRoutes(s *Server, uploader storage.Uploader) {
	s.App.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Welcome to Hammock Spots API!", "status": "online"})
	})
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	spotCache := cache.New(s.Redis, time.Duration(s.Cfg.SpotCacheTTLSec)*time.Second)
	blobs := storage.NewService(s.DB, uploader)

	spots := spot.NewService(s.DB, blobs, spotCache)
	reviews := review.NewService(s.DB, blobs, spotCache)
	users := user.NewService(s.DB, spots)

	authMiddleware := auth.Middleware(auth.NewVerifier(s.Cfg.AuthJWTSecret), users)

	spot.RegisterRoutes(s.App.Group("/spots"), spots, authMiddleware)
	review.RegisterRoutes(s.App.Group("/reviews"), reviews, authMiddleware)
	user.RegisterRoutes(s.App.Group("/users"), users, blobs, authMiddleware)
}

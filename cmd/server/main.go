package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/soran-dev/marketplace-auth/internal/config"
	"github.com/soran-dev/marketplace-auth/internal/database"
	"github.com/soran-dev/marketplace-auth/internal/handler"
	"github.com/soran-dev/marketplace-auth/internal/logger"
	"github.com/soran-dev/marketplace-auth/internal/mailer"
	"github.com/soran-dev/marketplace-auth/internal/middleware"
	"github.com/soran-dev/marketplace-auth/internal/otp"
	"github.com/soran-dev/marketplace-auth/internal/queue"
	"github.com/soran-dev/marketplace-auth/internal/repository"
	"github.com/soran-dev/marketplace-auth/internal/router"
	"github.com/soran-dev/marketplace-auth/internal/service"
	"github.com/soran-dev/marketplace-auth/internal/token"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set env vars directly

	cfg := config.Load()
	zl := logger.New(cfg.Env, "info")

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	users := repository.NewUserRepo(db)
	otps := repository.NewOTPRepo(db)

	engine := otp.NewEngine(otps)
	tokens := token.NewIssuer(cfg.JWTSecret, cfg.AccessTTLMin, cfg.RefreshTTLHours)
	reset := token.NewResetTokenizer(cfg.JWTSecret, cfg.ResetTTLHours)
	smtp := mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)

	auth := service.NewAuthService(users, engine, tokens, reset, smtp, queue.NewPublisher(), zl, service.Options{
		EmailSend:     cfg.EmailSend,
		EmailFrom:     cfg.EmailFrom,
		ResetLinkBase: cfg.ResetLinkBase,
		BcryptCost:    cfg.BcryptCost,
	})

	// Background audit consumer; keeps reconnecting on broker failures.
	go func() {
		if err := queue.StartAuthConsumer(); err != nil {
			log.Printf("auth consumer stopped: %v", err)
		}
	}()

	// Redis is optional: a nil client turns the cache into a pass-through.
	rdb := config.NewRedisClient()
	if rdb == nil {
		zl.Warn().Msg("redis unavailable, admin listing cache disabled")
	}
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.AccessTokenFromCookie())

	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(auth), tokens, users)
	router.RegisterAdmin(e, handler.NewAdminHandler(users, cfg.BcryptCost), tokens, users, cacheMW)

	addr := ":" + cfg.Port
	zl.Info().Str("addr", addr).Str("env", cfg.Env).Bool("email_send", cfg.EmailSend).Msg("listening")

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

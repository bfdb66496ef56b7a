package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lumos-api/internal/config"
	"lumos-api/internal/db"
	"lumos-api/internal/email"
	"lumos-api/internal/google"
	apihttp "lumos-api/internal/http"
	"lumos-api/internal/repository"
	"lumos-api/internal/service"
	"lumos-api/internal/storage"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()
	if err := db.Ping(ctx, pool); err != nil {
		logger.Fatal("db ping", zap.Error(err))
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
	}

	userRepo := repository.NewPgUserRepository(pool)
	credentialRepo := repository.NewPgCredentialRepository(pool)
	magicLinkRepo := repository.NewPgMagicLinkRepository(pool)
	sessionRepo := repository.NewPgSessionRepository(pool)
	tagRepo := repository.NewPgTagRepository(pool)
	techRepo := repository.NewPgTechnologyRepository(pool)
	projectRepo := repository.NewPgProjectRepository(pool)

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	magicLinkTTL := time.Duration(cfg.MagicLinkTTLMinutes) * time.Minute
	var (
		limiter     service.RateLimiter
		tokenStore  service.RefreshTokenStore
		redisClient *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory stores", zap.Error(err))
		} else {
			limiter = service.NewRedisRateLimiter(redisClient, magicLinkTTL, cfg.MagicLinkRateLimit)
			tokenStore = service.NewRedisRefreshTokenStore(redisClient)
		}
		cancel()
	}
	if limiter == nil {
		limiter = service.NewMemoryRateLimiter(magicLinkTTL, cfg.MagicLinkRateLimit)
	}

	jwtSvc := service.NewJWTServiceWithStore(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLMinutes)*time.Minute,
		tokenStore,
	)
	if cfg.JWTSecret == "" {
		logger.Warn("jwt secret not configured")
	}

	googleVerifier := google.NewVerifier(
		logger,
		cfg.GoogleUserInfoURL,
		time.Duration(cfg.GoogleTimeoutSeconds)*time.Second,
		cfg.GoogleMaxRetries,
	)

	var objectStore service.ObjectStore
	if cfg.StorageEnabled() {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
		if err != nil {
			logger.Warn("s3 storage init failed, image uploads disabled", zap.Error(err))
		} else {
			objectStore = s3Store
		}
	}

	sessionSvc := service.NewSessionService(logger, sessionRepo)
	authSvc := service.NewAuthService(
		logger,
		userRepo,
		credentialRepo,
		magicLinkRepo,
		sessionSvc,
		jwtSvc,
		emailSender,
		googleVerifier,
		limiter,
		service.AuthConfig{
			FrontendURL:          cfg.FrontendURL,
			AllowedRedirectHosts: cfg.AllowedRedirectHosts,
			MagicLinkTTL:         magicLinkTTL,
		},
	)
	userSvc := service.NewUserService(logger, userRepo)
	contentSvc := service.NewContentService(logger, tagRepo, techRepo, projectRepo, objectStore)

	authHandler := apihttp.NewAuthHandler(logger, authSvc, jwtSvc)
	userHandler := apihttp.NewUserHandler(logger, userSvc, sessionSvc)
	contentHandler := apihttp.NewContentHandler(logger, contentSvc)
	router := apihttp.NewRouter(logger, jwtSvc, authHandler, userHandler, contentHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           apihttp.WithCORS(router, cfg.CORSAllowedOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

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

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/account-auth/internal/auth"
	"github.com/iliyamo/account-auth/internal/config"
	"github.com/iliyamo/account-auth/internal/database"
	"github.com/iliyamo/account-auth/internal/handler"
	"github.com/iliyamo/account-auth/internal/logging"
	"github.com/iliyamo/account-auth/internal/password"
	"github.com/iliyamo/account-auth/internal/repository"
	"github.com/iliyamo/account-auth/internal/repository/memstore"
	"github.com/iliyamo/account-auth/internal/router"
	"github.com/iliyamo/account-auth/internal/service"
	"github.com/iliyamo/account-auth/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(os.Stdout, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	codec, err := token.New(token.Config{
		Keys:      cfg.JWTKeys,
		Issuer:    cfg.JWTIssuer,
		AccessTTL: cfg.AccessTTL,
	})
	if err != nil {
		log.Fatalf("token codec: %v", err)
	}

	var hasher password.Hasher = password.Bcrypt{Cost: cfg.BcryptCost}
	if cfg.PasswordHasher == "argon2id" {
		hasher = password.DefaultArgon2id()
	}

	// Without Redis the API still serves, just without rate limiting.
	var rdb *redis.Client
	if cfg.RateLimit.Enabled {
		rdb, err = config.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn(ctx, "rate limiting disabled", "err", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	svc := auth.New(auth.Deps{
		Store:         store,
		Tokens:        codec,
		Hasher:        password.NewWorker(hasher, cfg.HashConcurrency),
		Notifier:      service.NewActivationPublisher(cfg.AMQPURL, cfg.ActivationURL, logger),
		Logger:        logger,
		ActivationTTL: cfg.ActivationTTL,
		RefreshTTL:    cfg.RefreshTTL,
		NotifyTimeout: cfg.NotifyTimeout,
	})

	e := router.New(logger)
	router.RegisterAuth(e, handler.NewAuthHandler(svc, logger, cfg.RequestTimeout), codec, cfg.RateLimit, rdb, logger)

	addr := ":" + cfg.Port
	go func() {
		logger.Info(ctx, "listening", "addr", addr, "env", cfg.Env, "store", cfg.StoreDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "shutdown", "err", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (auth.CredentialStore, func(), error) {
	if cfg.StoreDriver == "memory" {
		return memstore.New(), func() {}, nil
	}
	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repository.NewStore(db), func() { _ = db.Close() }, nil
}

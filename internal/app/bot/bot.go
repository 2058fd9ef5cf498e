// Package bot собирает основное приложение: хранилище, кеш, пул сессий,
// движок подписок, координатор загрузок, телеграм-бота и административный
// HTTP-сервер.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	tgbot "github.com/leonidvolkov/storygram/internal/bot"
	"github.com/leonidvolkov/storygram/internal/cache"
	"github.com/leonidvolkov/storygram/internal/config"
	"github.com/leonidvolkov/storygram/internal/lib/jwt"
	"github.com/leonidvolkov/storygram/internal/lib/sl"
	"github.com/leonidvolkov/storygram/internal/migrations"
	downloaderservice "github.com/leonidvolkov/storygram/internal/services/downloader"
	subscriptionservice "github.com/leonidvolkov/storygram/internal/services/subscription"
	"github.com/leonidvolkov/storygram/internal/services/tasks"
	"github.com/leonidvolkov/storygram/internal/sessionpool"
	"github.com/leonidvolkov/storygram/internal/storage/repository"
	"github.com/leonidvolkov/storygram/internal/telegram"
)

// App представляет основное приложение бота.
type App struct {
	bot    *tgbot.Bot
	server *http.Server
	pool   *sessionpool.Pool
	db     *repository.Storage
	logger *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр основного приложения.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}

	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		db.DB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := waitForDB(db); err != nil {
		db.DB.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		db.DB.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	connector := sessionpool.NewGotdConnector(cfg.APIID, cfg.APIHash)
	pool := sessionpool.New(connector, logger)
	seedSessions(ctx, pool, db, logger)

	subscriptionService := subscriptionservice.NewService(db, logger)
	downloaderService := downloaderservice.NewService(
		db, subscriptionService, pool, telegram.NewClient(), cacheRedis, cfg.DownloadDir, logger)
	registry := tasks.NewRegistry()

	bot, err := tgbot.New(cfg, subscriptionService, downloaderService, pool, registry, db, logger)
	if err != nil {
		pool.Close()
		db.DB.Close()
		return nil, fmt.Errorf("failed to init bot: %w", err)
	}

	jwtMaker := jwt.NewMaker(cfg.JWTSecretKey, cfg.TokenTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg, jwtMaker, subscriptionService, pool, registry, db)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		bot:    bot,
		server: srv,
		pool:   pool,
		db:     db,
		logger: logger,
	}, nil
}

// seedSessions восстанавливает пул из сохранённых записей. Сессии,
// потерявшие авторизацию, пропускаются с записью в лог.
func seedSessions(ctx context.Context, pool *sessionpool.Pool, db *repository.Storage, logger *slog.Logger) {
	records, err := db.ListSessions(ctx)
	if err != nil {
		logger.Error("failed to list stored sessions", sl.Err(err))
		return
	}
	for _, record := range records {
		if err := pool.Register(ctx, record.Name, record.StringSession); err != nil {
			logger.Warn("skipping stored session",
				slog.String("session", record.Name), sl.Err(err))
		}
	}
	logger.Info("session pool seeded", slog.Int("active", pool.Len()))
}

// Run запускает бота и административный HTTP-сервер.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	go a.bot.Start()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down gracefully")
		a.bot.Stop()
		err := a.server.Shutdown(timeoutCtx)
		a.pool.Close()
		a.db.DB.Close()
		return err
	}
}

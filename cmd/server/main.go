// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"recruithub/internal/auth"
	"recruithub/internal/common/aws"
	"recruithub/internal/common/config"
	"recruithub/internal/common/database"
	"recruithub/internal/common/logger"
	"recruithub/internal/common/observability"
	"recruithub/internal/connect"
	"recruithub/internal/ingest"
	"recruithub/internal/notify"
	"recruithub/internal/search"
	"recruithub/internal/server"
	"recruithub/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting recruithub server...",
		zap.String("environment", cfg.App.Environment),
		zap.String("recruitment", cfg.Recruitment.CurrentID),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	pgStore := store.NewPostgres(pg.GetDB())
	if err := pgStore.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}

	// --- Init Redis with retry ---
	var rd *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rd, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rd.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rd.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional) ---
	var indexer ingest.Indexer
	if cfg.Database.Elasticsearch.Enabled && cfg.Search.IndexResponses {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			zapLog.Warn("elasticsearch init failed, indexing disabled", zap.Error(err))
		} else if err := es.Ping(); err != nil {
			zapLog.Warn("elasticsearch unreachable, indexing disabled", zap.Error(err))
		} else {
			indexer = search.NewResponseIndexer(es.Client, cfg.Database.Elasticsearch.Index, log)
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Init AWS notification clients (optional) ---
	var notifier connect.Notifier
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		var sesClient *aws.SESClient
		var snsClient *aws.SNSClient
		if cfg.Notifications.Email.Enabled {
			if sesClient, err = aws.NewSESClient(ctx, cfg.Notifications.AWS.Region); err != nil {
				zapLog.Warn("ses init failed, email notifications disabled", zap.Error(err))
			}
		}
		if cfg.Notifications.SMS.Enabled {
			if snsClient, err = aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region); err != nil {
				zapLog.Warn("sns init failed, sms notifications disabled", zap.Error(err))
			}
		}
		notifier = notify.New(sesClient, snsClient, cfg.Notifications, cfg.Auth.AdminEmails, log)
	}

	// --- Wire services ---
	policy := auth.NewPolicy(cfg.Auth.AdminEmails, cfg.Auth.RecruiterEmails)
	sessions := auth.NewSessionResolver(rd.GetClient(), policy, cfg.Auth.SessionPrefix, log)

	connectSvc := connect.NewService(
		pgStore.Connections,
		pgStore.Forms,
		config.GetDuration(cfg.Connect.KeyTTL),
		cfg.Recruitment.CurrentID,
		notifier,
		log,
	)
	ingestSvc := ingest.NewService(
		pgStore.Forms,
		pgStore.Responses,
		pgStore.Candidates,
		cfg.Recruitment.CurrentID,
		indexer,
		obs,
		log,
	)

	srv := server.New(connectSvc, ingestSvc, sessions, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLog.Info("Server stopped")
}

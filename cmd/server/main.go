package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/example/efterskole-rides/internal/auth"
	"github.com/example/efterskole-rides/internal/config"
	"github.com/example/efterskole-rides/internal/dispatch"
	"github.com/example/efterskole-rides/internal/geocode"
	httpapi "github.com/example/efterskole-rides/internal/http"
	"github.com/example/efterskole-rides/internal/ingest"
	"github.com/example/efterskole-rides/internal/logging"
	"github.com/example/efterskole-rides/internal/requests"
	"github.com/example/efterskole-rides/internal/rides"
	"github.com/example/efterskole-rides/internal/schools"
	"github.com/example/efterskole-rides/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if cfg.PGDSN != "" && cfg.RunMigrations {
		if err := applyMigrations(cfg.PGDSN); err != nil {
			logger.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	var store storage.Store
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer ps.Close()
		store = ps
	} else {
		logger.Warn("PG_DSN not set, using in-memory store")
		store = storage.NewMemoryStore()
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
	}

	var resolver geocode.Resolver
	if cfg.GoogleMapsAPIKey != "" {
		gr, err := geocode.NewGoogleResolver(cfg.GoogleMapsAPIKey)
		if err != nil {
			logger.Error("maps client init failed", "error", err)
			os.Exit(1)
		}
		resolver = gr
		if redisClient != nil {
			resolver = geocode.NewCachedResolver(gr, redisClient, cfg.GeocodeCacheTTL)
		}
	} else {
		logger.Warn("GOOGLE_MAPS_API_KEY not set, searches are text-only unless coordinates are supplied")
	}

	var producer *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}
	// Kafka is optional; a nil producer just means events stay local.
	var events requests.EventPublisher
	if producer != nil {
		events = producer
	}
	var rideEvents rides.EventPublisher
	if producer != nil {
		rideEvents = producer
	}

	wsreg := dispatch.NewWSRegistry(logger)

	authSvc := auth.NewService(store, cfg.JWTSecret, cfg.TokenTTL)
	schoolSvc := schools.NewService(store)
	rideSvc := rides.NewService(store, store, resolver, rideEvents, logger)
	requestSvc := requests.NewService(store, store, events, wsreg, logger)

	srv := httpapi.NewServer(httpapi.Deps{
		Rides:           rideSvc,
		Requests:        requestSvc,
		Schools:         schoolSvc,
		Auth:            authSvc,
		Profiles:        store,
		WSReg:           wsreg,
		Logger:          logger,
		DefaultRadiusKm: cfg.DefaultRadiusKm,
	})

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("bye")
}

// applyMigrations executes migrations/*.sql in filename order. Files are
// written to be idempotent (CREATE TABLE IF NOT EXISTS).
func applyMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	files, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(b)); err != nil {
			return err
		}
	}
	return nil
}

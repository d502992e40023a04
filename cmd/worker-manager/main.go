// cmd/worker-manager/main.go
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	awsclients "gcloud-docgen/internal/common/aws"
	"gcloud-docgen/internal/common/camunda"
	"gcloud-docgen/internal/common/config"
	"gcloud-docgen/internal/common/database"
	httpclient "gcloud-docgen/internal/common/http"
	"gcloud-docgen/internal/common/logger"
	"gcloud-docgen/internal/common/observability"
	"gcloud-docgen/internal/docgen"
	"gcloud-docgen/internal/lock"
	"gcloud-docgen/internal/notify"
	"gcloud-docgen/internal/pdf"
	"gcloud-docgen/internal/proposals"
	"gcloud-docgen/internal/publisher"
	"gcloud-docgen/internal/search"
	"gcloud-docgen/internal/storage"

	gsd "gcloud-docgen/internal/workers/documents/generate-service-description"
	ssd "gcloud-docgen/internal/workers/documents/search-service-documents"
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

type worker interface {
	Register() error
	Close()
	GetTaskType() string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.ForService(
		logger.New(cfg.Logging.Level, cfg.Logging.Format),
		cfg.App.Name, cfg.App.Version, cfg.App.Environment,
	)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("storage", cfg.Storage.Backend))

	ctx := context.Background()

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel metrics disabled", zap.Error(err))
	}
	defer obs.Shutdown(context.Background())

	if cfg.Tracing.Enabled {
		shutdownTracing, err := observability.InitTracing(ctx, observability.TracingOptions{
			ServiceName:    cfg.App.Name,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			Endpoint:       cfg.Tracing.Endpoint,
			Insecure:       cfg.Tracing.Insecure,
			SampleRatio:    cfg.Tracing.SampleRatio,
		})
		if err != nil {
			zapLog.Warn("tracing disabled", zap.Error(err))
		} else {
			defer shutdownTracing(context.Background())
		}
	}

	// --- Zeebe ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres, cfg.App.Name)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()

	records := proposals.NewRepository(pg.DB, log)
	if err := records.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Elasticsearch (optional, search falls back to storage) ---
	var index *search.Index
	if cfg.Database.Elasticsearch.GetURL() != "" {
		esClient, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err == nil {
			err = esClient.Ping(ctx)
		}
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, search will walk storage", zap.Error(err))
		} else {
			index = search.NewIndex(esClient.Client, cfg.Database.Elasticsearch.Index, log)
			created, err := esClient.EnsureIndex(ctx, index.Name(), search.Mapping)
			if err != nil {
				zapLog.Warn("elasticsearch index not ensured", zap.String("index", index.Name()), zap.Error(err))
			} else if created {
				zapLog.Info("Elasticsearch index created", zap.String("index", index.Name()))
			}
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- AWS, storage and side effects ---
	var awsCfg aws.Config
	if needsAWS(cfg) {
		awsCfg, err = awsclients.LoadConfig(ctx, cfg.AWS.Region)
		if err != nil {
			zapLog.Fatal("aws config failed", zap.Error(err))
		}
	}

	store, err := storage.New(ctx, cfg.Storage, awsCfg, log)
	if err != nil {
		zapLog.Fatal("storage init failed", zap.Error(err))
	}

	generator := docgen.NewGenerator(
		docgen.NewLoader(afero.NewOsFs(), cfg.Template, log),
		httpclient.NewClient(config.GetDuration(cfg.Docgen.ImageTimeout), cfg.Docgen.MaxImageBytes),
		docgen.OptionsFromConfig(cfg.Docgen),
		log,
	)

	deps := publisher.Deps{
		Generator: generator,
		Store:     store,
		Locker:    lock.NewLocker(rdb.Client, config.GetDuration(cfg.Lock.TTL), log),
		Records:   records,
	}
	if index != nil {
		deps.Index = index
	}
	if cfg.PDF.Enabled {
		deps.PDF = pdf.NewRequester(awsclients.NewSNSClient(awsCfg), cfg.PDF.TopicARN, log)
	}
	if cfg.Notifications.Email.Enabled {
		deps.Notifier = notify.NewMailer(awsclients.NewSESClient(awsCfg), notify.Config{
			Enabled:    true,
			FromEmail:  cfg.Notifications.Email.FromEmail,
			Recipients: cfg.Notifications.Email.Recipients,
		}, log)
	}
	pub := publisher.New(deps, log)
	searcher := search.NewSearcher(index, store, log)

	// --- Workers ---
	generateHandler, err := gsd.NewHandler(gsd.HandlerOptions{
		AppConfig:     cfg,
		Camunda:       zeebe,
		Publisher:     pub,
		Logger:        log,
		Observability: obs,
	})
	if err != nil {
		zapLog.Fatal("generate worker init failed", zap.Error(err))
	}
	searchHandler, err := ssd.NewHandler(ssd.HandlerOptions{
		AppConfig:     cfg,
		Camunda:       zeebe,
		Searcher:      searcher,
		Logger:        log,
		Observability: obs,
	})
	if err != nil {
		zapLog.Fatal("search worker init failed", zap.Error(err))
	}

	workers := []worker{generateHandler, searchHandler}
	for _, w := range workers {
		if err := w.Register(); err != nil {
			zapLog.Fatal("worker registration failed", zap.String("taskType", w.GetTaskType()), zap.Error(err))
		}
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	server := &http.Server{
		Addr:              ":8080",
		Handler:           healthMux(zeebe, pg.DB, rdb),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening on :8080")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Close()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

func needsAWS(cfg *config.Config) bool {
	return cfg.Storage.Backend == config.StorageBackendS3 || cfg.PDF.Enabled || cfg.Notifications.Email.Enabled
}

func healthMux(zeebe *camunda.Client, db *sql.DB, rdb *database.RedisClient) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]string{}
		status := http.StatusOK
		record := func(name string, err error) {
			if err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				return
			}
			checks[name] = "ok"
		}
		record("zeebe", zeebe.HealthCheck(ctx))
		record("postgres", db.PingContext(ctx))
		record("redis", rdb.Ping(ctx))

		writeStatus(w, status, checks)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func writeStatus(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

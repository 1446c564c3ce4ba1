package main

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/hibiken/asynq"

	"pdf-chat-platform/internal/ai"
	"pdf-chat-platform/internal/config"
	"pdf-chat-platform/internal/logger"
	"pdf-chat-platform/internal/queue"
	"pdf-chat-platform/internal/telemetry"
	"pdf-chat-platform/internal/vector"
	"pdf-chat-platform/services"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	logger.InitLogger(cfg)

	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("pdf-chat-worker", cfg.OTLPEndpoint)
		if err != nil {
			log.Fatal("Failed to init tracing: ", err)
		}
		defer shutdown()
	}
	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to init metrics: ", err)
	}

	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB: ", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	ctx := context.Background()
	embedder, err := ai.NewEmbedder(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to init embeddings provider: ", err)
	}
	store, err := vector.New(cfg)
	if err != nil {
		log.Fatal("Failed to init vector store: ", err)
	}
	objects, err := services.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatal("Failed to init object storage: ", err)
	}
	chunker, err := services.NewChunker(cfg.MaxChunkSize, cfg.ChunkOverlap)
	if err != nil {
		log.Fatal("Invalid chunking config: ", err)
	}

	history := services.NewResilientHistoryStore(services.NewMongoHistoryStore(db))
	indexer := services.NewIndexer(embedder, store, chunker, cfg.EmbedBatchSize, metrics)
	// The worker never enqueues, it consumes, so no enqueuer is wired.
	pdfService := services.NewPDFService(db, objects, indexer, history, nil, cfg.SyncProcessingLimit)

	// Hourly reconciliation removes collections whose pdf record is gone,
	// e.g. after a crash mid-delete.
	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Every(1).Hour().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		removed, err := pdfService.ReconcileOrphans(ctx, store)
		if err != nil {
			logger.Error("orphan reconciliation failed", "error", err)
			return
		}
		if removed > 0 {
			logger.Info("orphan reconciliation done", "removed", removed)
		}
	}); err != nil {
		log.Fatal("Failed to schedule reconciliation: ", err)
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(pdfService)
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIndexPDF, processor.IndexPDF)

	logger.Info("worker starting", "redis", cfg.RedisURL, "concurrency", 10)
	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker: ", err)
	}
}

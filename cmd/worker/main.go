package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/insightfulops/opskb/internal/config"
	db "github.com/insightfulops/opskb/internal/core/database"
	"github.com/insightfulops/opskb/internal/core/ingestion"
	"github.com/insightfulops/opskb/internal/core/llm"
	objectclient "github.com/insightfulops/opskb/internal/core/object-client"
	"github.com/insightfulops/opskb/internal/models"
	"github.com/insightfulops/opskb/internal/queue"
)

// The worker process consumes ingestion jobs. It runs independently of the
// API and may be scaled to several replicas against the same broker.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	cfg := config.LoadConfig()
	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL not set; the worker has nothing to consume")
	}

	startCtx, startCancel := context.WithTimeout(ctx, 5*time.Minute)
	defer startCancel()

	dbClient, err := db.NewDatabaseClient(startCtx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer dbClient.Close()

	objClient, err := objectclient.NewS3Client(startCtx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	embedder, err := llm.NewEmbeddingProvider(cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	if embedder == nil {
		log.Fatal("OPENAI_API_KEY not set; the worker cannot embed chunks")
	}

	rdb, err := queue.NewRedisClient(startCtx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer rdb.Close()

	ingestor := ingestion.NewIngestor(dbClient, objClient, embedder, cfg.BucketName)

	handler := func(ctx context.Context, payload queue.IngestJobPayload) error {
		n, err := ingestor.Run(ctx, payload)
		if err != nil {
			// Best effort; the queue still owns the retry decision.
			if serr := dbClient.UpdateDocumentStatus(ctx, payload.DocID, models.DocStatusFailed); serr != nil {
				log.Printf("worker: mark doc %s failed: %v", payload.DocID, serr)
			}
			return err
		}
		log.Printf("worker: indexed doc %s (%d chunks)", payload.DocID, n)
		return nil
	}

	worker, err := queue.NewWorker(queue.NewRedisQueue(rdb), handler, cfg.WorkerCount)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })

	log.Printf("OpsKB worker is running with concurrency %d.", cfg.WorkerCount)
	if err := g.Wait(); err != nil {
		log.Fatalf("worker stopped: %v", err)
	}
	log.Println("worker shut down.")
}

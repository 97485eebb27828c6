package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/insightfulops/opskb/internal/assistant"
	"github.com/insightfulops/opskb/internal/config"
	"github.com/insightfulops/opskb/internal/core"
	db "github.com/insightfulops/opskb/internal/core/database"
	"github.com/insightfulops/opskb/internal/core/llm"
	objectclient "github.com/insightfulops/opskb/internal/core/object-client"
	"github.com/insightfulops/opskb/internal/queue"
)

// App wires the API process: storage clients, providers, queue producer
// and the HTTP server. Job consumption lives in cmd/worker, not here.
type App struct {
	DBClient     *db.DatabaseClient
	ObjectClient *objectclient.S3Client
	Enqueuer     queue.Enqueuer
	Assistant    *assistant.Service
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Object client initialized and ready.")

	embedder, err := llm.NewEmbeddingProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}
	llmProvider, err := llm.NewCompletionProvider(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the completion provider, %w", err)
	}

	var enqueuer queue.Enqueuer = queue.NoopEnqueuer{}
	if cfg.RedisURL != "" {
		rdb, err := queue.NewRedisClient(appCtx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		enqueuer = queue.NewRedisQueue(rdb)
		log.Println("Ingest queue connected.")
	} else {
		log.Println("REDIS_URL not set; uploads will stay in processing until reindexed.")
	}

	asst := assistant.NewService(dbClient, embedder, llmProvider)
	if asst.Degraded() {
		log.Println("Assistant running in degraded mode: no completion credentials configured.")
	}

	server := NewServer(cfg, dbClient, objClient, enqueuer, asst)

	return &App{
		DBClient:     dbClient,
		ObjectClient: objClient,
		Enqueuer:     enqueuer,
		Assistant:    asst,
		Server:       server,
	}, nil
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}

var _ core.DbClient = (*db.DatabaseClient)(nil)

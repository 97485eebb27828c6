package app

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/insightfulops/opskb/internal/api/handlers"
	appMiddleware "github.com/insightfulops/opskb/internal/api/middlewares"
	"github.com/insightfulops/opskb/internal/assistant"
	"github.com/insightfulops/opskb/internal/config"
	"github.com/insightfulops/opskb/internal/core"
	"github.com/insightfulops/opskb/internal/models"
	"github.com/insightfulops/opskb/internal/queue"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, db core.DbClient, obj core.ObjectClient, enq queue.Enqueuer, asst *assistant.Service) *Server {
	authHandler := handlers.NewAuthHandler(db, cfg.JWTSecret)
	docHandler := handlers.NewDocumentHandler(db, obj, enq, cfg)
	assistantHandler := handlers.NewAssistantHandler(asst)
	convHandler := handlers.NewConversationHandler(db)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Get("/health", handleHealth)
		api.Post("/signup", authHandler.Signup)
		api.Post("/login", authHandler.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

			protected.Get("/me", authHandler.Me)

			protected.Get("/docs", docHandler.GetDocuments)
			protected.Get("/docs/{docID}", docHandler.GetDocument)

			protected.Group(func(admin chi.Router) {
				admin.Use(appMiddleware.RequireRole(models.VisibilityAdmin))
				admin.Post("/docs", docHandler.UploadDocument)
				admin.Post("/docs/{docID}/reindex", docHandler.ReindexDocument)
				admin.Post("/docs/{docID}/archive", docHandler.ArchiveDocument)
			})

			protected.Post("/assistant/chat", assistantHandler.Chat)
			protected.Post("/assistant/feedback", assistantHandler.Feedback)

			protected.Get("/conversations", convHandler.ListConversations)
			protected.Get("/conversations/{conversationID}/messages", convHandler.ListMessages)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

// Start runs the HTTP server.
func (s *Server) Start() {
	log.Printf("HTTP server listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down HTTP server...")
	return s.httpServer.Shutdown(ctx)
}

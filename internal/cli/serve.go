package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"questionnaire-service/internal/catalog"
	"questionnaire-service/internal/config"
	"questionnaire-service/internal/db"
	"questionnaire-service/internal/event"
	"questionnaire-service/internal/flow"
	"questionnaire-service/internal/handlers"
	"questionnaire-service/internal/repository"
	"questionnaire-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the questionnaire HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if port != "" {
				cfg.Server.Port = port
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func runServe(cfg *config.Config) error {
	gin.SetMode(cfg.Server.GinMode)

	graph, err := catalog.Load(cfg.Flow.QuestionnaireFile)
	if err != nil {
		return fmt.Errorf("failed to load questionnaire: %w", err)
	}
	log.Printf("Loaded questionnaire with %d questions", graph.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, closeStore, err := openStore(ctx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, err := event.NewEventPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
	if err != nil {
		log.Printf("Warning: Failed to initialize event publisher: %v", err)
		publisher, _ = event.NewEventPublisher("", "")
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Printf("Error closing event publisher: %v", err)
		}
	}()

	svc := service.NewSessionService(graph, store, publisher, service.Options{
		KeyPrefix:        cfg.Store.KeyPrefix,
		AutoSaveInterval: cfg.Flow.AutoSaveInterval,
		IdleTTL:          cfg.Flow.SessionIdleTTL,
	})
	router := handlers.NewRouter(svc, cfg.Server.CORSOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	autoSaveCtx, stopAutoSave := context.WithCancel(context.Background())
	defer stopAutoSave()
	go svc.RunAutoSave(autoSaveCtx)

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	serverErr := make(chan error, 1)

	go func() {
		log.Printf("Starting server on %s (store: %s)", server.Addr, cfg.Store.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
	case <-shutdownChan:
		log.Println("Shutting down server...")
	}

	stopAutoSave()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	log.Println("Server shutdown complete")
	return nil
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (flow.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMemory, "":
		log.Println("Using in-memory store, progress is lost on restart")
		return repository.NewMemoryStore(), func() {}, nil

	case config.BackendRedis:
		client, err := db.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Printf("Error closing Redis client: %v", err)
			}
		}
		return repository.NewRedisStore(client, cfg.Redis.TTL), closeFn, nil

	case config.BackendMongo:
		client, err := db.ConnectMongo(ctx, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			db.DisconnectMongo(ctx, client)
		}
		database := client.Database(cfg.MongoDB.Database)
		return repository.NewMongoStore(database, cfg.MongoDB.Collection), closeFn, nil

	case config.BackendSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.SQLite)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := conn.Close(); err != nil {
				log.Printf("Error closing SQLite database: %v", err)
			}
		}
		store, err := repository.NewSQLiteStore(ctx, conn)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		return store, closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}

package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"buzzboard/internal/app"
	"buzzboard/internal/auth"
	"buzzboard/internal/config"
	"buzzboard/internal/infra/memory"
	pgstore "buzzboard/internal/infra/postgres"
	redisinfra "buzzboard/internal/infra/redis"
	transport "buzzboard/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var store app.Store
	if cfg.Postgres.URL != "" {
		// Fail fast on a bad DSN before accepting traffic.
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		pool.Close()
		store = pgstore.NewStore(openBunDB(cfg.Postgres.URL))
	} else {
		mem := memory.NewStore()
		if err := mem.SeedQuestions(ctx, DefaultQuestions()); err != nil {
			return err
		}
		store = mem
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalog app.CatalogRepository
	if redisClient != nil {
		catalog = redisinfra.NewCatalogCache(redisClient, store, catalogTTL)
	} else {
		catalog = memory.NewCatalogCache(store, catalogTTL)
	}

	var tokens auth.TokenStore
	if redisClient != nil {
		tokens = redisinfra.NewTokenStore(redisClient)
	} else {
		tokens = memory.NewTokenStore()
	}
	sessionTTL := config.TTLDuration(cfg.Auth.SessionTTL, 24*time.Hour)
	authService := auth.NewService(store, tokens, sessionTTL)

	var opts []app.Option
	if redisClient != nil {
		opts = append(opts, app.WithPresence(redisinfra.NewPresence(redisClient, 5*time.Minute), time.Minute))
	}
	game := app.NewGameService(store, catalog, opts...)

	handler := transport.NewHandler(authService, game)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting buzzboard on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

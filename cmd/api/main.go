package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"retroboard/api/internal/app"
	"retroboard/api/internal/board"
	"retroboard/api/internal/config"
	"retroboard/api/internal/presence"
	"retroboard/api/internal/search"
	"retroboard/api/internal/store"
)

type boardStore interface {
	board.Store
	LoadBoard(ctx context.Context, boardID string) (board.Board, error)
	Ping(ctx context.Context) error
}

type presenceTracker interface {
	Start(ctx context.Context, boardID, userID, columnID string) error
	Stop(ctx context.Context, boardID, userID string) error
	UsersAddingCardsIn(ctx context.Context, boardID, columnID, callerID string) ([]presence.Entry, error)
}

func main() {
	cfg := config.Load()
	ctx := context.Background()

	var (
		dataStore boardStore
		fallback  search.Searcher
		pgfts     *search.PgFTS
	)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		pgStore := store.NewPostgresStore(db)
		pgfts = search.NewPgFTS(pgStore.DB())
		dataStore, fallback = pgStore, pgfts
	} else {
		log.Printf("DATABASE_URL not set, keeping boards in memory")
		memory := board.NewMemoryStore()
		dataStore, fallback = memory, search.NewBoardScan(memory)
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, fallback)
	go searchService.ReindexAllFromPG(ctx, pgfts)

	var tracker presenceTracker
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for presence")
		redisTracker, err := presence.NewRedisTracker(cfg.RedisURL, cfg.PresenceCapacity, cfg.PresenceTTL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisTracker.Close()
		tracker = redisTracker
	} else {
		log.Printf("Using process memory for presence")
		tracker = presence.NewRegistry(cfg.PresenceCapacity, cfg.PresenceTTL)
	}

	service := app.New(cfg, dataStore, tracker, searchService, app.LogNotifier{})

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Retroboard API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

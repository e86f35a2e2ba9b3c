package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"chathub/internal/api"
	"chathub/internal/config"
	"chathub/internal/database"
	"chathub/internal/directory"
	"chathub/internal/hub"
	"chathub/internal/store"
	"chathub/internal/websocket"
	pkgdatabase "chathub/pkg/database"
)

// Application wires all components together. Initialization order follows
// the dependency chain: Database, Stores, Directory, Registry, Hub, API,
// HTTP. Shutdown runs the same chain in reverse.
type Application struct {
	config     *config.Config
	dbManager  *database.Manager
	messages   *store.Messages
	moderation *store.Moderation
	directory  *directory.Directory
	registry   *websocket.Registry
	chatHub    *hub.Hub
	apiServer  *api.Server
	httpServer *http.Server
}

func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbConfig := &pkgdatabase.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	messages := store.NewMessages(dbManager)
	messages.SetRetention(time.Duration(cfg.Chat.RetentionDays) * 24 * time.Hour)
	moderation := store.NewModeration(dbManager)
	userDirectory := directory.NewDirectory(dbManager)

	registry := websocket.NewRegistry()

	chatHub := hub.NewHub(registry, userDirectory, messages, moderation)
	chatHub.Configure(cfg.Chat.HistoryLimit, cfg.Chat.SweepInterval)

	apiServer := api.NewServer(dbManager, chatHub, registry, moderation)

	wsHandler := websocket.NewHandler(chatHub, cfg.WebSocket.PingInterval, cfg.WebSocket.ReadTimeout)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		dbManager:  dbManager,
		messages:   messages,
		moderation: moderation,
		directory:  userDirectory,
		registry:   registry,
		chatHub:    chatHub,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start launches the hub and then the HTTP server. The hub must be running
// before the first WebSocket upgrade so no connect event is lost.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting chathub on %s", app.httpServer.Addr)

	if err := app.chatHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start chat hub: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.chatHub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("chathub started successfully")
		return nil
	case <-ctx.Done():
		_ = app.chatHub.Stop()
		return ctx.Err()
	}
}

// Stop shuts down in reverse order: HTTP, hub, database.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down chathub")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := app.chatHub.Stop(); err != nil {
		log.Printf("Chat hub shutdown error: %v", err)
	}

	if err := app.dbManager.Close(); err != nil {
		log.Printf("Database shutdown error: %v", err)
	}

	log.Printf("chathub shutdown complete")
	return nil
}

// GetAddr returns the listen address.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}

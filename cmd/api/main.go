package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zeuschat/backend/internal/config"
	"github.com/zeuschat/backend/internal/handler"
	"github.com/zeuschat/backend/internal/model/agent"
	"github.com/zeuschat/backend/internal/render"
	"github.com/zeuschat/backend/internal/service/ai"
	"github.com/zeuschat/backend/internal/service/chat"
	"github.com/zeuschat/backend/internal/service/conversation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.AI.Validate(); err != nil {
		log.Fatalf("invalid model configuration: %v", err)
	}

	profile, err := agent.Load(cfg.ProfilePath)
	if err != nil {
		log.Fatalf("failed to load agent profile: %v", err)
	}

	aiService, err := ai.NewService(ctx, profile, cfg.AI)
	if err != nil {
		log.Fatalf("failed to initialize AI service: %v", err)
	}
	defer aiService.Close()
	log.Printf("AI service initialized provider=%s model=%s", cfg.AI.Provider, cfg.AI.Model)

	chatService := chat.NewService()
	conv := conversation.NewService(chatService, aiService, profile)

	if cfg.Session.IdleTTL > 0 {
		go sweepSessions(ctx, chatService, cfg.Session)
	}

	router := handler.NewRouter(conv, chatService, render.NewMarkdown())

	startServer(ctx, cfg.Server, router)
}

// sweepSessions 定期清理空闲会话
func sweepSessions(ctx context.Context, store *chat.Service, cfg config.SessionConfig) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := store.Sweep(cfg.IdleTTL); len(removed) > 0 {
				log.Printf("[session] swept %d idle sessions", len(removed))
			}
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Zeus chat listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

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

	"github.com/easelhq/easel/backend/internal/api"
	"github.com/easelhq/easel/backend/internal/config"
	"github.com/easelhq/easel/backend/internal/presence"
	"github.com/easelhq/easel/backend/internal/reaper"
	"github.com/easelhq/easel/backend/internal/session"
	"github.com/easelhq/easel/backend/internal/store"
	"github.com/easelhq/easel/backend/internal/ws"
)

func main() {
	cfg := config.Load()

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	table := presence.NewTable()
	hub := ws.NewHub(table)

	handler := session.NewHandler(st, table, hub)
	handler.Start()
	defer handler.Stop()

	reaperSvc := reaper.New(st, reaper.Config{
		Interval: cfg.ReaperInterval,
		RoomTTL:  cfg.RoomTTL,
	})
	reaperSvc.Start()
	defer reaperSvc.Stop()

	apiHandler := api.New(st, hub, table)
	router := apiHandler.Router()

	// WebSocket endpoint
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, handler, w, r)
	})

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: corsMiddleware(router),
	}

	go func() {
		log.Printf("🎨 Easel server starting on :%s", cfg.Port)
		log.Printf("📁 Database: %s", cfg.DBPath)
		log.Println("Endpoints:")
		log.Println("  - WebSocket: /ws")
		log.Println("  - Health:    GET /health")
		log.Println("  - Stats:     GET /api/stats")
		log.Println("  - Join:      POST /api/rooms/join")
		log.Println("  - Room:      GET /api/rooms/{roomId}")

		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

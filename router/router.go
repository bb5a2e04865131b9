// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/quickly-buzz/cliparse"
	"github.com/danielhkuo/quickly-buzz/handlers"
	"github.com/danielhkuo/quickly-buzz/middleware"
	"github.com/danielhkuo/quickly-buzz/store"
)

func NewRouter(st store.Store, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	roundHandler := handlers.NewRoundHandler(st, cfg)
	scoreHandler := handlers.NewScoreHandler(st, cfg)
	streamHandler := handlers.NewStreamHandler(st, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Round (public)
	mux.HandleFunc("GET /round", middleware.WithLogging(roundHandler.Get))
	mux.HandleFunc("POST /round/claim", middleware.WithLogging(roundHandler.Claim))

	// Round (moderator)
	mux.HandleFunc("POST /round/open", middleware.WithLogging(roundHandler.Open))
	mux.HandleFunc("POST /round/close", middleware.WithLogging(roundHandler.Close))
	mux.HandleFunc("POST /round/reset", middleware.WithLogging(roundHandler.Reset))
	mux.HandleFunc("POST /round/restart", middleware.WithLogging(roundHandler.Restart))

	// Ledger (public)
	mux.HandleFunc("POST /participants", middleware.WithLogging(scoreHandler.Register))
	mux.HandleFunc("GET /scores", middleware.WithLogging(scoreHandler.List))
	mux.HandleFunc("GET /scores/{key}", middleware.WithLogging(scoreHandler.Get))

	// Ledger (moderator)
	mux.HandleFunc("POST /scores/{key}/delta", middleware.WithLogging(scoreHandler.Delta))
	mux.HandleFunc("POST /scores/{key}/reset", middleware.WithLogging(scoreHandler.Reset))
	mux.HandleFunc("DELETE /scores/{key}", middleware.WithLogging(scoreHandler.Delete))
	mux.HandleFunc("POST /scores/reset-all", middleware.WithLogging(scoreHandler.ResetAll))
	mux.HandleFunc("DELETE /scores", middleware.WithLogging(scoreHandler.DeleteAll))

	// Live streams
	mux.HandleFunc("GET /ws/round", middleware.WithLogging(streamHandler.Round))
	mux.HandleFunc("GET /ws/scores", middleware.WithLogging(streamHandler.Board))
	mux.HandleFunc("GET /ws/scores/{key}", middleware.WithLogging(streamHandler.Entry))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("quickly-buzz API v1"))
	})

	return mux
}

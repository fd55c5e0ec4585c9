package main

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/net/netutil"

	"github.com/AIxHunter/Watch-Marker/pkg/config"
	"github.com/AIxHunter/Watch-Marker/pkg/env"
	"github.com/AIxHunter/Watch-Marker/pkg/logger"
	"github.com/AIxHunter/Watch-Marker/pkg/playback"
	"github.com/AIxHunter/Watch-Marker/pkg/server"
	"github.com/AIxHunter/Watch-Marker/pkg/tracker"
)

func main() {
	// Load environment variables for logger and config
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	// Initialize logger early so config loading can use it
	logger.Init(env.LogLevel())
	defer logger.Close()

	logger.Info("Starting Watch Marker", "version", "v0.1.0")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "err", err)
	}
	logger.SetLevel(cfg.LogLevel)

	store, err := tracker.Open(cfg.DBPath)
	if err != nil {
		logger.Fatal("Failed to open progress database", "path", cfg.DBPath, "err", err)
	}
	defer store.Close()
	logger.Info("Progress database ready", "path", cfg.DBPath)

	saver := playback.NewAutosaver(store, time.Duration(cfg.AutosaveSeconds)*time.Second)
	defer saver.Close()

	srv := server.NewServer(cfg, store, saver)
	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	addr := fmt.Sprintf(":%d", cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Fatal("Failed to listen", "addr", addr, "err", err)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	logger.Info("Listening", "url", fmt.Sprintf("http://localhost:%d/", cfg.Port))
	if err := http.Serve(ln, mux); err != nil {
		logger.Fatal("Server failed", "err", err)
	}
}

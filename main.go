package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"lookup-gateway/cache"
	"lookup-gateway/circuitbreaker"
	"lookup-gateway/collector"
	"lookup-gateway/config"
	"lookup-gateway/gateway"
	"lookup-gateway/logger"
	"lookup-gateway/metrics"
	"lookup-gateway/transport"
)

func main() {
	// Print version information
	fmt.Println(GetBuildInfo())
	fmt.Println()

	// Load configuration with .env support
	cfg, err := config.LoadConfigWithEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.DownloadDir, 0755); err != nil {
		log.Fatalf("Failed to create download dir: %v", err)
	}

	obsLogger, err := logger.NewObservabilityLogger(cfg.LogDir)
	if err != nil {
		log.Fatalf("Failed to initialize structured logger: %v", err)
	}
	defer obsLogger.Close()
	fmt.Printf("✅ Structured logging enabled in %s\n", cfg.LogDir)

	obsLogger.Info(logger.ComponentConfig, logger.CategoryRequest, "", "Lookup Gateway configuration loaded", map[string]interface{}{
		"port":            cfg.Port,
		"primary_channel": cfg.PrimaryChannel,
		"backup_channel":  cfg.BackupChannel,
		"cache_enabled":   cfg.CacheEnabled,
		"configured":      cfg.IsConfigured(),
		"version":         GetVersionInfo(),
		"git_commit":      GetGitCommit(),
	})

	if !cfg.IsConfigured() {
		log.Printf("⚠️ Transport credentials missing, queries will fail until configured")
	}

	m, err := metrics.New()
	if err != nil {
		log.Fatalf("Failed to register metrics: %v", err)
	}

	store, err := cache.New(cfg.CacheDir, cfg.CacheEnabled)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}

	breaker := circuitbreaker.NewTracker(cfg.BlockWindow)
	channel := transport.NewBotClient(cfg.BotToken)
	runner := collector.New(cfg, channel, breaker, m, obsLogger)

	// Setup HTTP routes
	handler := gateway.New(cfg, runner, store, breaker, m, obsLogger)
	mux := http.NewServeMux()
	mux.HandleFunc("/", handleRoot)
	handler.Register(mux)
	mux.Handle("/metrics", m.Handler())

	// Setup HTTP server with reasonable timeouts
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // queries can block for the full collection budget
		IdleTimeout:  60 * time.Second,
	}

	obsLogger.Info(logger.ComponentGateway, logger.CategoryRequest, "", "Lookup Gateway started", map[string]interface{}{
		"address": fmt.Sprintf("http://localhost:%s", cfg.Port),
	})

	// Start server
	if err := server.ListenAndServe(); err != nil {
		obsLogger.Error(logger.ComponentGateway, logger.CategoryError, "", "Server failed to start", map[string]interface{}{"error": err.Error()})
		log.Fatalf("Server failed to start: %v", err)
	}
}

// handleRoot provides basic information about the service
func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{
	"service": "Lookup Gateway",
	"version": "1.0.0",
	"status": "running",
	"endpoints": [
		"GET /health - Health check",
		"GET /status - Channel and cache state",
		"GET /rqh?dni= - Person lookup by DNI",
		"GET /command?cmd=&param= - Raw channel command"
	]
}`)
}

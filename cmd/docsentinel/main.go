package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/doc-sentinel/internal/artifact"
	"github.com/raaihank/doc-sentinel/internal/cache"
	"github.com/raaihank/doc-sentinel/internal/config"
	"github.com/raaihank/doc-sentinel/internal/logger"
	"github.com/raaihank/doc-sentinel/internal/mask"
	"github.com/raaihank/doc-sentinel/internal/pipeline"
	"github.com/raaihank/doc-sentinel/internal/privacy"
	"github.com/raaihank/doc-sentinel/internal/semantic"
	"github.com/raaihank/doc-sentinel/internal/server"
	"github.com/raaihank/doc-sentinel/internal/store"
	"github.com/raaihank/doc-sentinel/internal/websocket"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
		serve       = flag.Bool("serve", false, "Run the HTTP API server")
		filePath    = flag.String("file", "", "Document to process (one-shot mode)")
		fileType    = flag.String("type", "word", "Document type: word or excel")
		categories  = flag.String("categories", "[]", "JSON array of PII categories to detect")
		additional  = flag.String("additional", "[]", "JSON array of additional terms to detect")
	)
	flag.Parse()

	// Show version and exit
	if *showVersion {
		fmt.Printf("doc-sentinel %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	// Perform health check and exit
	if *healthCheck {
		performHealthCheck()
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}

	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled:  cfg.Logging.File.Enabled,
			Path:     cfg.Logging.File.Path,
			MaxSize:  cfg.Logging.File.MaxSize,
			MaxAge:   cfg.Logging.File.MaxAge,
			Compress: cfg.Logging.File.Compress,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting doc-sentinel",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
	)

	// Process-wide clients: opened here, closed at shutdown, injected into
	// the orchestrator.
	findingStore, err := store.NewStore(&cfg.Database, log.WithComponent("store"))
	if err != nil {
		log.Fatal("Failed to create findings store", zap.Error(err))
	}
	defer findingStore.Close()

	var detectionCache *cache.DetectionCache
	if cfg.Cache.Enabled {
		detectionCache, err = cache.NewDetectionCache(&cfg.Cache, log.WithComponent("cache"))
		if err != nil {
			log.Fatal("Failed to create detection cache", zap.Error(err))
		}
		defer detectionCache.Close()
	}

	contextDetector := semantic.New(
		semantic.NewOpenAIClient(cfg.OpenAI),
		semantic.NewThrottle(cfg.Detection.RequestsPerMinute, cfg.Detection.Burst),
		cfg.OpenAI.Timeout,
		log.WithComponent("semantic"),
	)

	patternDetector := privacy.New(log.WithComponent("privacy"))
	maskEngine := mask.NewEngine(cfg.Masking, log.WithComponent("mask"))

	pipe := pipeline.New(patternDetector, contextDetector, findingStore, maskEngine, log.WithComponent("pipeline"))

	if detectionCache != nil {
		pipe.WithCache(detectionCache)
	}

	if cfg.Artifact.Enabled {
		artifactStore, err := artifact.New(context.Background(), cfg.Artifact, log.WithComponent("artifact"))
		if err != nil {
			log.Fatal("Failed to create artifact store", zap.Error(err))
		}
		pipe.WithArtifacts(artifactStore)
	}

	if *serve {
		runServer(cfg, pipe, findingStore, log)
		return
	}

	runOnce(pipe, *filePath, *fileType, *categories, *additional)
}

// runOnce processes a single document and prints the output path
func runOnce(pipe *pipeline.Pipeline, filePath, fileType, categoriesJSON, additionalJSON string) {
	if filePath == "" {
		fmt.Fprintln(os.Stderr, "Either -serve or -file is required")
		os.Exit(1)
	}

	categories, err := parseStringList(categoriesJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -categories: %v\n", err)
		os.Exit(1)
	}
	additional, err := parseStringList(additionalJSON)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -additional: %v\n", err)
		os.Exit(1)
	}

	result, err := pipe.Run(context.Background(), pipeline.Request{
		FilePath:   filePath,
		FileType:   fileType,
		Categories: categories,
		Additional: additional,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Processing failed: %v\n", err)
		os.Exit(1)
	}

	if result.NothingToDo {
		fmt.Println("No PII found, nothing to mask")
		return
	}

	fmt.Println(result.OutputPath)
}

// runServer runs the HTTP API with graceful shutdown
func runServer(cfg *config.Config, pipe *pipeline.Pipeline, findingStore pipeline.FindingStore, log *logger.Logger) {
	var hub *websocket.Hub
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub(&websocket.HubConfig{
			BroadcastRuns:     cfg.WebSocket.Events.BroadcastRuns,
			BroadcastFindings: cfg.WebSocket.Events.BroadcastFindings,
			BroadcastSystem:   cfg.WebSocket.Events.BroadcastSystem,
			Username:          cfg.WebSocket.Username,
			Password:          cfg.WebSocket.Password,
		}, log.WithComponent("websocket").Logger)
		pipe.WithHub(hub)
	}

	srv := server.New(cfg, pipe, findingStore, hub, log)

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		serverErrors <- srv.Start()
	}()

	// Setup graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Give outstanding requests 30 seconds to complete
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// parseStringList decodes a JSON-encoded list flag; empty means empty list
func parseStringList(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}

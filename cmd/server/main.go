// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"gorm.io/gorm/logger"

	"github.com/artemgetmann/mindmirror/internal/archive"
	"github.com/artemgetmann/mindmirror/internal/auth"
	"github.com/artemgetmann/mindmirror/internal/config"
	"github.com/artemgetmann/mindmirror/internal/database"
	"github.com/artemgetmann/mindmirror/internal/embeddings"
	"github.com/artemgetmann/mindmirror/internal/memory"
	"github.com/artemgetmann/mindmirror/internal/server"
	"github.com/artemgetmann/mindmirror/pkg/scheduler"
)

// Version is set at build time via ldflags (e.g. goreleaser -X main.Version={{.Version}}).
var Version string

func main() {
	// CRITICAL: MCP servers must ONLY output JSON-RPC to stdout
	// Redirect all logging to stderr
	log.SetOutput(os.Stderr)

	// Define command-line flags
	httpMode := flag.Bool("http", false, "Run in HTTP server mode (default: stdio for MCP)")
	configPath := flag.String("config", "", "Path to config file")
	owner := flag.String("owner", "", "Owner id for stdio mode (default: system username)")
	dbType := flag.String("db-type", "", "Database type (sqlite or postgres)")
	dbPath := flag.String("db-path", "", "Database path (for sqlite)")
	dbDSN := flag.String("db-dsn", "", "Database DSN (for postgres)")
	port := flag.Int("port", 0, "Server port (HTTP mode only)")

	// Embedding flags
	embeddingProvider := flag.String("embedding-provider", "", "Embedding provider (openai, azure, local, mock)")
	embeddingURL := flag.String("embedding-url", "", "Embedding API base URL")
	embeddingModel := flag.String("embedding-model", "", "Embedding model name")
	embeddingKey := flag.String("embedding-key", "", "Embedding API key (alternative to env var)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "MindMirror MCP Server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Server Mode:\n")
		fmt.Fprintf(os.Stderr, "  %s                 Start MCP server (stdio) as the system user\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --owner alice   Start MCP server (stdio) as a named owner\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --http          Start HTTP server with token authentication\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  DB_TYPE            Database type (sqlite or postgres)\n")
		fmt.Fprintf(os.Stderr, "  DB_PATH            SQLite database path\n")
		fmt.Fprintf(os.Stderr, "  DB_DSN             PostgreSQL connection string\n")
		fmt.Fprintf(os.Stderr, "  PORT               Server port (HTTP mode only)\n")
		fmt.Fprintf(os.Stderr, "  ENCRYPTION_KEY     At-rest encryption key for memory text\n")
		fmt.Fprintf(os.Stderr, "  ACCESSING_USER     Owner id for stdio mode (overrides whoami)\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY     OpenAI API key (default embedding provider)\n")
	}

	flag.Parse()

	log.Println("Starting MindMirror MCP Server...")

	// Load configuration
	var cfg *config.Config
	var err error

	if *configPath != "" {
		cfg, err = config.LoadFromPath(*configPath)
		if err != nil {
			log.Printf("Warning: Failed to load config from %s: %v", *configPath, err)
			log.Println("Using defaults")
			cfg = config.DefaultConfig()
		} else {
			log.Printf("Loaded configuration from %s", *configPath)
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			log.Printf("Warning: Failed to load default config: %v", err)
			log.Println("Using built-in defaults")
			cfg = config.DefaultConfig()
		} else {
			log.Printf("Loaded configuration from ~/%s", config.DefaultConfigDir)
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Apply CLI flag overrides (highest priority)
	applyCLIOverrides(cfg, *dbType, *dbPath, *dbDSN, *port, *owner)
	applyEmbeddingCLIOverrides(cfg, *embeddingProvider, *embeddingURL, *embeddingModel, *embeddingKey)

	if *httpMode {
		cfg.Server.Mode = "http"
	}

	log.Printf("Configuration: database=%s embeddings=%s", cfg.Database.Type, cfg.Embeddings.Provider)

	// Connect to the database; migrations and indexes run here
	dbCfg := &database.Config{
		Type:        cfg.Database.Type,
		SQLitePath:  cfg.Database.SQLitePath,
		PostgresDSN: cfg.Database.PostgresDSN,
		LogLevel:    logger.Silent, // CRITICAL: Silence GORM stdout output for MCP
	}

	dbMgr, err := database.NewManager(dbCfg)
	if err != nil {
		log.Fatalf("Failed to create database manager: %v", err)
	}
	defer dbMgr.Close()

	log.Printf("Connected to database: %s", cfg.Database.Type)

	// Build the embedding client, with an in-memory cache in front
	embedder, err := embeddings.NewClient(&cfg.Embeddings)
	if err != nil {
		log.Fatalf("Failed to create embedding client: %v", err)
	}
	if cfg.Embeddings.CacheSize > 0 {
		embedder, err = embeddings.NewCachingClient(embedder, cfg.Embeddings.CacheSize)
		if err != nil {
			log.Fatalf("Failed to create embedding cache: %v", err)
		}
	}

	// Build the memory service
	svc, err := memory.NewService(dbMgr.DB(), embedder, cfg)
	if err != nil {
		log.Fatalf("Failed to create memory service: %v", err)
	}

	if cfg.Archive.Enabled {
		arc, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			log.Fatalf("Failed to open archive repository: %v", err)
		}
		svc.WithArchiver(arc)
		log.Printf("Forget archive enabled at %s", cfg.Archive.Path)
	}

	// Stdio requests carry no token, so tools fall back to the default
	// owner. Resolve it before registering tools.
	if cfg.Server.Mode != "http" {
		owner, err := auth.ResolveLocalOwner(cfg.Server.DefaultOwner)
		if err != nil {
			log.Fatalf("Failed to resolve local owner: %v", err)
		}
		user, err := auth.EnsureUser(dbMgr.DB(), owner)
		if err != nil {
			log.Fatalf("Failed to ensure user: %v", err)
		}
		cfg.Server.DefaultOwner = user.Username
		log.Printf("Serving memories for: %s (ID: %d)", user.Username, user.ID)
	}

	mcpSrv, err := server.NewMCPServer(cfg, dbMgr.DB(), svc)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}

	if cfg.Server.Mode == "http" {
		log.Println("Running in HTTP server mode")
		runHTTPMode(cfg, dbMgr, svc, mcpSrv)
	} else {
		log.Println("Running in stdio mode (MCP)")
		runStdioMode(mcpSrv)
	}
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *config.Config) {
	if dbType := getEnv("DB_TYPE", "MINDMIRROR_DB_TYPE"); dbType != "" {
		cfg.Database.Type = dbType
		log.Printf("Database type from ENV: %s", dbType)
	}

	if dbPath := getEnv("DB_PATH", "MINDMIRROR_DB_PATH"); dbPath != "" {
		cfg.Database.SQLitePath = dbPath
		log.Printf("Database path from ENV")
	}

	if dbDSN := getEnv("DB_DSN", "MINDMIRROR_DB_DSN"); dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
		log.Printf("Database DSN from ENV (hidden)")
	}

	if portStr := getEnv("PORT", "MINDMIRROR_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Server.Port = port
			log.Printf("Port from ENV: %d", port)
		}
	}

	if key := getEnv("ENCRYPTION_KEY", "MINDMIRROR_ENCRYPTION_KEY"); key != "" {
		cfg.Security.EncryptionKey = key
		log.Printf("Encryption key from ENV (hidden)")
	}
}

// applyCLIOverrides applies command-line flag overrides to configuration
func applyCLIOverrides(cfg *config.Config, dbType, dbPath, dbDSN string, port int, owner string) {
	if dbType != "" {
		cfg.Database.Type = dbType
		log.Printf("Database type from CLI: %s", dbType)
	}

	if dbPath != "" {
		cfg.Database.SQLitePath = dbPath
		log.Printf("Database path from CLI")
	}

	if dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
		log.Printf("Database DSN from CLI (hidden)")
	}

	if port > 0 {
		cfg.Server.Port = port
		log.Printf("Port from CLI: %d", port)
	}

	if owner != "" {
		cfg.Server.DefaultOwner = owner
		log.Printf("Owner from CLI: %s", owner)
	}
}

// applyEmbeddingCLIOverrides applies embedding-related CLI flag overrides
func applyEmbeddingCLIOverrides(cfg *config.Config, provider, baseURL, model, apiKey string) {
	if provider != "" {
		cfg.Embeddings.Provider = provider
		log.Printf("Embedding provider from CLI: %s", provider)
	}

	if baseURL != "" {
		cfg.Embeddings.BaseURL = baseURL
		log.Printf("Embedding URL from CLI")
	}

	if model != "" {
		cfg.Embeddings.Model = model
		log.Printf("Embedding model from CLI: %s", model)
	}

	if apiKey != "" {
		// Set the API key directly in the environment for the client
		os.Setenv(cfg.Embeddings.APIKeyEnv, apiKey)
		log.Printf("Embedding API key from CLI (hidden)")
	}
}

// getEnv tries multiple environment variable names and returns the first non-empty value
func getEnv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}

// runStdioMode runs the server over stdio for MCP clients
func runStdioMode(mcpSrv *server.MCPServer) {
	log.Println("MCP server ready (stdio mode)")
	if err := mcpserver.ServeStdio(mcpSrv.GetMCPServer()); err != nil {
		log.Fatalf("MCP server error: %v", err)
	}
}

// runHTTPMode runs the server in HTTP mode with token authentication
func runHTTPMode(cfg *config.Config, dbMgr *database.Manager, svc *memory.Service, mcpSrv *server.MCPServer) {
	httpServer := server.NewHTTPServer(mcpSrv)

	mux := http.NewServeMux()
	httpServer.RegisterRoutes(mux)

	// Start background maintenance
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(dbMgr.DB(), svc, mcpSrv.GetTokenManager(),
			cfg.Scheduler.IntervalMinutes, cfg.Scheduler.PruneAfterDays)
		sched.Start()
		defer sched.Stop()
		log.Printf("Maintenance scheduler started (interval: %d minutes)", cfg.Scheduler.IntervalMinutes)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("HTTP server starting on %s", addr)

	if cfg.Server.TLS.Enabled {
		log.Println("TLS enabled")
		if err := http.ListenAndServeTLS(addr, cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile, mux); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	} else {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}
}

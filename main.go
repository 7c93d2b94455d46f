package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/viper"

	"github.com/doxsearch/mcp-server/internal/config"
	"github.com/doxsearch/mcp-server/internal/watch"
	"github.com/doxsearch/mcp-server/tools"
)

const (
	version     = "0.3.0"
	serverName  = "doxsearch-mcp-server"
	description = "MCP server for symbol lookup in generated API documentation"
)

func main() {
	// Handle version flag
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("%s version %s\n", serverName, version)
		os.Exit(0)
	}

	// Set up logging to stderr (MCP uses stdout for protocol)
	log.SetOutput(os.Stderr)
	log.Printf("%s v%s starting...", serverName, version)

	cfg, err := config.Load(viper.New(), config.LoadOptions{})
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.ConfigFile != "" {
		log.Printf("✓ Configuration loaded from %s", cfg.ConfigFile)
	}

	server := createMCPServer()

	search := tools.NewSymbolSearch(tools.SymbolSearchConfig{
		SearchDir: cfg.SearchDir,
		IndexPath: cfg.SymbolIndexPath(),
		Manifest:  cfg.Manifest,
		Strict:    cfg.Strict,
		Limit:     cfg.Limit,
	})
	if err := tools.RegisterSymbolTools(server, search); err != nil {
		log.Fatalf("Failed to register tools: %v", err)
	}
	log.Printf("✓ Server ready and waiting for connections")

	// Set up cleanup on shutdown
	defer func() {
		if err := search.Close(); err != nil {
			log.Printf("Error closing symbol search: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Manifest != "" {
		watcher := watch.New(cfg.Manifest, cfg.WatchDebounce, search.Rebuild)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Printf("Warning: Manifest watcher stopped: %v", err)
			}
		}()
	}

	// Run server with stdio transport
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Printf("Server error: %v", err)
	}
}

// createMCPServer initializes the MCP server
func createMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version,
		},
		&mcp.ServerOptions{
			Instructions: description,
		},
	)

	log.Printf("Server initialized: %s v%s", serverName, version)
	return server
}

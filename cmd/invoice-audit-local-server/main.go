package main

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Epistemic-Technology/invoice-audit/internal/config"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/server"
)

func main() {
	// Initialize logger with default configuration
	log, err := logger.NewLogger(logger.LogConfig{})
	if err != nil {
		// Fall back to stderr if logger initialization fails
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: %v", err)
	}

	log.Info("Starting invoice-audit server")

	deps, err := server.NewDeps(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize: %v", err)
	}
	defer deps.Close()

	srv := server.CreateServer(deps, log)
	err = srv.Run(context.Background(), &mcp.StdioTransport{})
	if err != nil {
		log.Fatal("Server failed: %v", err)
	}
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Epistemic-Technology/invoice-audit/internal/config"
	"github.com/Epistemic-Technology/invoice-audit/internal/httpapi"
	"github.com/Epistemic-Technology/invoice-audit/internal/logger"
	"github.com/Epistemic-Technology/invoice-audit/server"
)

func main() {
	// stdout is free here, so log to stderr unless told otherwise
	output := os.Getenv("LOG_OUTPUT")
	if output == "" {
		output = "stderr"
	}
	log, err := logger.NewLogger(logger.LogConfig{Output: output})
	if err != nil {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: %v", err)
	}

	deps, err := server.NewDeps(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize: %v", err)
	}
	defer deps.Close()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(deps.Session, deps.Store, deps.Zotero, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("Starting invoice-audit HTTP server on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown failed: %v", err)
	}
}

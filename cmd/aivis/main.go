package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/aivis/internal/api"
	"github.com/dukerupert/aivis/internal/config"
	"github.com/dukerupert/aivis/internal/crypt"
	"github.com/dukerupert/aivis/internal/database"
	"github.com/dukerupert/aivis/internal/logging"
	"github.com/dukerupert/aivis/internal/server"
	"github.com/dukerupert/aivis/internal/store"
)

// Idle limits for in-memory state. Persisted sessions expire by SESSION_TTL.
const (
	cleanupInterval = 10 * time.Minute
	sessionMaxIdle  = 2 * time.Hour
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		fs := flag.NewFlagSet("serve", flag.ExitOnError)
		port := fs.String("port", cfg.Port, "Port to listen on")
		fs.Parse(args)
		cfg.Port = *port
		if err := runServe(cfg, logger); err != nil {
			logger.Error("serve", "error", err)
			os.Exit(1)
		}
	case "check", "ping":
		fs := flag.NewFlagSet(command, flag.ExitOnError)
		base := fs.String("api", cfg.BaseURL(), "Backend API base URL")
		fs.Parse(args)
		os.Exit(runProbe(command, *base, logger))
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		printUsage()
		os.Exit(2)
	}
}

func printUsage() {
	fmt.Println("Usage: aivis [command] [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve   Run the web front (default)")
	fmt.Println("  check   Probe the backend health endpoint and print the result as JSON")
	fmt.Println("  ping    Probe the backend root and print the result as JSON")
}

// runProbe prints one probe result and returns the exit code.
func runProbe(command, base string, logger *slog.Logger) int {
	client := api.New(base, api.WithLogger(logger))
	ctx := context.Background()

	var res api.ProbeResult
	if command == "check" {
		res = client.CheckConnection(ctx)
	} else {
		res = client.Ping(ctx)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error("encode result", "error", err)
		return 1
	}
	switch res.Status {
	case api.StatusConnected, api.StatusSuccess:
		return 0
	}
	return 1
}

func runServe(cfg *config.Config, logger *slog.Logger) error {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	salt, err := store.TokenSalt(db)
	if err != nil {
		return fmt.Errorf("token salt: %w", err)
	}
	secret := cfg.SessionSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		logger.Warn("SESSION_SECRET not set; stored sign-ins will not survive a restart")
	}
	sealer, err := crypt.NewSealer(secret, salt)
	if err != nil {
		return fmt.Errorf("token sealer: %w", err)
	}

	srv, err := server.New(cfg, db, sealer, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Quick scans and the success page wait on the backend.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					slog.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					slog.Info("cleaned up expired sessions", "count", n)
				}
				if dropped := srv.Release(sessionMaxIdle); dropped > 0 {
					slog.Debug("released idle sessions", "count", dropped)
				}
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("aivis web front starting", "addr", httpServer.Addr, "api", cfg.BaseURL())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

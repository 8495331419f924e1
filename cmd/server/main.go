package main

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"

	"aethermeet/auth"
	"aethermeet/domain"
	"aethermeet/infrastructure/ws"
	"aethermeet/internal"
	"aethermeet/repositories"
	"aethermeet/runtime"
	"aethermeet/runtime/workers"
	"aethermeet/services"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// The pattern keeps 'defer' statements (like database cleanup) running before the program exits
// and decouples the initialization logic from the main entry point.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		debugPort := 8081
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", debugPort, endpoint))
		database.StartDebugServer(db, debugPort, endpoint, RoomMapper)
	}

	// 3. Supervision & Orchestration
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	registry := runtime.NewRegistry()
	roomRepository := repositories.NewRoomRepository(db)
	messageRepository := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	credentialStore := repositories.NewCredentialStore(db)

	orchestrator := runtime.NewOrchestrator(
		logger, sup, registry,
		roomRepository, messageRepository,
		runtime.Options{
			BufferSize:      config.BufferSize,
			RoomQueueSize:   config.RoomQueueSize,
			RoomCapacity:    config.RoomCapacity,
			SinkTimeout:     config.SinkTimeout,
			SweepInterval:   config.SweepInterval,
			MetricInterval:  config.MetricInterval,
			CharReplacement: charReplacement,
		},
	)

	tokens := auth.NewTokenManager(config.AuthTokenSecret, config.AuthTokenDuration)
	credentialService := services.NewCredentialService(credentialStore, tokens)
	orchestrator.Add(services.NewCredentialJanitor(credentialService, logger))
	roomService := services.NewRoomService(orchestrator, credentialService)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Start the Engine (Actors, Fanout, Sweeper)
	if err := orchestrator.Start(ctx); err != nil {
		return exitRuntime, fmt.Errorf("orchestrator error: %w", err)
	}

	// 6. HTTP & Websocket surface
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	wsServer := ws.NewServer(logger, roomService, credentialService, config.ConnectionBufferSize)
	httpServer := &http.Server{Addr: address, Handler: wsServer.Routes()}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !goerrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// RoomMapper renders room snapshots in the Badger debug inspector.
func RoomMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	if !strings.HasPrefix(key, "room:") {
		return row
	}

	var snapshot domain.RoomSnapshot
	if err := json.Unmarshal(val, &snapshot); err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}

	row.Type = "ROOM"
	members := make([]string, 0, len(snapshot.Members))
	for _, m := range snapshot.Members {
		members = append(members, m.Username)
	}
	row.Detail = fmt.Sprintf("owner=%s policy=%s active=%t members=[%s]",
		snapshot.Owner, snapshot.Policy, snapshot.Active, strings.Join(members, ","))
	return row
}

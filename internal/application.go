package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rocketscienceinc/tictactoe-engine/internal/config"
	"github.com/rocketscienceinc/tictactoe-engine/internal/repository"
	"github.com/rocketscienceinc/tictactoe-engine/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-engine/internal/telemetry"
	"github.com/rocketscienceinc/tictactoe-engine/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-engine/transport/console"
	"github.com/rocketscienceinc/tictactoe-engine/transport/rest"
	"github.com/rocketscienceinc/tictactoe-engine/transport/websocket"
)

const shutdownTimeout = 5 * time.Second

// RunApp - runs the application until a signal arrives or the selected front end stops.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(conf.Tracing.Enabled, os.Stderr)
	if err != nil {
		return fmt.Errorf("could not init telemetry: %w", err)
	}

	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Error("could not shutdown telemetry", "error", err)
		}
	}()

	gameRepo, closeRepo, err := newGameRepository(ctx, conf)
	if err != nil {
		return err
	}
	defer closeRepo()

	games := usecase.NewGameUseCase(logger, gameRepo)

	if conf.Mode == config.ModeConsole {
		return console.New(logger, games, os.Stdin, os.Stdout, conf.Console.OneBased).Run(ctx)
	}

	return runServer(ctx, logger, conf, games)
}

func runServer(ctx context.Context, logger *slog.Logger, conf *config.Config, games usecase.GameUseCase) error {
	log := logger.With("component", "app")

	wsServer := websocket.New(logger, games)
	router := rest.NewRouter(logger, games, wsServer)
	httpServer := rest.New(logger, conf.HTTPPort, router)

	httpErrCh := make(chan error, 1)
	go func() {
		httpErrCh <- httpServer.Start()
	}()

	select {
	case err := <-httpErrCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("Received signal, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	wsServer.Close()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	return nil
}

func newGameRepository(ctx context.Context, conf *config.Config) (repository.GameRepository, func(), error) {
	if conf.Storage.Driver == config.DriverMemory {
		return repository.NewMemoryGameRepository(conf.Session.TTL), func() {}, nil
	}

	redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr())
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
	}

	closeFn := func() {
		_ = redisStorage.Close()
	}

	return repository.NewGameRepository(redisStorage.Connection, conf.Session.TTL), closeFn, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/greymass/account-creation-portal/internal/config"
	"github.com/greymass/account-creation-portal/server"
	"github.com/greymass/account-creation-portal/server/authflowrepo"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env file")
	}

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("config.Load: %w", err)
	}
	logger := newLogger(c)

	if c.IsDev() {
		displayAppname(c.GetAppName())
	}

	flowStates, closeFlowStates, err := newFlowStateRepo(c, logger)
	if err != nil {
		return err
	}
	defer closeFlowStates()

	handler, err := server.NewFromConfig(c, flowStates, logger)
	if err != nil {
		return fmt.Errorf("server.NewFromConfig: %w", err)
	}

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(srv, logger) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func newLogger(c *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if c.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	logger = logger.Level(level).With().Timestamp().Str("app", c.GetAppName()).Logger()
	log.Logger = logger
	return logger
}

// newFlowStateRepo picks Redis when REDIS_URL is set so that several
// instances can share sign-in state.
func newFlowStateRepo(c *config.Config, logger zerolog.Logger) (authflowrepo.Repo, func(), error) {
	if c.Redis.URL == "" {
		return authflowrepo.NewInMemoryRepo(authflowrepo.DefaultTTL), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	repo, err := authflowrepo.NewRedisRepoFromURL(ctx, c.Redis.URL, authflowrepo.DefaultTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("flow state store: %w", err)
	}
	logger.Info().Msg("flow state stored in redis")
	return repo, func() { _ = repo.Close() }, nil
}

func listenAndServe(server *http.Server, logger zerolog.Logger) error {
	logger.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

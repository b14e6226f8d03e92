package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/spellclash/spellclash-go/internal/config"
	"github.com/spellclash/spellclash-go/internal/practice"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	addr       = flag.String("addr", "", "listen address (overrides practice.address)")
	seed       = flag.Int64("seed", 0, "random seed for decks and AI choices (0 picks one)")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	address := cfg.Practice.Address
	if *addr != "" {
		address = *addr
	}
	s := *seed
	if s == 0 {
		s = time.Now().UnixNano()
	}

	logger.Info("starting practice server",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.String("address", address),
		zap.Int64("seed", s),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := practice.NewServer(practice.Options{
		Rules:  cfg.Rules,
		Rand:   rand.New(rand.NewSource(s)),
		Logger: logger,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, address)
	})

	if err := g.Wait(); err != nil {
		logger.Error("practice server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("practice server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

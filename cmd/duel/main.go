package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/spellclash/spellclash-go/internal/config"
	"github.com/spellclash/spellclash-go/internal/present"
	"github.com/spellclash/spellclash-go/internal/replay"
	"github.com/spellclash/spellclash-go/internal/session"
	"github.com/spellclash/spellclash-go/internal/state"
	"github.com/spellclash/spellclash-go/internal/turn"
)

var (
	configPath  = flag.String("config", "config/config.yaml", "path to configuration file")
	modeFlag    = flag.String("mode", "offline", "session mode: offline, ai or room")
	animation   = flag.Duration("animation", 400*time.Millisecond, "duration of a card animation")
	showBoard   = flag.Bool("board", true, "print the board after every change")
	replayID    = flag.String("replay", "", "step through a saved journal (session id or \"latest\") and exit")
	watchConfig = flag.Bool("watch", true, "reload the log level when the config file changes")
	version     = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, level, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	console := present.NewConsole(os.Stdout, *showBoard, logger.Named("console"))

	if *replayID != "" {
		r, err := openReplay(cfg.Journal.Directory, *replayID, logger)
		if err != nil {
			logger.Error("failed to open journal", zap.Error(err))
			os.Exit(1)
		}
		viewReplay(r, console, os.Stdin, os.Stdout)
		return
	}

	mode, err := state.ParseMode(*modeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	logger.Info("starting duel client",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.Stringer("mode", mode),
	)

	if *watchConfig {
		err := config.Watch(*configPath, func(next *config.Config) {
			level.SetLevel(parseLevel(next.Logging.Level))
			logger.Info("configuration reloaded", zap.String("log_level", next.Logging.Level))
		}, func(err error) {
			logger.Warn("ignoring invalid configuration change", zap.Error(err))
		})
		if err != nil {
			logger.Warn("config hot reload disabled", zap.Error(err))
		}
	}

	animator := present.NewAnimator(*animation, logger.Named("animator"))
	deps := session.Deps{
		Config:   cfg,
		Animator: animator,
		Waiter:   animator,
		Rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
		Logger:   logger,
	}
	var journal *replay.Journal
	if cfg.Journal.Enabled {
		journal = replay.NewJournal(cfg.Journal.Directory, logger.Named("journal"))
		deps.Journal = journal
	}

	controller := session.New(deps)
	controller.Bus().Subscribe(console.Handle)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return controller.Run(ctx)
	})
	g.Go(func() error {
		defer stop()
		if err := controller.Start(ctx, mode); err != nil {
			logger.Warn("failed to start session", zap.Error(err))
		}
		return commandLoop(ctx, controller, console, os.Stdin)
	})

	err = g.Wait()
	if journal != nil {
		if cerr := journal.Close(); cerr != nil {
			logger.Error("failed to close journal", zap.Error(cerr))
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("duel client stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("duel client stopped")
}

const help = `commands:
  play <n|card-id>     play the n-th card of your hand
  end                  end your turn
  start <mode>         restart as offline, ai or room
  create <name>        create a room
  join <room> <name>   join a room
  leave                leave the room
  state                print the board
  quit                 exit
`

// commandLoop reads commands until quit, EOF or ctx is done
func commandLoop(ctx context.Context, c *session.Controller, console *present.Console, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Print(help)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := execute(ctx, c, console, strings.Fields(line))
			if err != nil {
				var rejected *turn.Rejection
				if !errors.As(err, &rejected) {
					fmt.Printf("error: %v\n", err)
				}
			}
			if quit {
				return nil
			}
		}
	}
}

func execute(ctx context.Context, c *session.Controller, console *present.Console, args []string) (bool, error) {
	if len(args) == 0 {
		return false, nil
	}
	switch args[0] {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Print(help)
		return false, nil
	case "state":
		s, err := c.Snapshot(ctx)
		if err != nil {
			return false, err
		}
		console.Board(s)
		return false, nil
	case "end":
		return false, c.EndTurn(ctx)
	case "play":
		if len(args) < 2 {
			return false, errors.New("usage: play <n|card-id>")
		}
		id, err := resolveCard(ctx, c, args[1])
		if err != nil {
			return false, err
		}
		return false, c.PlayCard(ctx, id, id)
	case "start":
		if len(args) < 2 {
			return false, errors.New("usage: start <offline|ai|room>")
		}
		mode, err := state.ParseMode(args[1])
		if err != nil {
			return false, err
		}
		return false, c.Start(ctx, mode)
	case "create":
		return false, c.CreateRoom(ctx, strings.Join(args[1:], " "))
	case "join":
		if len(args) < 2 {
			return false, errors.New("usage: join <room> <name>")
		}
		return false, c.JoinRoom(ctx, args[1], strings.Join(args[2:], " "))
	case "leave":
		return false, c.LeaveRoom(ctx)
	default:
		return false, fmt.Errorf("unknown command %q, try help", args[0])
	}
}

// resolveCard accepts a 1-based hand position or a card id
func resolveCard(ctx context.Context, c *session.Controller, arg string) (string, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return arg, nil
	}
	s, err := c.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	if n < 1 || n > len(s.PlayerHand) {
		return "", fmt.Errorf("no card at position %d, hand has %d", n, len(s.PlayerHand))
	}
	return s.PlayerHand[n-1].ID, nil
}

func openReplay(dir, id string, logger *zap.Logger) (*replay.Replay, error) {
	j := replay.NewJournal(dir, logger.Named("journal"))
	if id == "latest" {
		return j.Latest()
	}
	return j.Load(id)
}

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// initLogger initializes the zap logger based on configuration
// The returned level can be changed while the logger is in use
func initLogger(cfg config.LoggingConfig) (*zap.Logger, zap.AtomicLevel, error) {
	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	logger, err := zapCfg.Build()
	return logger, zapCfg.Level, err
}

// Package cmd runs a bot process: it loads configuration, bootstraps the
// application and supervises the bot together with its background services.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	coreconfig "github.com/m3rciful/gatebot/core/config"
	"github.com/m3rciful/gatebot/core/logger"
	coretelegram "github.com/m3rciful/gatebot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// BackgroundApp is implemented by apps that run services next to the bot.
// Each service must return once ctx is done.
type BackgroundApp interface {
	Background() []func(ctx context.Context) error
}

// RestartableApp is implemented by apps that can ask for a restart. The run
// ends cleanly when the channel is closed or receives.
type RestartableApp interface {
	RestartRequested() <-chan struct{}
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	// ConfigPath wins over ConfigEnvVar and DefaultConfigPath.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

var errRestart = errors.New("restart requested")

// ResolveConfigPath picks the config path from opts and the environment.
// An empty result means configuration comes from the environment only.
func ResolveConfigPath(opts Options) string {
	if opts.ConfigPath != "" {
		return opts.ConfigPath
	}
	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p
	}
	return opts.DefaultConfigPath
}

// LoadConfig resolves the config path and loads it with opts.LoadConfig.
// A missing default file falls back to environment-only configuration; an
// explicit path must exist.
func LoadConfig(opts Options) (ConfigCarrier, error) {
	if opts.LoadConfig == nil {
		return nil, fmt.Errorf("cmd: LoadConfig is required")
	}
	cfgPath := ResolveConfigPath(opts)
	if cfgPath != "" {
		if _, err := os.Stat(cfgPath); err != nil {
			if !errors.Is(err, os.ErrNotExist) || opts.ConfigPath != "" {
				return nil, fmt.Errorf("cmd: config file: %w", err)
			}
			cfgPath = ""
		}
	}
	log.Printf("loading config: %q", cfgPath)
	cfg, err := opts.LoadConfig(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return nil, fmt.Errorf("cmd: loaded config is missing core configuration")
	}
	return cfg, nil
}

// Run loads configuration, bootstraps the app and runs the bot and the
// app's background services until a signal, a restart request or the first
// failure. A restart request ends the run without error so a supervisor can
// start the process again.
func Run(ctx context.Context, opts Options) error {
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}
	cfg, err := LoadConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.Duration("startup_duration", logger.Took(startedAt)),
		)
		return nil
	}

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return run(gctx, runOpts) })
	if bg, ok := application.(BackgroundApp); ok {
		for _, svc := range bg.Background() {
			svc := svc
			g.Go(func() error { return svc(gctx) })
		}
	}
	if ra, ok := application.(RestartableApp); ok {
		restart := ra.RestartRequested()
		g.Go(func() error {
			select {
			case <-restart:
				return errRestart
			case <-gctx.Done():
				return nil
			}
		})
	}

	err = g.Wait()
	switch {
	case errors.Is(err, errRestart):
		logger.Warn(ctx, "app", "shutdown", slog.String("cause", "restart"))
		return nil
	case err != nil && !errors.Is(err, context.Canceled):
		logger.Error(ctx, "app", "shutdown", slog.String("err", err.Error()))
		return err
	}
	logger.Info(ctx, "app", "shutdown", slog.String("cause", "signal"))
	return nil
}

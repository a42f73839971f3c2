package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/seedfund-backend/pkg/config"
	"github.com/angelmondragon/seedfund-backend/pkg/instance"
	"github.com/angelmondragon/seedfund-backend/pkg/logger"
)

// Runtime is the process-level state each long-running binary starts with.
type Runtime struct {
	Config *config.Config
	Logger *logger.Logger
	stop   context.CancelFunc
}

// MustBoot loads .env and the environment config, builds the logger for kind
// and returns a context cancelled on SIGINT or SIGTERM. A config error ends
// the process.
func MustBoot(kind string) (context.Context, *Runtime) {
	boot := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		boot.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = kind

	rt := &Runtime{Config: cfg, Logger: NewLogger(cfg, kind)}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	rt.stop = stop
	return rt.Logger.WithFields(ctx, runtimeFields(cfg)), rt
}

// NewLogger applies the configured level, warn stacks and log file.
func NewLogger(cfg *config.Config, kind string) *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: kind,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		FilePath:    cfg.App.LogFile,
	})
}

func runtimeFields(cfg *config.Config) map[string]any {
	return map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	}
}

// Fatal logs err and exits.
func (r *Runtime) Fatal(ctx context.Context, msg string, err error) {
	r.Logger.Error(ctx, msg, err)
	r.Stop()
	os.Exit(1)
}

// Stop releases the signal handler.
func (r *Runtime) Stop() {
	if r.stop != nil {
		r.stop()
	}
}

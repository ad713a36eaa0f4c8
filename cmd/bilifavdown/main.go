// Command bilifavdown downloads an account's favorites collections:
// it walks each collection, fetches the best standard and HDR variants
// of every video part, muxes the separate tracks with ffmpeg, and
// records completed work so re-runs skip it. Scheduling is left to an
// external caller (cron, systemd timer) invoking one run at a time.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kevinlinvk/bilifavdown/client"
)

func main() {
	configPath := flag.String("config", "config/config.json", "path to the JSON config file")
	flag.Parse()

	_ = godotenv.Load() // .env overrides, e.g. BILIFAVDOWN_COOKIES

	logger := newLogger().Sugar().With("run_id", uuid.NewString())
	defer logger.Sync()

	if env := os.Getenv("BILIFAVDOWN_CONFIG"); env != "" && !flagPassed("config") {
		*configPath = env
	}

	cfg, err := client.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	c, err := client.New(cfg, client.Options{Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("starting favorites download run")
	if err := c.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warnf("run interrupted")
			return
		}
		logger.Errorf("run failed: %v", err)
		os.Exit(1)
	}
	logger.Infof("run complete")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}

func flagPassed(name string) bool {
	passed := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			passed = true
		}
	})
	return passed
}

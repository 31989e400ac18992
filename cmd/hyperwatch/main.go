// Command hyperwatch launches the position watcher runtime.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sourcegraph/conc"

	"github.com/coachpo/hyperwatch/internal/command"
	"github.com/coachpo/hyperwatch/internal/config"
	"github.com/coachpo/hyperwatch/internal/hyperliquid"
	"github.com/coachpo/hyperwatch/internal/leaderboard"
	"github.com/coachpo/hyperwatch/internal/notify"
	"github.com/coachpo/hyperwatch/internal/notify/telegram"
	"github.com/coachpo/hyperwatch/internal/observability"
	"github.com/coachpo/hyperwatch/internal/scheduler"
	"github.com/coachpo/hyperwatch/internal/schema"
	"github.com/coachpo/hyperwatch/internal/telemetry"
)

const (
	defaultConfigPath        = "config/app.yaml"
	watcherLoggerPrefix      = "hyperwatch "
	shutdownTimeout          = 15 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	cfgPath := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := newWatcherLogger()

	appCfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	observability.SetLogger(observability.NewStdLogger(logger, appCfg.Debug))
	logger.Printf("configuration loaded: timeframe=%s, limit=%d",
		appCfg.Selection.Timeframe, appCfg.Selection.Limit)

	store, err := config.NewStore(appCfg)
	if err != nil {
		logger.Fatalf("initialise settings store: %v", err)
	}

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Endpoint:    appCfg.Telemetry.OTLPEndpoint,
		ServiceName: appCfg.Telemetry.ServiceName,
		Insecure:    appCfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}
	metrics, err := telemetry.NewMetrics()
	if err != nil {
		logger.Fatalf("register metrics: %v", err)
	}

	client := hyperliquid.NewClient(appCfg.Exchange.InfoURL, appCfg.Exchange.StatsURL,
		appCfg.Exchange.HTTPTimeout.Value())
	bot := telegram.NewBot(appCfg.Telegram.Token, appCfg.Telegram.ChatID,
		appCfg.Exchange.HTTPTimeout.Value())

	announce(ctx, bot, logger, "🔄 loading datasets from Hyperliquid...")

	traders, err := selectInitialTraders(ctx, client, store, logger)
	if err != nil {
		logger.Fatalf("select traders: %v", err)
	}
	logger.Printf("tracking %d traders", len(traders))

	dispatcher := notify.NewDispatcher(bot, appCfg.Notify.QueueSize).WithMetrics(metrics)
	runner := scheduler.New(client, dispatcher, traders, scheduler.Config{
		PollInterval: appCfg.Scheduler.PollInterval.Value(),
		TraderDelay:  appCfg.Scheduler.TraderDelay.Value(),
	}).WithMetrics(metrics)

	if err := runner.Bootstrap(ctx); err != nil {
		logger.Fatalf("bootstrap traders: %v", err)
	}

	controller := command.NewController(bot, appCfg.Telegram.ChatID, store, runner, client)

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() {
		if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("scheduler stopped: %v", err)
		}
	})
	lifecycle.Go(func() {
		if err := dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("dispatcher stopped: %v", err)
		}
	})
	lifecycle.Go(func() {
		if err := controller.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Printf("command controller stopped: %v", err)
		}
	})

	announce(ctx, bot, logger, "🤖 Bot ready! send /help to see available commands")
	logger.Print("watcher started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownStart := time.Now()
	cancel()

	waitDone := make(chan struct{})
	go func() {
		defer close(waitDone)
		lifecycle.Wait()
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		logger.Print("lifecycle shutdown timed out")
	}

	telemetryCtx, telemetryCancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer telemetryCancel()
	if err := telemetryShutdown(telemetryCtx); err != nil {
		logger.Printf("telemetry shutdown: %v", err)
	}

	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
}

func parseFlags() string {
	cfgPath := flag.String("config", defaultConfigPath,
		fmt.Sprintf("Path to application configuration file (default: %s)", defaultConfigPath))
	flag.Parse()
	return *cfgPath
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newWatcherLogger() *log.Logger {
	return log.New(os.Stdout, watcherLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
}

// selectInitialTraders fetches the leaderboard, retrying with exponential
// backoff, and applies the configured selection thresholds.
func selectInitialTraders(ctx context.Context, client *hyperliquid.Client, store *config.Store, logger *log.Logger) ([]*schema.Trader, error) {
	backoffCfg := backoff.NewExponentialBackOff()
	var rows []schema.LeaderboardRow
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		rows, err = client.Leaderboard(ctx)
		if err == nil {
			break
		}
		sleep := backoffCfg.NextBackOff()
		logger.Printf("leaderboard fetch failed, retrying in %v: %v", sleep, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}

	selection := store.Snapshot()
	traders := leaderboard.Select(rows, leaderboard.Criteria{
		Timeframe: selection.Timeframe,
		MinPnl:    selection.MinPnl,
		MinRoi:    selection.MinRoi,
		Limit:     selection.Limit,
	})
	return traders, nil
}

func announce(ctx context.Context, bot *telegram.Bot, logger *log.Logger, text string) {
	if _, err := bot.Send(ctx, text, 0); err != nil {
		logger.Printf("announce: %v", err)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uhyunpark/lobsim/params"
	"github.com/uhyunpark/lobsim/pkg/sim/analytics"
	"github.com/uhyunpark/lobsim/pkg/sim/backtest"
	"github.com/uhyunpark/lobsim/pkg/sim/feed"
	"github.com/uhyunpark/lobsim/pkg/storage"
	"github.com/uhyunpark/lobsim/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("") // "" means load from .env in current directory

	// Setup logging (write to both console and file)
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "data/backtest.log"
	}

	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	feedPath := os.Getenv("FEED_CSV")
	if feedPath == "" {
		feedPath = "data/candles.csv"
	}
	f, err := feed.LoadCSV(feedPath, sugar)
	if err != nil {
		sugar.Fatalw("feed_load_failed", "file", feedPath, "err", err)
	}

	sugar.Infow("backtest_starting",
		"candles", f.Len(),
		"seed", cfg.RandomSeed,
		"latency_ms", cfg.Engine.LatencyMs,
		"slippage_bps", cfg.Engine.SlippageBps,
		"arrival_lambda", cfg.Flow.ArrivalRateLambda,
		"drawdown_halt", cfg.Strategy.DrawdownHalt)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	runner := backtest.NewRunner(cfg, sugar)
	res, err := runner.Run(ctx, f)
	if err != nil {
		sugar.Warnw("run_interrupted", "err", err, "ticks_completed", len(res.Snapshots))
	}
	sugar.Infow("run_finished", "elapsed", time.Since(started).String())

	rep := analytics.Analyze(res, cfg.Analytics)
	printReport(rep, res)

	// Optional: persist the raw run history for external tooling.
	if dbPath := os.Getenv("RESULTS_DB"); dbPath != "" {
		if err := persist(dbPath, cfg, res, started); err != nil {
			sugar.Errorw("persist_failed", "path", dbPath, "err", err)
		} else {
			sugar.Infow("run_persisted", "path", dbPath)
		}
	}
}

func persist(dbPath string, cfg params.Config, res *backtest.Result, started time.Time) error {
	store, err := storage.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sum := storage.RunSummary{
		ID:          started.UTC().Format("20060102T150405.000"),
		StartedAt:   started.UnixMilli(),
		Ticks:       len(res.Snapshots),
		Trades:      len(res.Trades),
		SkippedRows: res.SkippedRows,
		FinalState:  res.FinalState.String(),
		Seed:        cfg.RandomSeed,
	}
	return store.SaveRun(sum, res)
}

func printReport(rep analytics.Report, res *backtest.Result) {
	fmt.Println("---- backtest report ----")
	fmt.Printf("ticks            %d (skipped %d)\n", rep.Ticks, res.SkippedRows)
	fmt.Printf("trades           %d (%d lots, slippage %d ticks)\n",
		res.EngineStats.Trades, res.EngineStats.VolumeLots, res.EngineStats.SlippageTicks)
	fmt.Printf("final state      %s\n", res.FinalState)
	fmt.Printf("total return     %.4f%%\n", rep.TotalReturn*100)
	fmt.Printf("sharpe           %.4f\n", rep.Sharpe)
	fmt.Printf("sortino          %.4f\n", rep.Sortino)
	fmt.Printf("VaR              %.6f\n", rep.VaR)
	fmt.Printf("max drawdown     %.4f%%\n", rep.MaxDrawdown*100)
	fmt.Printf("round trips      %d (%d wins / %d losses, win rate %.2f%%)\n",
		rep.RoundTrips, rep.Wins, rep.Losses, rep.WinRate*100)
	if math.IsInf(rep.ProfitFactor, 1) {
		fmt.Println("profit factor    inf (no losing trades)")
	} else {
		fmt.Printf("profit factor    %.4f\n", rep.ProfitFactor)
	}
}

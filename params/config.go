package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Engine controls the realism layer of the matching engine.
type Engine struct {
	// LatencyMs is added to every order's submission time before it becomes
	// effective for matching. Near-simultaneous orders reorder against each
	// other on the delayed timestamp.
	LatencyMs int64
	// SlippageBps worsens the taker-reported price of market-type fills.
	SlippageBps int64
}

// Flow parameterizes the synthetic background order flow.
type Flow struct {
	// ArrivalRateLambda is the Poisson rate in orders per second.
	ArrivalRateLambda float64
	// SeedLevels and SeedQtyLots describe the liquidity ladder placed on both
	// sides of the book before the first tick.
	SeedLevels  int
	SeedQtyLots int64
	// Arrival sizes are log-normal around BaseSizeLots, clipped to
	// [MinSizeLots, MaxSizeLots].
	BaseSizeLots int64
	MinSizeLots  int64
	MaxSizeLots  int64
}

// Strategy parameterizes the market maker.
type Strategy struct {
	QuoteSpreadBps      int64
	OrderSizeLots       int64
	MaxInventoryLots    int64
	InventorySkewFactor float64
	// DrawdownHalt is the drawdown fraction at which the strategy halts.
	DrawdownHalt float64
	// HaltRecovery < 0 means "never resume within a run" (conservative
	// default). Otherwise the strategy resumes once drawdown drops strictly
	// below this fraction.
	HaltRecovery float64
}

// Analytics parameterizes the post-run statistics.
type Analytics struct {
	// AnnualizationFactor is the number of return periods per year.
	AnnualizationFactor float64
	// VarPercentile is the loss percentile for Value-at-Risk, e.g. 0.05.
	VarPercentile float64
}

type Config struct {
	// PriceScale is the number of decimal places one price tick represents
	// (price in quote units = ticks / 10^PriceScale). QtyScale likewise for
	// lots.
	PriceScale int32
	QtyScale   int32

	// TickIntervalMs is the simulated wall time between feed ticks, used for
	// Poisson arrival sampling and latency accounting.
	TickIntervalMs int64

	InitialCash float64
	RandomSeed  int64

	Engine    Engine
	Flow      Flow
	Strategy  Strategy
	Analytics Analytics
}

func Default() Config {
	return Config{
		PriceScale:     2, // ticks of $0.01
		QtyScale:       4, // lots of 0.0001 units
		TickIntervalMs: 100,
		InitialCash:    100_000,
		RandomSeed:     42,
		Engine: Engine{
			LatencyMs:   1,
			SlippageBps: 2,
		},
		Flow: Flow{
			ArrivalRateLambda: 1.0,
			SeedLevels:        10,
			SeedQtyLots:       10_000, // 1.0 unit per level
			BaseSizeLots:      1_000,  // 0.1
			MinSizeLots:       100,    // 0.01
			MaxSizeLots:       50_000, // 5.0
		},
		Strategy: Strategy{
			QuoteSpreadBps:      10,
			OrderSizeLots:       1_000, // 0.1
			MaxInventoryLots:    50_000,
			InventorySkewFactor: 0.5,
			DrawdownHalt:        0.10,
			HaltRecovery:        -1, // never resume
		},
		Analytics: Analytics{
			AnnualizationFactor: 252,
			VarPercentile:       0.05,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Engine.LatencyMs = envInt64("LOBSIM_LATENCY_MS", cfg.Engine.LatencyMs)
	cfg.Engine.SlippageBps = envInt64("LOBSIM_SLIPPAGE_BPS", cfg.Engine.SlippageBps)
	cfg.Flow.ArrivalRateLambda = envFloat("LOBSIM_ARRIVAL_LAMBDA", cfg.Flow.ArrivalRateLambda)
	cfg.Flow.SeedLevels = int(envInt64("LOBSIM_SEED_LEVELS", int64(cfg.Flow.SeedLevels)))
	cfg.Flow.SeedQtyLots = envInt64("LOBSIM_SEED_QTY_LOTS", cfg.Flow.SeedQtyLots)
	cfg.Strategy.QuoteSpreadBps = envInt64("LOBSIM_QUOTE_SPREAD_BPS", cfg.Strategy.QuoteSpreadBps)
	cfg.Strategy.OrderSizeLots = envInt64("LOBSIM_ORDER_SIZE_LOTS", cfg.Strategy.OrderSizeLots)
	cfg.Strategy.MaxInventoryLots = envInt64("LOBSIM_MAX_INVENTORY_LOTS", cfg.Strategy.MaxInventoryLots)
	cfg.Strategy.InventorySkewFactor = envFloat("LOBSIM_SKEW_FACTOR", cfg.Strategy.InventorySkewFactor)
	cfg.Strategy.DrawdownHalt = envFloat("LOBSIM_DRAWDOWN_HALT", cfg.Strategy.DrawdownHalt)
	cfg.Analytics.AnnualizationFactor = envFloat("LOBSIM_ANNUALIZATION", cfg.Analytics.AnnualizationFactor)
	cfg.Analytics.VarPercentile = envFloat("LOBSIM_VAR_PERCENTILE", cfg.Analytics.VarPercentile)
	cfg.TickIntervalMs = envInt64("LOBSIM_TICK_INTERVAL_MS", cfg.TickIntervalMs)
	cfg.InitialCash = envFloat("LOBSIM_INITIAL_CASH", cfg.InitialCash)
	cfg.RandomSeed = envInt64("LOBSIM_RANDOM_SEED", cfg.RandomSeed)

	// "never" is accepted as an explicit spelling of the conservative default.
	if v := os.Getenv("LOBSIM_HALT_RECOVERY"); v != "" {
		if v == "never" {
			cfg.Strategy.HaltRecovery = -1
		} else if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Strategy.HaltRecovery = f
		}
	}

	return cfg
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

package params

import "testing"

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.PriceScale != 2 || cfg.QtyScale != 4 {
		t.Errorf("scales = %d/%d, want 2/4", cfg.PriceScale, cfg.QtyScale)
	}
	if cfg.Strategy.HaltRecovery >= 0 {
		t.Error("default halt recovery should be never (< 0)")
	}
	if cfg.Flow.MinSizeLots > cfg.Flow.BaseSizeLots || cfg.Flow.BaseSizeLots > cfg.Flow.MaxSizeLots {
		t.Errorf("size bounds out of order: %d/%d/%d",
			cfg.Flow.MinSizeLots, cfg.Flow.BaseSizeLots, cfg.Flow.MaxSizeLots)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOBSIM_LATENCY_MS", "25")
	t.Setenv("LOBSIM_SLIPPAGE_BPS", "7")
	t.Setenv("LOBSIM_ARRIVAL_LAMBDA", "3.5")
	t.Setenv("LOBSIM_DRAWDOWN_HALT", "0.2")
	t.Setenv("LOBSIM_RANDOM_SEED", "1234")

	cfg := LoadFromEnv("")
	if cfg.Engine.LatencyMs != 25 {
		t.Errorf("latency = %d, want 25", cfg.Engine.LatencyMs)
	}
	if cfg.Engine.SlippageBps != 7 {
		t.Errorf("slippage = %d, want 7", cfg.Engine.SlippageBps)
	}
	if cfg.Flow.ArrivalRateLambda != 3.5 {
		t.Errorf("lambda = %v, want 3.5", cfg.Flow.ArrivalRateLambda)
	}
	if cfg.Strategy.DrawdownHalt != 0.2 {
		t.Errorf("drawdown halt = %v, want 0.2", cfg.Strategy.DrawdownHalt)
	}
	if cfg.RandomSeed != 1234 {
		t.Errorf("seed = %d, want 1234", cfg.RandomSeed)
	}
}

func TestHaltRecoveryEnv(t *testing.T) {
	t.Run("numeric", func(t *testing.T) {
		t.Setenv("LOBSIM_HALT_RECOVERY", "0.05")
		cfg := LoadFromEnv("")
		if cfg.Strategy.HaltRecovery != 0.05 {
			t.Errorf("halt recovery = %v, want 0.05", cfg.Strategy.HaltRecovery)
		}
	})
	t.Run("never", func(t *testing.T) {
		t.Setenv("LOBSIM_HALT_RECOVERY", "never")
		cfg := LoadFromEnv("")
		if cfg.Strategy.HaltRecovery >= 0 {
			t.Errorf("halt recovery = %v, want < 0", cfg.Strategy.HaltRecovery)
		}
	})
	t.Run("garbage keeps default", func(t *testing.T) {
		t.Setenv("LOBSIM_HALT_RECOVERY", "soonish")
		cfg := LoadFromEnv("")
		if cfg.Strategy.HaltRecovery != Default().Strategy.HaltRecovery {
			t.Errorf("halt recovery = %v, want default", cfg.Strategy.HaltRecovery)
		}
	})
}

package cli

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transferscan/internal/application/review"
	"github.com/eshaffer321/transferscan/internal/domain/matcher"
	"github.com/eshaffer321/transferscan/internal/domain/recommend"
	"github.com/eshaffer321/transferscan/internal/infrastructure/config"
)

// LoadConfig loads an explicit config file, or config.yaml with a fallback
// to environment variables when path is empty.
func LoadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.LoadOrEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// ReviewConfig converts file configuration into review service settings
func ReviewConfig(cfg *config.Config) review.Config {
	return review.Config{
		Recommend: recommend.Config{
			ChunkDays:    cfg.Scan.ChunkDays,
			OverlapDays:  cfg.Scan.OverlapDays,
			MinChunkDays: cfg.Scan.MinChunkDays,
			MaxChunkDays: cfg.Scan.MaxChunkDays,
		},
		Matching: matcher.Config{
			AmountTolerance:   decimal.NewFromFloat(cfg.Matching.AmountTolerance),
			RelativeTolerance: decimal.NewFromFloat(cfg.Matching.RelativeTolerance),
			DayTolerance:      cfg.Matching.DayTolerance,
		},
		Breaker: review.BreakerConfig{
			MaxRequests:      cfg.Breaker.MaxRequests,
			Interval:         cfg.Breaker.Interval,
			Timeout:          cfg.Breaker.Timeout,
			FailureThreshold: cfg.Breaker.FailureThreshold,
			MinRequests:      cfg.Breaker.MinRequests,
		},
		PageSize: cfg.Review.PageSize,
		CycleTTL: cfg.Review.CycleTTL,
	}
}

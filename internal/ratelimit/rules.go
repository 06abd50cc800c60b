package ratelimit

import (
	"errors"
	"time"

	"github.com/Proton-105/tarot-bot/pkg/config"
)

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config    config.RateLimitConfig
	whitelist map[int64]struct{}
}

// NewRules constructs rate limiting rules from configuration settings.
// Extra ids, such as the administrator, are always whitelisted.
func NewRules(cfg config.RateLimitConfig, extra ...int64) *Rules {
	whitelist := make(map[int64]struct{}, len(cfg.Whitelist)+len(extra))
	for _, id := range cfg.Whitelist {
		whitelist[id] = struct{}{}
	}
	for _, id := range extra {
		if id != 0 {
			whitelist[id] = struct{}{}
		}
	}

	return &Rules{config: cfg, whitelist: whitelist}
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	_, ok := r.whitelist[userID]
	return ok
}

// GetPerUserLimit returns the per-user rate limiting rule.
func (r *Rules) GetPerUserLimit() (int, time.Duration, error) {
	return parseRule(r.config.PerUser)
}

func parseRule(rule config.RateLimitRule) (int, time.Duration, error) {
	if rule.Window == "" {
		return rule.Limit, 0, errors.New("window duration is not set")
	}
	window, err := time.ParseDuration(rule.Window)
	if err != nil {
		return 0, 0, err
	}
	if window <= 0 {
		return 0, 0, errors.New("window duration must be positive")
	}
	return rule.Limit, window, nil
}

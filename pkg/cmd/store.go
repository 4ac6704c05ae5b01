package cmd

import (
	"github.com/pulseline/pulseline/pkg/config"
	"github.com/pulseline/pulseline/pkg/history"
)

// NewHistoryStore builds the run archive store. Without a Redis URL the
// console keeps history in memory.
func NewHistoryStore(cfg *config.ConsoleConfig) (history.Store, error) {
	if cfg.History.RedisURL == "" {
		return history.NewMemoryStore(), nil
	}

	return history.NewRedisStore(cfg.History.RedisURL)
}

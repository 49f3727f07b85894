// File: internal/chat/config.go
package chat

import (
	"fmt"
	"time"
)

type Config struct {
	// ServerID scopes every id this controller mints or rebuilds from storage.
	ServerID uint32

	// MaxIDAttempts bounds how many generated candidates may be rejected as
	// already in use before creation gives up.
	MaxIDAttempts int

	// LogLoadSummary prints every loaded entity and chain after bootstrap.
	LogLoadSummary bool

	// Clock supplies creation times for the generative entry points.
	Clock func() time.Time
}

func (c *Config) Validate() error {
	if c.MaxIDAttempts < 1 {
		return fmt.Errorf("max_id_attempts must be at least 1")
	}
	if c.MaxIDAttempts > 1024 {
		return fmt.Errorf("max_id_attempts cannot exceed 1024")
	}
	if c.Clock == nil {
		return fmt.Errorf("clock is required")
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		ServerID:       1,
		MaxIDAttempts:  8,
		LogLoadSummary: true,
		Clock:          time.Now,
	}
}

package rslimiter

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/mem"
)

// Config controls the resource gate guarding browser session grants.
type Config struct {
	Enabled            bool    `json:"enabled" yaml:"enabled"`
	SystemMemThreshold float64 `json:"system_mem_threshold,omitempty" yaml:"system_mem_threshold,omitempty" validate:"omitempty,gt=0,lte=1"`
	MaxGoroutines      int     `json:"max_goroutines,omitempty" yaml:"max_goroutines,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultConfig returns the default resource limiter configuration.
func NewDefaultConfig() Config {
	return Config{
		Enabled:            true,
		SystemMemThreshold: 0.9,
		MaxGoroutines:      10000,
	}
}

// ErrResourcePressure is returned by Allow when the host is too loaded to
// take on another browser session.
type ErrResourcePressure struct {
	Reason string
}

func (e *ErrResourcePressure) Error() string {
	return fmt.Sprintf("resource pressure: %s", e.Reason)
}

// memReader allows tests to substitute gopsutil.
type memReader func() (*mem.VirtualMemoryStat, error)

// Limiter checks system memory and goroutine pressure before expensive
// work is admitted. Browser sessions are the dominant memory consumer,
// so the driver consults Allow before every session grant.
type Limiter struct {
	config  Config
	logger  zerolog.Logger
	readMem memReader
}

// NewLimiter creates a resource limiter.
func NewLimiter(config Config, logger zerolog.Logger) *Limiter {
	if config.SystemMemThreshold <= 0 {
		config.SystemMemThreshold = 0.9
	}
	if config.MaxGoroutines <= 0 {
		config.MaxGoroutines = 10000
	}
	return &Limiter{
		config:  config,
		logger:  logger.With().Str("component", "ResourceLimiter").Logger(),
		readMem: mem.VirtualMemory,
	}
}

// Allow returns nil when another expensive operation may start, or an
// ErrResourcePressure describing which threshold is exceeded.
func (l *Limiter) Allow() error {
	if !l.config.Enabled {
		return nil
	}

	if n := runtime.NumGoroutine(); n > l.config.MaxGoroutines {
		l.logger.Warn().Int("goroutines", n).Int("max", l.config.MaxGoroutines).Msg("Goroutine limit exceeded")
		return &ErrResourcePressure{Reason: fmt.Sprintf("%d goroutines exceeds limit %d", n, l.config.MaxGoroutines)}
	}

	vm, err := l.readMem()
	if err != nil {
		// Cannot measure; do not block work on an observability failure.
		l.logger.Warn().Err(err).Msg("Failed to read system memory, allowing operation")
		return nil
	}

	usage := vm.UsedPercent / 100
	if usage >= l.config.SystemMemThreshold {
		l.logger.Warn().
			Float64("used_percent", vm.UsedPercent).
			Float64("threshold", l.config.SystemMemThreshold*100).
			Msg("System memory threshold exceeded")
		return &ErrResourcePressure{
			Reason: fmt.Sprintf("system memory at %.1f%%, threshold %.1f%%", vm.UsedPercent, l.config.SystemMemThreshold*100),
		}
	}

	return nil
}

package resilience

import (
	"time"

	"github.com/richxcame/ride-booking/pkg/config"
)

// SettingsFor names a breaker and fills unset tuning from defaults: a one
// minute window, 30s open state, five consecutive failures to trip and one
// successful trial request to close.
func SettingsFor(collaborator string, cfg config.BreakerConfig) Settings {
	s := Settings{
		Name:             collaborator,
		Interval:         cfg.Interval,
		Timeout:          cfg.Timeout,
		FailureThreshold: 5,
		SuccessThreshold: 1,
	}
	if s.Interval <= 0 {
		s.Interval = time.Minute
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold > 0 {
		s.FailureThreshold = uint32(cfg.FailureThreshold)
	}
	if cfg.SuccessThreshold > 0 {
		s.SuccessThreshold = uint32(cfg.SuccessThreshold)
	}
	return s
}

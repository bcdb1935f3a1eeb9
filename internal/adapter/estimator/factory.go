package estimator

import (
	"log/slog"

	"github.com/thushan/ferry/internal/config"
)

// NewFromConfig builds the estimator selected by the configuration. The probe
// policy needs an invoker for its dry runs; the others ignore it.
func NewFromConfig(cfg config.EstimatorConfig, invoker Invoker, logger *slog.Logger) (*PtimeEstimator, error) {
	typ, err := TypeFromString(cfg.Type)
	if err != nil {
		return nil, err
	}
	switch typ {
	case TypeRtt:
		return NewRtt(cfg.WindowSize, cfg.StalePeriod, logger), nil
	case TypeUtil:
		return NewUtil(cfg.WindowSize, cfg.StalePeriod, cfg.UtilLoadTimeout, cfg.UtilWindowSize, cfg.Output, logger)
	case TypeDelay:
		return NewDelay(cfg.UtilLoadTimeout, cfg.UtilWindowSize, cfg.Output, logger)
	case TypeProbe:
		return NewProbe(invoker, cfg.Output, logger)
	}
	return nil, nil // unreachable, TypeFromString already rejected
}

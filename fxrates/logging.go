package fxrates

import (
	"context"
	"time"

	"github.com/go-kit/log"

	"orbitfolio/domain"
)

// loggingService decorates a fxrates.Service with logging
type loggingService struct {
	next   Service
	logger log.Logger
}

// NewLoggingService return a new logging service
func NewLoggingService(logger log.Logger, s Service) Service {
	return &loggingService{
		next:   s,
		logger: logger,
	}
}

func (s *loggingService) LatestRates(ctx context.Context, currencies []domain.Currency) (quotes Quotes, err error) {
	defer func(begin time.Time) {
		s.logger.Log(
			"method", "latest_rates",
			"currencies", len(currencies),
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.LatestRates(ctx, currencies)
}

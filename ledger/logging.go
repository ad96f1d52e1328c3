package ledger

import (
	"time"

	"github.com/go-kit/log"

	"orbitfolio/domain"
)

// loggingService decorates a ledger.Service with logging
type loggingService struct {
	next   Service
	logger log.Logger
}

// NewLoggingService returns a new logging Service
func NewLoggingService(logger log.Logger, s Service) Service {
	return &loggingService{
		next:   s,
		logger: logger,
	}
}

func (s *loggingService) Add(draft Draft) (h domain.Holding, err error) {
	defer func(begin time.Time) {
		s.logger.Log(
			"method", "add",
			"label", draft.Label,
			"zone", draft.Zone,
			"id", h.ID,
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Add(draft)
}

func (s *loggingService) AddForm(form Form) (h domain.Holding, err error) {
	defer func(begin time.Time) {
		s.logger.Log(
			"method", "add_form",
			"label", form.Label,
			"zone", form.Zone,
			"id", h.ID,
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.AddForm(form)
}

func (s *loggingService) Remove(id int64) (removed bool) {
	defer func(begin time.Time) {
		s.logger.Log(
			"method", "remove",
			"id", id,
			"removed", removed,
			"took", time.Since(begin),
		)
	}(time.Now())
	return s.next.Remove(id)
}

func (s *loggingService) Holdings() []domain.Holding {
	return s.next.Holdings()
}

func (s *loggingService) Len() int {
	return s.next.Len()
}

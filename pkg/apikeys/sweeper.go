package apikeys

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const sweepTimeout = 30 * time.Second

// Sweeper periodically flips overdue active keys to expired so that
// expiry does not depend solely on the lazy flip during validation.
type Sweeper struct {
	store  Store
	cron   *cron.Cron
	logger *logrus.Logger
}

// NewSweeper creates an expiry sweeper. schedule is a cron expression,
// e.g. "@hourly".
func NewSweeper(store Store, schedule string, logger *logrus.Logger) (*Sweeper, error) {
	s := &Sweeper{
		store:  store,
		cron:   cron.New(),
		logger: logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the sweep schedule
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	expired, err := s.store.ExpireOverdue(ctx)
	if err != nil {
		s.logger.WithError(err).Error("api key expiry sweep failed")
		return
	}
	if expired > 0 {
		s.logger.WithField("expired", expired).Info("expired overdue api keys")
	}
}

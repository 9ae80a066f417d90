// Package jobs runs scheduled maintenance. Request paths already expire
// memberships lazily; the sweep keeps stored status current for listings
// and reports.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Expirer is the part of the membership service the sweep needs.
type Expirer interface {
	ExpireDue(ctx context.Context) (int64, error)
}

const sweepTimeout = 2 * time.Minute

// ExpirySweep runs Expirer.ExpireDue on a cron schedule.
type ExpirySweep struct {
	cron    *cron.Cron
	expirer Expirer
}

// NewExpirySweep registers the sweep on schedule (standard 5-field cron, in
// loc). It does not start it.
func NewExpirySweep(schedule string, loc *time.Location, expirer Expirer) (*ExpirySweep, error) {
	if loc == nil {
		loc = time.UTC
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	s := &ExpirySweep{cron: c, expirer: expirer}
	if _, err := c.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// RunOnce performs one sweep.
func (s *ExpirySweep) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	n, err := s.expirer.ExpireDue(ctx)
	if err != nil {
		log.Printf("ERROR: Membership expiry sweep failed: %v", err)
		return
	}
	log.Printf("INFO: Membership expiry sweep done, %d expired", n)
}

func (s *ExpirySweep) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for a running sweep to finish or ctx to end.
func (s *ExpirySweep) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

package scheduler

import (
	"context"
	"log"
	"time"

	"unibox-backend/internal/sync/usecase"
)

// Scheduler drives the periodic background sweep over all users
type Scheduler struct {
	syncUsecase usecase.SyncUsecase
	interval    time.Duration
	stopChan    chan struct{}
}

func NewScheduler(syncUsecase usecase.SyncUsecase, interval time.Duration) *Scheduler {
	return &Scheduler{
		syncUsecase: syncUsecase,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start launches the sweep loop in a background goroutine
func (s *Scheduler) Start() {
	log.Printf("[Scheduler] Starting background sync sweep every %s", s.interval)
	go s.run()
}

func (s *Scheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Catch up on whatever accumulated while the process was down
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopChan:
			log.Println("[Scheduler] Stopped")
			return
		}
	}
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	s.syncUsecase.SyncAll(ctx, usecase.SyncFilter{})
}

// Stop terminates the sweep loop
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

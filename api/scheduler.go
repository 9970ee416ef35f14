/*
scheduler.go - Automated yearly accrual scheduler

PURPOSE:
  Periodically runs the yearly accrual initializer so that every active
  employee gets the new year's paid-leave credit without a manual admin
  call. The initializer is idempotent, so running it every check interval
  costs a handful of indexed reads and credits only employees who are
  missing the year's accrual (new hires included).

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Always targets the current calendar year
  - Skips already-credited employees via the accrual existence check

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - AnnualDays:    Default yearly entitlement credited per employee
  - Enabled:       Whether scheduler is active (default: true)

USAGE:
  scheduler := NewAccrualScheduler(handler, leave.Days(25))
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunYearlyAccrual endpoint (manual accrual run)
  - leave/initializer.go: the idempotent accrual writer
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// AccrualScheduler handles automated yearly accrual runs.
type AccrualScheduler struct {
	Handler       *Handler
	AnnualDays    decimal.Decimal
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAccrualScheduler creates a new scheduler.
func NewAccrualScheduler(handler *Handler, annualDays decimal.Decimal) *AccrualScheduler {
	return &AccrualScheduler{
		Handler:       handler,
		AnnualDays:    annualDays,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (as *AccrualScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if !as.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	as.ticker = time.NewTicker(as.CheckInterval)
	as.wg.Add(1)

	go as.run()

	log.Printf("[Scheduler] Started with check interval: %v", as.CheckInterval)
}

// Stop stops the scheduler.
func (as *AccrualScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker != nil {
		as.ticker.Stop()
		close(as.stop)
		as.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (as *AccrualScheduler) run() {
	defer as.wg.Done()

	// Run immediately on start
	as.checkAndProcess()

	for {
		select {
		case <-as.ticker.C:
			as.checkAndProcess()
		case <-as.stop:
			return
		}
	}
}

func (as *AccrualScheduler) checkAndProcess() {
	ctx := context.Background()
	year := time.Now().Year()

	result, err := as.Handler.Initializer.InitializeYearly(ctx, year, as.AnnualDays)
	if err != nil {
		log.Printf("[Scheduler] Accrual run for %d failed: %v", year, err)
		return
	}
	if result.Credited > 0 {
		log.Printf("[Scheduler] Accrual run for %d: %d credited, %d skipped of %d employees",
			year, result.Credited, result.Skipped, result.Total)
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (as *AccrualScheduler) RunNow() {
	as.checkAndProcess()
}

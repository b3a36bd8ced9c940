// Package engine provides the monthly simulation step and the loop that
// drives it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/talgya/vertifarm/internal/farm"
)

// ErrTickInProgress is returned when a step is requested while another is
// still running.
var ErrTickInProgress = errors.New("tick in progress")

// Engine owns a Simulation and serializes every operation on it.
type Engine struct {
	Interval time.Duration // autoplay interval between months

	// OnMonth runs after every month, still holding the engine lock.
	OnMonth func(sim *Simulation, report *TickReport)

	mu       sync.Mutex
	sim      *Simulation
	stepping atomic.Bool
	running  atomic.Bool
}

// NewEngine wraps a simulation.
func NewEngine(sim *Simulation) *Engine {
	return &Engine{
		Interval: 10 * time.Second,
		sim:      sim,
	}
}

// Step simulates one month. A step requested while another is running,
// including from inside OnMonth, fails with ErrTickInProgress.
func (e *Engine) Step() (*TickReport, error) {
	if !e.stepping.CompareAndSwap(false, true) {
		return nil, ErrTickInProgress
	}
	defer e.stepping.Store(false)

	e.mu.Lock()
	defer e.mu.Unlock()

	report, err := e.sim.SimulateMonth()
	if err != nil {
		return nil, err
	}
	if e.OnMonth != nil {
		e.OnMonth(e.sim, report)
	}
	return report, nil
}

// Do runs fn with exclusive access to the simulation.
func (e *Engine) Do(fn func(sim *Simulation) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.sim)
}

// Replace swaps in a different simulation, e.g. after a restore.
func (e *Engine) Replace(sim *Simulation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sim = sim
}

// Running reports whether autoplay is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run steps one month every Interval until ctx is cancelled or the season
// ends. Blocks.
func (e *Engine) Run(ctx context.Context) error {
	if e.Interval <= 0 {
		return fmt.Errorf("%w: autoplay interval must be positive", farm.ErrConfiguration)
	}
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine already running")
	}
	defer e.running.Store(false)

	slog.Info("simulation engine started", "interval", e.Interval)
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped")
			return nil
		case <-ticker.C:
			_, err := e.Step()
			switch {
			case errors.Is(err, ErrSeasonOver):
				slog.Info("season over, autoplay stopped")
				return nil
			case errors.Is(err, ErrTickInProgress):
				continue
			case errors.Is(err, ErrNotesRequired):
				slog.Debug("autoplay waiting for notes")
				continue
			case err != nil:
				return err
			}
		}
	}
}

// SimTime returns a human-readable time for a month counter.
func SimTime(month int) string {
	return fmt.Sprintf("Year %d Month %d (Day %d)", month/12+1, month%12+1, month*farm.DaysPerMonth)
}

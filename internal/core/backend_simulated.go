package core

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// simulatedSuccessRate is the fraction of simulated dispatches that succeed.
const simulatedSuccessRate = 0.9

// SuccessStrategy decides the outcome of a simulated print attempt.
type SuccessStrategy interface {
	ShouldSucceed() bool
}

// RandomOutcome succeeds with a fixed probability. Safe for concurrent use.
type RandomOutcome struct {
	mu   sync.Mutex
	rng  *rand.Rand
	rate float64
}

func NewRandomOutcome(seed int64) *RandomOutcome {
	return &RandomOutcome{
		rng:  rand.New(rand.NewSource(seed)),
		rate: simulatedSuccessRate,
	}
}

func (r *RandomOutcome) ShouldSucceed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < r.rate
}

// SimulatedBackend stands in for physical hardware. It sleeps for a realistic
// print duration and then succeeds or fails per its strategy, so the full job
// lifecycle can be exercised on a laptop with no printer attached.
type SimulatedBackend struct {
	strategy SuccessStrategy
	sleep    SleepFunc

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedBackend(strategy SuccessStrategy, sleep SleepFunc) *SimulatedBackend {
	if strategy == nil {
		strategy = NewRandomOutcome(time.Now().UnixNano())
	}
	if sleep == nil {
		sleep = sleepContext
	}
	return &SimulatedBackend{
		strategy: strategy,
		sleep:    sleep,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *SimulatedBackend) Name() string { return "simulated" }

func (b *SimulatedBackend) Print(ctx context.Context, job *Job, printer *Printer) error {
	if err := b.sleep(ctx, b.printDuration()); err != nil {
		return err
	}

	if !b.strategy.ShouldSucceed() {
		return errors.New("simulated print failure")
	}
	return nil
}

// printDuration is 1 to 4 seconds, roughly what a thermal printer takes for
// a short kitchen ticket.
func (b *SimulatedBackend) printDuration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return time.Second + time.Duration(b.rng.Float64()*3*float64(time.Second))
}

package server

import (
	"sync"
	"time"
)

// countdownScheduler tracks the deferred game-start action of each room in
// Countdown phase. The original design fired its timer unconditionally; here
// every timer handle is kept so it can be cancelled when the room is deleted
// or loses an occupant before the countdown elapses.
type countdownScheduler struct {
	mutex  sync.Mutex
	timers map[string]*time.Timer
}

func newCountdownScheduler() *countdownScheduler {
	return &countdownScheduler{
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms the countdown for a room, replacing any timer already armed
// for it. The callback runs on its own goroutine after the delay; it is the
// callback's job to re-validate room state before acting.
func (scheduler *countdownScheduler) Schedule(roomID string, delay time.Duration, fire func()) {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()

	if timer, exists := scheduler.timers[roomID]; exists {
		timer.Stop()
	}

	scheduler.timers[roomID] = time.AfterFunc(delay, func() {
		scheduler.mutex.Lock()
		delete(scheduler.timers, roomID)
		scheduler.mutex.Unlock()

		fire()
	})
}

// Cancel disarms the countdown for a room. Cancelling a room with no armed
// timer (never scheduled, already fired, or already cancelled) is a no-op.
func (scheduler *countdownScheduler) Cancel(roomID string) {
	scheduler.mutex.Lock()
	defer scheduler.mutex.Unlock()

	if timer, exists := scheduler.timers[roomID]; exists {
		timer.Stop()
		delete(scheduler.timers, roomID)
	}
}

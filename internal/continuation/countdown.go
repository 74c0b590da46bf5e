package continuation

import (
	"time"

	"github.com/kingrea/beads-continuation/internal/host"
)

// cancelLocked stops the session's countdown, if any, and advances its epoch.
func cancelLocked(state *sessionState) {
	state.epoch++
	if state.countdown == nil {
		return
	}
	state.countdown.stop()
	state.countdown = nil
}

// startCountdownLocked replaces any running countdown with a fresh one. The
// caller renders the first toast once the lock is released.
func (d *Dispatcher) startCountdownLocked(sessionID string, state *sessionState, incomplete int) {
	cancelLocked(state)
	cd := &countdown{
		remaining:  CountdownSeconds,
		incomplete: incomplete,
	}
	state.countdown = cd
	cd.tick = d.scheduler.Every(tickInterval, func() { d.tick(state, cd) })
	cd.expiry = d.scheduler.AfterFunc(CountdownSeconds*time.Second, func() { d.expire(sessionID, state, cd) })
	d.logger.Printf("continuation: session %s idle with %d bead(s) in progress, countdown started", sessionID, incomplete)
}

func (d *Dispatcher) tick(state *sessionState, cd *countdown) {
	d.mu.Lock()
	if state.countdown != cd {
		d.mu.Unlock()
		return
	}
	cd.remaining--
	remaining := cd.remaining
	d.mu.Unlock()

	// The final action is the prompt itself, so zero is never shown.
	if remaining > 0 {
		d.showCountdown(remaining, cd.incomplete)
	}
}

func (d *Dispatcher) expire(sessionID string, state *sessionState, cd *countdown) {
	d.mu.Lock()
	if state.countdown != cd {
		d.mu.Unlock()
		return
	}
	cd.stop()
	state.countdown = nil
	epoch := state.epoch
	recovering := state.isRecovering
	d.mu.Unlock()

	if recovering {
		return
	}
	d.inject(sessionID, state, epoch)
}

// inject composes the continuation from fresh tracker data and delivers it,
// unless the session was cancelled or deleted in the meantime.
func (d *Dispatcher) inject(sessionID string, state *sessionState, epoch uint64) {
	items := d.inProgress()
	if len(items) == 0 {
		return
	}
	epicID := d.branch.EpicID(d.ctx)
	message := BuildMessage(items, epicID, d.ready(epicID))

	d.mu.Lock()
	current := d.isCurrentLocked(sessionID, state, epoch) && !state.isRecovering
	d.mu.Unlock()
	if !current {
		return
	}

	parts := []host.Part{host.TextPart(message)}
	if err := d.host.Prompt(d.ctx, sessionID, parts); err != nil {
		d.logger.Printf("continuation: inject into %s: %v", sessionID, err)
		return
	}
	d.logger.Printf("continuation: injected continuation into %s (%s)", sessionID, items[0].ID)
}

func (d *Dispatcher) showCountdown(remaining, incomplete int) {
	toast := host.Toast{
		Title:    ToastTitle,
		Message:  countdownMessage(remaining, incomplete),
		Variant:  host.VariantWarning,
		Duration: ToastDuration,
	}
	if err := d.host.ShowToast(d.ctx, toast); err != nil {
		d.logger.Printf("continuation: toast: %v", err)
	}
}

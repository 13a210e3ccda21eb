package rgbw

import (
	"time"

	"rgbwd/hwio"
	"rgbwd/types"
)

// softPWMKick is the delay before a freshly armed timer's first edge.
const softPWMKick = time.Microsecond

// softPWM reconstructs a PWM waveform on a plain output pin from one
// recurring timer that always reschedules itself for the next logical edge.
// The timer is armed only while the target brightness is strictly between 0
// and max; at the extremes the pin is held constant and the timer idles.
type softPWM struct {
	pin   hwio.GPIOHandle
	level bool
	armed bool
	timer *time.Timer
}

func newSoftPWM(pin hwio.GPIOHandle) *softPWM {
	return &softPWM{pin: pin}
}

// applySoft commits a brightness change to a software channel. Mid-range
// targets (re-)arm the toggle timer; the extremes drive the pin directly
// when the timer is idle, otherwise the next tick parks it.
func (d *Device) applySoft(c types.Color, bright int) {
	sp := d.chans[c].soft
	duty := d.dutyValue(bright)
	if duty > 0 && duty < d.maxDuty() {
		d.armSoftLocked(c)
		return
	}
	if sp.armed {
		return // tick observes the extreme and parks itself
	}
	sp.level = duty >= d.maxDuty()
	sp.pin.Set(sp.level)
}

// armSoftLocked starts the channel's toggle timer. Idempotent: an armed
// timer is left alone so only one edge chain exists per channel.
func (d *Device) armSoftLocked(c types.Color) bool {
	sp := d.chans[c].soft
	if sp.armed {
		return false
	}
	sp.armed = true
	sp.timer.Reset(softPWMKick)
	return true
}

// softTick is the timer callback: one edge of the emulated waveform.
func (d *Device) softTick(c types.Color) {
	fired := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	sp := d.chans[c].soft
	level, next, park := softStep(d.dutyValue(d.chans[c].brightness), d.maxDuty(), sp.level, d.lthNs, d.periodNs)
	sp.level = level
	sp.pin.Set(level)
	if park {
		sp.armed = false
		return
	}
	// Reschedule relative to the firing moment so drift does not
	// accumulate across edges.
	sp.timer.Reset(next - time.Since(fired))
}

// softStep computes one toggle-scheduler transition from the raw duty value:
// the new pin level, the delay until the next edge, and whether the timer
// parks instead.
func softStep(duty, maxDuty int, level bool, lthNs, periodNs uint64) (newLevel bool, next time.Duration, park bool) {
	switch {
	case duty >= maxDuty:
		return true, 0, true
	case duty <= 0:
		return false, 0, true
	}
	newLevel = !level
	pulse := uint64(duty) * lthNs
	if !newLevel {
		// Pin just went low: the next edge is the start of the next period.
		pulse = periodNs - pulse
	}
	return newLevel, time.Duration(pulse), false
}

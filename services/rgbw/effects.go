package rgbw

import (
	"time"

	"rgbwd/errcode"
	"rgbwd/services/rgbw/internal/fx"
	"rgbwd/types"
	"rgbwd/x/mathx"
)

// Effect tick intervals. Heartbeat alternates a short intra-beat gap with a
// long pause after the second beat.
const (
	pulseInterval     = 50 * time.Millisecond
	rainbowInterval   = 50 * time.Millisecond
	blinkInterval     = 500 * time.Millisecond
	heartbeatShortGap = 100 * time.Millisecond
	heartbeatLongGap  = 700 * time.Millisecond
)

// StartEffect arms blink, heartbeat or rainbow. Effects are mutually
// exclusive: a start request while another effect (or a pulse) is active is
// rejected with busy. Pulse needs a target color, see StartPulse.
func (d *Device) StartEffect(e types.Effect) error {
	switch e {
	case types.EffectBlink, types.EffectHeartbeat, types.EffectRainbow:
		return d.start(e, types.Red)
	case types.EffectPulse:
		return errcode.InvalidParams // use StartPulse
	default:
		return errcode.Unsupported
	}
}

// StartPulse arms the breathing effect on one channel.
func (d *Device) StartPulse(c types.Color) error {
	if !c.Valid() {
		return errcode.InvalidChannel
	}
	return d.start(types.EffectPulse, c)
}

func (d *Device) start(e types.Effect, pcolor types.Color) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errcode.DeviceClosed
	}
	if d.anim.active != types.EffectNone {
		return errcode.Busy
	}
	if e == types.EffectPulse && d.chans[pcolor].backend == types.BackendUnassigned {
		return errcode.InvalidChannel
	}

	// Snapshot current brightness so stopping the effect can restore it.
	for c := types.Red; c < types.NumColors; c++ {
		d.anim.snapshot[c] = d.chans[c].brightness
	}
	d.anim.active = e
	d.anim.cursor = 0

	switch e {
	case types.EffectPulse:
		d.anim.pulseColor = pcolor
		d.chans[pcolor].cursor = 0
	case types.EffectRainbow:
		d.anim.levels = fx.RainbowSeed(d.maxLevel)
		for c := types.Red; c < types.NumColors; c++ {
			d.chans[c].brightness = d.anim.levels[c]
		}
	}

	d.anim.timers[e-1].Reset(d.effectInterval(e))
	d.log.Info().Str("dev", d.name).Str("effect", e.String()).Msg("effect started")
	return nil
}

// StopEffect clears the effect's enable state and restores the brightness
// snapshot taken at start. An in-flight tick observes the cleared state and
// declines to re-arm, so cancellation is at-most-one-more-tick.
func (d *Device) StopEffect(e types.Effect) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errcode.DeviceClosed
	}
	if e == types.EffectNone || d.anim.active != e {
		return errcode.InvalidParams
	}
	d.anim.active = types.EffectNone
	for c := types.Red; c < types.NumColors; c++ {
		d.chans[c].brightness = d.anim.snapshot[c]
	}
	err := d.updateAllLocked()
	d.log.Info().Str("dev", d.name).Str("effect", e.String()).Msg("effect stopped")
	return err
}

// ActiveEffect reports which effect currently runs, if any.
func (d *Device) ActiveEffect() types.Effect {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.anim.active
}

func (d *Device) effectInterval(e types.Effect) time.Duration {
	switch e {
	case types.EffectPulse:
		return pulseInterval
	case types.EffectBlink:
		return blinkInterval
	case types.EffectHeartbeat:
		return heartbeatShortGap
	default:
		return rainbowInterval
	}
}

// effectTick is the shared timer callback. It runs one transition of the
// active effect and re-arms its own timer relative to the firing moment, or
// returns without re-arming when the effect was stopped meanwhile.
func (d *Device) effectTick(e types.Effect) {
	fired := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.anim.active != e {
		return
	}

	interval := d.effectInterval(e)
	switch e {
	case types.EffectPulse:
		c := d.anim.pulseColor
		ch := &d.chans[c]
		var bright int
		bright, ch.cursor = fx.Pulse(ch.cursor)
		ch.brightness = mathx.Min(bright, d.maxLevel)
		_ = d.updateOneLocked(c)

	case types.EffectBlink:
		var lv types.Levels
		lv, d.anim.cursor = fx.Blink(d.anim.cursor, d.anim.snapshot)
		d.setLevelsLocked(lv)

	case types.EffectHeartbeat:
		if fx.HeartbeatLongGap(d.anim.cursor) {
			interval = heartbeatLongGap
		}
		var lv types.Levels
		lv, d.anim.cursor = fx.Heartbeat(d.anim.cursor, d.anim.snapshot)
		d.setLevelsLocked(lv)

	case types.EffectRainbow:
		d.anim.levels, d.anim.cursor = fx.Rainbow(d.anim.levels, d.anim.cursor, d.maxLevel)
		d.setLevelsLocked(d.anim.levels)
	}

	d.anim.timers[e-1].Reset(interval - time.Since(fired))
}

func (d *Device) setLevelsLocked(lv types.Levels) {
	for c := types.Red; c < types.NumColors; c++ {
		d.chans[c].brightness = lv[c]
	}
	_ = d.updateAllLocked()
}

// Package rgbw drives a three- or four-channel PWM light head. Each color
// channel is backed either by a hardware PWM line or by a software PWM
// emulated on a plain GPIO with a self-rescheduling toggle timer. On top of
// direct brightness control the device runs the timer-driven lighting
// effects (pulse, blink, heartbeat, rainbow).
package rgbw

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rgbwd/errcode"
	"rgbwd/hwio"
	"rgbwd/services/rgbw/config"
	"rgbwd/types"
	"rgbwd/x/strx"
	"rgbwd/x/timex"
)

// defaultPeriodNs is used when no hardware PWM channel exists to derive the
// period from: 7.65ms, ~130Hz.
const defaultPeriodNs = 7_650_000

// NotifyFunc may remap a requested brightness before it is applied.
type NotifyFunc func(d *Device, brightness int) int

// NotifyAfterFunc runs after hardware/timer state has been committed.
type NotifyAfterFunc func(d *Device, brightness int)

// Options carries the injectable parts of a device.
type Options struct {
	Logger      zerolog.Logger
	Notify      NotifyFunc
	NotifyAfter NotifyAfterFunc
}

// channel is one logical color. Backend kind is immutable after probe.
type channel struct {
	backend    types.Backend
	pwm        hwio.PWMHandle // hardware backend
	pwmRef     config.PWMRef
	soft       *softPWM // software backend
	brightness int
	cursor     int // pulse curve index
}

// animState is the shared effect record: which effect runs, its sequencing
// cursor, and the brightness snapshot taken when it was armed.
type animState struct {
	active     types.Effect
	cursor     int
	snapshot   types.Levels
	pulseColor types.Color
	levels     types.Levels // rainbow working vector
	timers     [types.NumEffects]*time.Timer
}

// Device is one probed RGBW light head. All state is guarded by mu; timer
// callbacks take the lock, so at most one callback of the device runs at a
// time.
type Device struct {
	mu sync.Mutex

	name string
	reg  hwio.Registry
	log  zerolog.Logger

	chans    [types.NumColors]channel
	periodNs uint64
	lthNs    uint64 // minimum pulse width: period / max duty value
	maxLevel int
	levels   []int // optional brightness -> duty lookup

	notify      NotifyFunc
	notifyAfter NotifyAfterFunc

	anim   animState
	closed bool
}

// Probe validates the manifest, claims every referenced hardware resource
// and returns a ready device with all channels off. On any claim failure
// everything claimed so far is released before the error is returned.
func Probe(m *config.Manifest, reg hwio.Registry, opts Options) (dev *Device, err error) {
	roles, err := m.Validate()
	if err != nil {
		return nil, err
	}

	d := &Device{
		name: strx.Coalesce(m.Name, "rgbw"),
		reg:  reg,
		log:  opts.Logger,

		notify:      opts.Notify,
		notifyAfter: opts.NotifyAfter,
	}

	if len(m.BrightnessLevels) > 0 {
		d.levels = m.BrightnessLevels
		d.maxLevel = len(m.BrightnessLevels) - 1
	} else {
		d.maxLevel = m.MaxBrightness
	}

	var claimed []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(claimed) - 1; i >= 0; i-- {
			claimed[i]()
		}
	}()

	for _, role := range roles {
		ch := &d.chans[role.Color]
		switch role.Backend {
		case types.BackendHardwarePWM:
			ref := role.PWM
			h, cerr := reg.ClaimPWM(d.name, ref.Chip, ref.Line)
			if cerr != nil {
				return nil, &errcode.E{C: errcode.ClaimFailed, Op: "probe",
					Msg: "pwm for color " + role.Color.String(), Err: cerr}
			}
			claimed = append(claimed, func() { reg.ReleasePWM(d.name, ref.Chip, ref.Line) })
			ch.backend = types.BackendHardwarePWM
			ch.pwm = h
			ch.pwmRef = ref
			d.log.Debug().Str("dev", d.name).Str("color", role.Color.String()).
				Int("chip", ref.Chip).Int("line", ref.Line).Msg("claimed hardware pwm")

		case types.BackendSoftwarePWM:
			pin := role.Pin
			h, cerr := reg.ClaimGPIO(d.name, pin)
			if cerr != nil {
				return nil, &errcode.E{C: errcode.ClaimFailed, Op: "probe",
					Msg: "gpio for color " + role.Color.String(), Err: cerr}
			}
			claimed = append(claimed, func() { reg.ReleaseGPIO(d.name, pin) })
			if cerr := h.ConfigureOutput(false); cerr != nil {
				return nil, &errcode.E{C: errcode.ClaimFailed, Op: "probe",
					Msg: "gpio direction for color " + role.Color.String(), Err: cerr}
			}
			ch.backend = types.BackendSoftwarePWM
			ch.soft = newSoftPWM(h)
			d.log.Debug().Str("dev", d.name).Str("color", role.Color.String()).
				Int("pin", pin).Msg("created soft pwm")
		}
	}

	d.periodNs = d.derivePeriod(m.FrequencyHz)
	d.lthNs = d.periodNs / uint64(d.maxDuty())

	for c := types.Red; c < types.NumColors; c++ {
		if d.chans[c].backend != types.BackendSoftwarePWM {
			continue
		}
		c := c
		t := time.AfterFunc(time.Hour, func() { d.softTick(c) })
		t.Stop()
		d.chans[c].soft.timer = t
	}

	for _, e := range []types.Effect{types.EffectPulse, types.EffectBlink, types.EffectHeartbeat, types.EffectRainbow} {
		eff := e
		t := time.AfterFunc(time.Hour, func() { d.effectTick(eff) })
		t.Stop()
		d.anim.timers[eff-1] = t
	}

	d.mu.Lock()
	uerr := d.updateAllLocked()
	d.mu.Unlock()
	if uerr != nil {
		d.log.Warn().Err(uerr).Str("dev", d.name).Msg("initial update failed")
	}

	d.log.Info().Str("dev", d.name).
		Uint64("period_ns", d.periodNs).Int("max", d.maxLevel).
		Msg("rgbw device probed")
	return d, nil
}

// derivePeriod uses the first hardware PWM channel's pre-configured period;
// every other channel is later programmed to match it. With no hardware
// channel the manifest frequency or the built-in default applies.
func (d *Device) derivePeriod(freqHz uint32) uint64 {
	for c := types.Red; c < types.NumColors; c++ {
		if d.chans[c].backend == types.BackendHardwarePWM {
			if p := d.chans[c].pwm.PeriodNs(); p > 0 {
				return p
			}
			break
		}
	}
	if freqHz > 0 {
		return timex.PeriodFromHz(freqHz)
	}
	return defaultPeriodNs
}

// maxDuty is the raw duty value the top brightness maps to.
func (d *Device) maxDuty() int {
	if d.levels != nil {
		if top := d.levels[len(d.levels)-1]; top > 0 {
			return top
		}
	}
	if d.maxLevel > 0 {
		return d.maxLevel
	}
	return 1
}

// Name returns the device name from the manifest.
func (d *Device) Name() string { return d.name }

// MaxBrightness returns the top valid brightness level.
func (d *Device) MaxBrightness() int { return d.maxLevel }

// PeriodNs returns the shared PWM period.
func (d *Device) PeriodNs() uint64 { return d.periodNs }

// Backend reports how a channel is driven.
func (d *Device) Backend(c types.Color) types.Backend {
	if !c.Valid() {
		return types.BackendUnassigned
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chans[c].backend
}

// SetBrightness sets one channel's target brightness and applies it.
// Out-of-range input is rejected without side effects.
func (d *Device) SetBrightness(c types.Color, level int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errcode.DeviceClosed
	}
	if !c.Valid() || d.chans[c].backend == types.BackendUnassigned {
		return errcode.InvalidChannel
	}
	if level < 0 || level > d.maxLevel {
		return errcode.InvalidLevel
	}
	d.chans[c].brightness = level
	return d.updateOneLocked(c)
}

// Brightness returns one channel's current target brightness.
func (d *Device) Brightness(c types.Color) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !c.Valid() || d.chans[c].backend == types.BackendUnassigned {
		return 0, errcode.InvalidChannel
	}
	return d.chans[c].brightness, nil
}

// Remove tears the device down: effect and soft-PWM timers are cancelled
// first, then every output is quiesced and its hardware handle released.
// Safe to call once; later calls are no-ops.
func (d *Device) Remove() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.anim.active = types.EffectNone

	for _, t := range d.anim.timers {
		if t != nil {
			t.Stop()
		}
	}

	for c := types.Red; c < types.NumColors; c++ {
		ch := &d.chans[c]
		switch ch.backend {
		case types.BackendHardwarePWM:
			if err := ch.pwm.Configure(0, d.periodNs); err != nil {
				d.log.Warn().Err(err).Str("color", c.String()).Msg("quiesce failed")
			}
			_ = ch.pwm.Disable()
			d.reg.ReleasePWM(d.name, ch.pwmRef.Chip, ch.pwmRef.Line)
			ch.pwm = nil
		case types.BackendSoftwarePWM:
			ch.soft.timer.Stop()
			ch.soft.armed = false
			ch.soft.pin.Set(false)
			d.reg.ReleaseGPIO(d.name, ch.soft.pin.Number())
			ch.soft = nil
		}
	}
	d.log.Info().Str("dev", d.name).Msg("rgbw device removed")
}

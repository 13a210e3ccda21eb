package rgbw

import (
	"errors"

	"rgbwd/errcode"
	"rgbwd/types"
)

// The update protocol is the single funnel for every brightness change:
// direct writes and effect ticks both end up in updateAllLocked or
// updateOneLocked. The sequence is fixed: snapshot targets, batch pre-hook,
// per-channel apply in canonical order, batch post-hook.

func (d *Device) updateAllLocked() error {
	var bright types.Levels
	for c := types.Red; c < types.NumColors; c++ {
		bright[c] = d.chans[c].brightness
	}
	if d.notify != nil {
		for c := types.Red; c < types.NumColors; c++ {
			bright[c] = d.notify(d, bright[c])
		}
	}

	var errs []error
	for c := types.Red; c < types.NumColors; c++ {
		if d.chans[c].backend == types.BackendUnassigned {
			continue
		}
		// Channels are independent hardware writes; one failure does not
		// roll back the others in the batch.
		if err := d.applyChannel(c, bright[c]); err != nil {
			d.log.Warn().Err(err).Str("dev", d.name).Str("color", c.String()).Msg("update failed")
			errs = append(errs, err)
		}
	}

	if d.notifyAfter != nil {
		for c := types.Red; c < types.NumColors; c++ {
			d.notifyAfter(d, bright[c])
		}
	}
	return errors.Join(errs...)
}

func (d *Device) updateOneLocked(c types.Color) error {
	bright := d.chans[c].brightness
	if d.notify != nil {
		bright = d.notify(d, bright)
	}
	err := d.applyChannel(c, bright)
	if err != nil {
		d.log.Warn().Err(err).Str("dev", d.name).Str("color", c.String()).Msg("update failed")
	}
	if d.notifyAfter != nil {
		d.notifyAfter(d, bright)
	}
	return err
}

// applyChannel commits one brightness value to the channel's backend.
func (d *Device) applyChannel(c types.Color, bright int) error {
	ch := &d.chans[c]
	switch ch.backend {
	case types.BackendHardwarePWM:
		if bright == 0 {
			// Fully off: zero the duty and disable the output instead of
			// leaving a zero-width pulse enabled.
			if err := ch.pwm.Configure(0, d.periodNs); err != nil {
				return &errcode.E{C: errcode.HWProgramFailed, Op: "update", Msg: c.String(), Err: err}
			}
			if err := ch.pwm.Disable(); err != nil {
				return &errcode.E{C: errcode.HWProgramFailed, Op: "update", Msg: c.String(), Err: err}
			}
			return nil
		}
		duty := d.dutyCycle(bright)
		if err := ch.pwm.Configure(duty, d.periodNs); err != nil {
			return &errcode.E{C: errcode.HWProgramFailed, Op: "update", Msg: c.String(), Err: err}
		}
		if err := ch.pwm.Enable(); err != nil {
			return &errcode.E{C: errcode.HWProgramFailed, Op: "update", Msg: c.String(), Err: err}
		}
		return nil

	case types.BackendSoftwarePWM:
		d.applySoft(c, bright)
		return nil
	}
	return nil
}

// dutyValue resolves a brightness level to its raw duty value, remapped
// through the levels table when one is configured.
func (d *Device) dutyValue(bright int) int {
	if d.levels != nil {
		return d.levels[bright]
	}
	return bright
}

// dutyCycle converts a brightness level to nanoseconds of high time. The
// floor lth keeps the smallest pulse wide enough for the hardware to
// reproduce; the top duty value maps to the full period.
func (d *Device) dutyCycle(bright int) uint64 {
	v := uint64(d.dutyValue(bright))
	return d.lthNs + v*(d.periodNs-d.lthNs)/uint64(d.maxDuty())
}

// Package fx holds the per-tick transition logic of the lighting effects,
// kept free of timers and hardware so the sequences are testable on their
// own. The effect engine owns the cursors and feeds them through these
// functions on every timer firing.
package fx

import "rgbwd/types"

// PulseCurve is one full period of the breathing curve
// [e^sin(x*pi/2) - 1/e] * [255/(e - 1/e)], discretised to 77 steps.
// Stepping through it at a fixed interval gives a natural-feeling
// brighten/dim cycle: zero at the start, a single peak of 254, and a short
// run of trailing zeros before the curve wraps.
var PulseCurve = [...]int{
	0, 1, 2, 3, 4, 6, 8, 10, 13, 16, 20,
	24, 28, 34, 39, 45, 52, 60, 68, 77,
	86, 97, 107, 119, 130, 143, 155, 167,
	180, 192, 203, 214, 224, 233, 240, 246,
	251, 254, 251, 246, 240, 233, 224, 214,
	203, 192, 180, 167, 155, 143, 130, 119,
	107, 97, 86, 77, 68, 60, 52, 45, 39,
	34, 28, 24, 20, 16, 13, 10, 8, 6, 4,
	3, 2, 1, 0, 0, 0,
}

// Pulse reads the curve at cursor and returns the brightness plus the
// advanced cursor. An out-of-range cursor wraps to the start first.
func Pulse(cursor int) (brightness, next int) {
	if cursor < 0 || cursor >= len(PulseCurve) {
		cursor = 0
	}
	return PulseCurve[cursor], cursor + 1
}

// Blink alternates between all-off and the saved snapshot, starting dark.
func Blink(cursor int, snap types.Levels) (types.Levels, int) {
	if cursor == 0 {
		return types.Levels{}, 1
	}
	return snap, 0
}

// Heartbeat produces the double-beat cadence: phases 0 and 2 show the
// snapshot, phases 1 and 3 are dark. The gap scheduled after phase 3 is the
// long one (see HeartbeatLongGap).
func Heartbeat(cursor int, snap types.Levels) (types.Levels, int) {
	lv := snap
	if cursor%2 == 1 {
		lv = types.Levels{}
	}
	next := cursor + 1
	if cursor >= 3 {
		next = 0
	}
	return lv, next
}

// HeartbeatLongGap reports whether the tick that just serviced cursor is
// followed by the long inter-beat gap.
func HeartbeatLongGap(cursor int) bool { return cursor >= 3 }

// RainbowSeed is the hue-ramp starting point: full red, everything else off.
func RainbowSeed(max int) types.Levels {
	var lv types.Levels
	lv[types.Red] = max
	return lv
}

// Rainbow advances the six-phase hue ramp by one unit. Each phase moves
// exactly one of R,G,B and hands over to the next phase once that channel
// saturates at 0 or max. White is untouched.
func Rainbow(lv types.Levels, phase, max int) (types.Levels, int) {
	switch phase {
	case 0: // red full, green rising
		lv[types.Green]++
		if lv[types.Green] >= max {
			lv[types.Green] = max
			phase = 1
		}
	case 1: // green full, red falling
		lv[types.Red]--
		if lv[types.Red] <= 0 {
			lv[types.Red] = 0
			phase = 2
		}
	case 2: // green full, blue rising
		lv[types.Blue]++
		if lv[types.Blue] >= max {
			lv[types.Blue] = max
			phase = 3
		}
	case 3: // blue full, green falling
		lv[types.Green]--
		if lv[types.Green] <= 0 {
			lv[types.Green] = 0
			phase = 4
		}
	case 4: // blue full, red rising
		lv[types.Red]++
		if lv[types.Red] >= max {
			lv[types.Red] = max
			phase = 5
		}
	case 5: // red full, blue falling
		lv[types.Blue]--
		if lv[types.Blue] <= 0 {
			lv[types.Blue] = 0
			phase = 0
		}
	default:
		return RainbowSeed(max), 0
	}
	return lv, phase
}

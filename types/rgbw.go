package types

// ------------------------
// Colors
// ------------------------

// Color indexes one logical channel of the light head.
// The numeric order is the canonical update order.
type Color int

const (
	Red Color = iota
	Green
	Blue
	White
	NumColors
)

// ColorNames maps a Color to its manifest role name.
var ColorNames = [NumColors]string{
	Red:   "red",
	Green: "green",
	Blue:  "blue",
	White: "white",
}

func (c Color) String() string {
	if c < Red || c >= NumColors {
		return "invalid"
	}
	return ColorNames[c]
}

// Valid reports whether c names one of the four channels.
func (c Color) Valid() bool { return c >= Red && c < NumColors }

// Levels holds one brightness value per color, canonical order.
type Levels [NumColors]int

// ------------------------
// Channel backends
// ------------------------

// Backend tells how a channel drives its output.
type Backend uint8

const (
	BackendUnassigned Backend = iota
	BackendHardwarePWM
	BackendSoftwarePWM
)

func (b Backend) String() string {
	switch b {
	case BackendHardwarePWM:
		return "hw_pwm"
	case BackendSoftwarePWM:
		return "soft_pwm"
	default:
		return "unassigned"
	}
}

// ------------------------
// Effects
// ------------------------

// Effect selects one autonomous lighting effect. At most one effect is
// active per device at any time.
type Effect uint8

const (
	EffectNone Effect = iota
	EffectPulse
	EffectBlink
	EffectHeartbeat
	EffectRainbow
	NumEffects = 4
)

func (e Effect) String() string {
	switch e {
	case EffectPulse:
		return "pulse"
	case EffectBlink:
		return "blink"
	case EffectHeartbeat:
		return "heartbeat"
	case EffectRainbow:
		return "rainbow"
	default:
		return "none"
	}
}

// Package hwio abstracts the claimed hardware resources the services drive:
// hardware PWM channels and plain GPIO pins. Implementations own the
// platform specifics; services see only these handles and the claim/release
// registry.
package hwio

import "errors"

// PWMHandle is one claimed hardware PWM output. All times are nanoseconds.
type PWMHandle interface {
	// Configure programs duty cycle and period without changing the
	// enable state.
	Configure(dutyNs, periodNs uint64) error
	Enable() error
	Disable() error
	// PeriodNs reports the period the channel was last programmed or
	// pre-configured with.
	PeriodNs() uint64
}

// GPIOHandle is one claimed digital pin.
type GPIOHandle interface {
	Number() int
	ConfigureInput() error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
}

// Registry hands out exclusively-owned handles. A resource stays owned by
// devID until the matching Release call; double claims fail.
type Registry interface {
	ClaimPWM(devID string, chip, line int) (PWMHandle, error)
	ReleasePWM(devID string, chip, line int)

	ClaimGPIO(devID string, pin int) (GPIOHandle, error)
	ReleaseGPIO(devID string, pin int)
}

// Short error codes
var (
	ErrUnknownPin = errors.New("unknown_pin")
	ErrPinInUse   = errors.New("pin_in_use")

	ErrUnknownPWM = errors.New("unknown_pwm")
	ErrPWMInUse   = errors.New("pwm_in_use")
)

//go:build linux

package hwio

import (
	"fmt"
	"strconv"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// hostRegistry backs GPIO claims with periph.io pins and PWM claims with the
// kernel sysfs PWM class. One instance is shared by every probed device.
type hostRegistry struct {
	mu    sync.Mutex
	gpios map[int]string    // pin number -> owning devID
	pwms  map[[2]int]string // {chip, line} -> owning devID
}

// NewHostRegistry initialises the periph host drivers and returns a registry
// for the local machine.
func NewHostRegistry() (Registry, error) {
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	return &hostRegistry{
		gpios: map[int]string{},
		pwms:  map[[2]int]string{},
	}, nil
}

func (r *hostRegistry) ClaimGPIO(devID string, pin int) (GPIOHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, busy := r.gpios[pin]; busy {
		return nil, fmt.Errorf("%w: pin %d owned by %s", ErrPinInUse, pin, owner)
	}
	p := gpioreg.ByName(strconv.Itoa(pin))
	if p == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPin, pin)
	}
	r.gpios[pin] = devID
	return &periphPin{pin: p, n: pin}, nil
}

func (r *hostRegistry) ReleaseGPIO(devID string, pin int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gpios[pin] == devID {
		delete(r.gpios, pin)
	}
}

func (r *hostRegistry) ClaimPWM(devID string, chip, line int) (PWMHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int{chip, line}
	if owner, busy := r.pwms[key]; busy {
		return nil, fmt.Errorf("%w: pwmchip%d/pwm%d owned by %s", ErrPWMInUse, chip, line, owner)
	}
	h, err := openSysfsPWM(chip, line)
	if err != nil {
		return nil, err
	}
	r.pwms[key] = devID
	return h, nil
}

func (r *hostRegistry) ReleasePWM(devID string, chip, line int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int{chip, line}
	if r.pwms[key] == devID {
		delete(r.pwms, key)
	}
}

// periphPin adapts a periph.io PinIO to the GPIOHandle contract.
type periphPin struct {
	pin gpio.PinIO
	n   int
}

var _ GPIOHandle = (*periphPin)(nil)

func (p *periphPin) Number() int { return p.n }

func (p *periphPin) ConfigureInput() error {
	return p.pin.In(gpio.PullNoChange, gpio.NoEdge)
}

func (p *periphPin) ConfigureOutput(initial bool) error {
	return p.pin.Out(gpio.Level(initial))
}

func (p *periphPin) Set(level bool) { _ = p.pin.Out(gpio.Level(level)) }

func (p *periphPin) Get() bool { return p.pin.Read() == gpio.High }

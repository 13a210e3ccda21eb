// Package hwrev reports the board hardware/assembly revision. Four named
// GPIO address bits are sampled once at probe into a 4-bit lookup-table
// index; the matching table entry is the revision string. The pins stay
// claimed for the device's lifetime so nothing else can repurpose them.
package hwrev

import (
	"github.com/rs/zerolog"

	"rgbwd/errcode"
	"rgbwd/hwio"
	"rgbwd/x/strx"
)

const numBits = 4

// bitNames maps bit position to its manifest name.
var bitNames = [numBits]string{"addr0", "addr1", "addr2", "addr3"}

const invalidRevision = "INVALID HW / ASSY REVISION VALUE"

// Config is the hwrev section of the manifest: each ref-bits entry labels
// the GPIO at the same position, and lookup-table maps the resulting index
// to a revision string.
type Config struct {
	RefBits     []string `yaml:"ref-bits"`
	GPIOs       []int    `yaml:"gpios"`
	LookupTable []string `yaml:"lookup-table"`
}

// Device is the probed revision reporter. All accessors are read-only.
type Device struct {
	name     string
	reg      hwio.Registry
	pins     [numBits]hwio.GPIOHandle
	index    int
	revision string
	closed   bool
}

// Probe claims the four address bits, samples them and resolves the
// revision. Any claim failure releases everything claimed so far.
func Probe(name string, cfg Config, reg hwio.Registry, log zerolog.Logger) (dev *Device, err error) {
	if len(cfg.LookupTable) < 1 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "probe",
			Msg: "there should be at least one revision"}
	}
	if len(cfg.RefBits) != numBits || len(cfg.GPIOs) != numBits {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "probe",
			Msg: "four named gpios required to make the index, no more, no less"}
	}

	d := &Device{name: strx.Coalesce(name, "hwrev"), reg: reg}

	var claimed []func()
	defer func() {
		if err == nil {
			return
		}
		for i := len(claimed) - 1; i >= 0; i-- {
			claimed[i]()
		}
	}()

	for bit := 0; bit < numBits; bit++ {
		pos := indexOf(cfg.RefBits, bitNames[bit])
		if pos < 0 {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "probe",
				Msg: "couldn't find a matching name for " + bitNames[bit]}
		}
		pin := cfg.GPIOs[pos]
		h, cerr := reg.ClaimGPIO(d.name, pin)
		if cerr != nil {
			return nil, &errcode.E{C: errcode.ClaimFailed, Op: "probe",
				Msg: bitNames[bit], Err: cerr}
		}
		claimed = append(claimed, func() { reg.ReleaseGPIO(d.name, pin) })
		if cerr := h.ConfigureInput(); cerr != nil {
			return nil, &errcode.E{C: errcode.ClaimFailed, Op: "probe",
				Msg: bitNames[bit] + " direction", Err: cerr}
		}
		d.pins[bit] = h
		log.Debug().Str("dev", d.name).Str("bit", bitNames[bit]).Int("pin", pin).
			Msg("found address bit")
	}

	for bit := numBits - 1; bit >= 0; bit-- {
		d.index <<= 1
		if d.pins[bit].Get() {
			d.index |= 1
		}
	}

	if d.index < len(cfg.LookupTable) {
		d.revision = cfg.LookupTable[d.index]
	} else {
		d.revision = invalidRevision
	}

	log.Info().Str("dev", d.name).Int("index", d.index).Str("revision", d.revision).
		Msg("hwrev probed")
	return d, nil
}

// Name returns the reporter's device name.
func (d *Device) Name() string { return d.name }

// Revision returns the board revision string resolved at probe.
func (d *Device) Revision() string { return d.revision }

// TableIndex returns the 4-bit lookup-table index read from the pins.
func (d *Device) TableIndex() int { return d.index }

// Remove releases the address-bit pins. Idempotent.
func (d *Device) Remove() {
	if d.closed {
		return
	}
	d.closed = true
	for _, h := range d.pins {
		if h != nil {
			d.reg.ReleaseGPIO(d.name, h.Number())
		}
	}
}

func indexOf(names []string, want string) int {
	for i, n := range names {
		if n == want {
			return i
		}
	}
	return -1
}

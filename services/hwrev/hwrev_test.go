package hwrev

import (
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"rgbwd/errcode"
	"rgbwd/hwio"
)

type fakePin struct {
	n     int
	level bool
	input bool
}

var _ hwio.GPIOHandle = (*fakePin)(nil)

func (p *fakePin) Number() int                        { return p.n }
func (p *fakePin) ConfigureInput() error              { p.input = true; return nil }
func (p *fakePin) ConfigureOutput(initial bool) error { p.level = initial; return nil }
func (p *fakePin) Set(level bool)                     { p.level = level }
func (p *fakePin) Get() bool                          { return p.level }

type fakeRegistry struct {
	pins       map[int]*fakePin
	failClaims map[int]error
	claims     []string
	releases   []string
}

var _ hwio.Registry = (*fakeRegistry)(nil)

func newFakeRegistry(levels map[int]bool) *fakeRegistry {
	r := &fakeRegistry{pins: map[int]*fakePin{}, failClaims: map[int]error{}}
	for pin, lv := range levels {
		r.pins[pin] = &fakePin{n: pin, level: lv}
	}
	return r
}

func (r *fakeRegistry) ClaimPWM(devID string, chip, line int) (hwio.PWMHandle, error) {
	return nil, hwio.ErrPWMInUse
}
func (r *fakeRegistry) ReleasePWM(devID string, chip, line int) {}

func (r *fakeRegistry) ClaimGPIO(devID string, pin int) (hwio.GPIOHandle, error) {
	if err := r.failClaims[pin]; err != nil {
		return nil, err
	}
	h, ok := r.pins[pin]
	if !ok {
		h = &fakePin{n: pin}
		r.pins[pin] = h
	}
	r.claims = append(r.claims, fmt.Sprintf("gpio%d", pin))
	return h, nil
}

func (r *fakeRegistry) ReleaseGPIO(devID string, pin int) {
	r.releases = append(r.releases, fmt.Sprintf("gpio%d", pin))
}

func testConfig() Config {
	return Config{
		RefBits: []string{"addr0", "addr1", "addr2", "addr3"},
		GPIOs:   []int{20, 21, 22, 23},
		LookupTable: []string{
			"proto", "rev-a", "rev-b", "rev-c", "rev-d", "rev-e",
		},
	}
}

func TestProbeReadsIndexLSBFirst(t *testing.T) {
	// addr0 and addr2 high: index 0b0101 = 5.
	reg := newFakeRegistry(map[int]bool{20: true, 21: false, 22: true, 23: false})

	d, err := Probe("hwrev", testConfig(), reg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	t.Cleanup(d.Remove)

	if d.TableIndex() != 5 {
		t.Fatalf("index = %d, want 5", d.TableIndex())
	}
	if d.Revision() != "rev-e" {
		t.Fatalf("revision = %q, want rev-e", d.Revision())
	}
	for _, pin := range []int{20, 21, 22, 23} {
		if !reg.pins[pin].input {
			t.Fatalf("pin %d not configured as input", pin)
		}
	}
}

func TestProbeHonoursBitNameOrder(t *testing.T) {
	// The ref-bits list is scrambled relative to the gpio list; the name at
	// each position labels the pin at the same position.
	cfg := testConfig()
	cfg.RefBits = []string{"addr3", "addr1", "addr0", "addr2"}
	cfg.GPIOs = []int{23, 21, 20, 22}
	reg := newFakeRegistry(map[int]bool{20: true, 21: false, 22: true, 23: false})

	d, err := Probe("hwrev", cfg, reg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	t.Cleanup(d.Remove)

	if d.TableIndex() != 5 {
		t.Fatalf("index = %d, want 5 regardless of listing order", d.TableIndex())
	}
}

func TestProbeOutOfTableFallsBack(t *testing.T) {
	cfg := testConfig()
	cfg.LookupTable = []string{"proto", "rev-a"}
	reg := newFakeRegistry(map[int]bool{20: true, 21: true, 22: false, 23: false})

	d, err := Probe("hwrev", cfg, reg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	t.Cleanup(d.Remove)

	if d.TableIndex() != 3 {
		t.Fatalf("index = %d, want 3", d.TableIndex())
	}
	if d.Revision() != invalidRevision {
		t.Fatalf("revision = %q, want the invalid marker", d.Revision())
	}
}

func TestProbeConfigValidation(t *testing.T) {
	reg := newFakeRegistry(nil)

	cfg := testConfig()
	cfg.LookupTable = nil
	if _, err := Probe("hwrev", cfg, reg, zerolog.Nop()); !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("empty table: err = %v", err)
	}

	cfg = testConfig()
	cfg.GPIOs = []int{20, 21, 22}
	if _, err := Probe("hwrev", cfg, reg, zerolog.Nop()); !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("three gpios: err = %v", err)
	}

	cfg = testConfig()
	cfg.RefBits = []string{"addr0", "addr1", "addr2", "bogus"}
	if _, err := Probe("hwrev", cfg, reg, zerolog.Nop()); !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("unknown bit name: err = %v", err)
	}
	if len(reg.claims) != len(reg.releases) {
		t.Fatalf("claims %v not balanced by releases %v", reg.claims, reg.releases)
	}
}

func TestProbeRollbackOnClaimFailure(t *testing.T) {
	reg := newFakeRegistry(nil)
	reg.failClaims[22] = errors.New("pin busy") // addr2, third claim

	_, err := Probe("hwrev", testConfig(), reg, zerolog.Nop())
	if !errors.Is(err, errcode.ClaimFailed) {
		t.Fatalf("err = %v, want claim_failed", err)
	}
	if len(reg.claims) != 2 || len(reg.releases) != 2 {
		t.Fatalf("claims %v releases %v, want both prior claims unwound", reg.claims, reg.releases)
	}
	for i := range reg.claims {
		if reg.releases[len(reg.releases)-1-i] != reg.claims[i] {
			t.Fatalf("release order %v does not unwind claim order %v", reg.releases, reg.claims)
		}
	}
}

func TestRemoveIdempotent(t *testing.T) {
	reg := newFakeRegistry(nil)
	d, err := Probe("hwrev", testConfig(), reg, zerolog.Nop())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}

	d.Remove()
	d.Remove()
	if len(reg.releases) != 4 {
		t.Fatalf("releases = %v, want exactly one per pin", reg.releases)
	}
}

package rgbw

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"rgbwd/errcode"
	"rgbwd/services/rgbw/config"
	"rgbwd/types"
)

func TestHardwareDutyMonotonic(t *testing.T) {
	reg := newFakeRegistry()
	d := probeTestDevice(t, reg)

	red := reg.pwms[[2]int{0, 0}]
	var last uint64
	for level := 1; level <= d.MaxBrightness(); level++ {
		if err := d.SetBrightness(types.Red, level); err != nil {
			t.Fatalf("SetBrightness(%d): %v", level, err)
		}
		if red.dutyNs < last {
			t.Fatalf("duty not monotonic: level %d gave %d after %d", level, red.dutyNs, last)
		}
		if !red.enabled {
			t.Fatalf("level %d: output not enabled", level)
		}
		last = red.dutyNs
	}
	// Top level without a lookup table drives the full period.
	if red.dutyNs != d.PeriodNs() {
		t.Fatalf("duty at max = %d, want full period %d", red.dutyNs, d.PeriodNs())
	}
}

func TestHardwareZeroDisablesOutput(t *testing.T) {
	reg := newFakeRegistry()
	d := probeTestDevice(t, reg)

	if err := d.SetBrightness(types.Red, 100); err != nil {
		t.Fatalf("SetBrightness: %v", err)
	}
	red := reg.pwms[[2]int{0, 0}]
	if !red.enabled {
		t.Fatal("output should be enabled at level 100")
	}

	if err := d.SetBrightness(types.Red, 0); err != nil {
		t.Fatalf("SetBrightness(0): %v", err)
	}
	if red.enabled || red.dutyNs != 0 {
		t.Fatalf("level 0: enabled=%v duty=%d, want disabled with zero duty", red.enabled, red.dutyNs)
	}
}

func TestLevelsTableRemapsDuty(t *testing.T) {
	reg := newFakeRegistry()
	m := testManifest()
	m.MaxBrightness = 0
	m.BrightnessLevels = []int{0, 8, 64, 255}
	d, err := Probe(m, reg, Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	t.Cleanup(d.Remove)

	if d.MaxBrightness() != 3 {
		t.Fatalf("max brightness = %d, want 3 (last table index)", d.MaxBrightness())
	}
	if err := d.SetBrightness(types.Red, 4); !errors.Is(err, errcode.InvalidLevel) {
		t.Fatalf("level beyond table: err = %v", err)
	}

	// lth is derived from the table's top value.
	wantLth := d.PeriodNs() / 255
	if d.lthNs != wantLth {
		t.Fatalf("lth = %d, want %d", d.lthNs, wantLth)
	}
}

func TestNotifyHooksWrapEveryUpdate(t *testing.T) {
	reg := newFakeRegistry()
	var after []int
	opts := Options{
		Logger: zerolog.Nop(),
		Notify: func(_ *Device, b int) int {
			if b > 50 {
				return 50 // device-specific cap
			}
			return b
		},
		NotifyAfter: func(_ *Device, b int) { after = append(after, b) },
	}
	d, err := Probe(testManifest(), reg, opts)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	t.Cleanup(d.Remove)
	after = after[:0] // drop the initial all-off batch

	if err := d.SetBrightness(types.Red, 200); err != nil {
		t.Fatalf("SetBrightness: %v", err)
	}

	red := reg.pwms[[2]int{0, 0}]
	capped := d.lthNs + 50*(d.PeriodNs()-d.lthNs)/uint64(d.MaxBrightness())
	if red.dutyNs != capped {
		t.Fatalf("duty = %d, want pre-hook capped %d", red.dutyNs, capped)
	}
	if len(after) != 1 || after[0] != 50 {
		t.Fatalf("post-hook saw %v, want the finalised value 50", after)
	}
	// The stored target keeps the caller's request; only the applied value
	// is remapped.
	if b, _ := d.Brightness(types.Red); b != 200 {
		t.Fatalf("stored brightness = %d, want 200", b)
	}
}

func TestUpdateFailureDoesNotRollBackBatch(t *testing.T) {
	reg := newFakeRegistry()
	d := probeTestDevice(t, reg)

	d.mu.Lock()
	d.chans[types.Red].brightness = 10
	d.chans[types.Green].brightness = 20
	d.chans[types.Blue].brightness = 30
	reg.pwms[[2]int{0, 1}].failNext = errors.New("bus fault") // green write fails
	err := d.updateAllLocked()
	d.mu.Unlock()

	if !errors.Is(err, errcode.HWProgramFailed) {
		t.Fatalf("err = %v, want hw_program_failed", err)
	}
	// Red and blue were still applied; green keeps its last-good state.
	if !reg.pwms[[2]int{0, 0}].enabled || !reg.pwms[[2]int{0, 2}].enabled {
		t.Fatal("independent channels rolled back by one failed write")
	}
	if reg.pwms[[2]int{0, 1}].enabled {
		t.Fatal("failed channel should not have been enabled")
	}
}

func TestThreeColorHeadSkipsWhite(t *testing.T) {
	reg := newFakeRegistry()
	m := &config.Manifest{
		Name:          "rgb-only",
		PWMs:          []config.PWMRef{{Chip: 0, Line: 0}, {Chip: 0, Line: 1}, {Chip: 0, Line: 2}},
		MaxBrightness: 255,
	}
	d, err := Probe(m, reg, Options{Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	t.Cleanup(d.Remove)

	if got := d.Backend(types.White); got != types.BackendUnassigned {
		t.Fatalf("white backend = %v, want unassigned", got)
	}
	if err := d.SetBrightness(types.White, 1); !errors.Is(err, errcode.InvalidChannel) {
		t.Fatalf("write to unassigned channel: err = %v", err)
	}
	if len(reg.claims) != 3 {
		t.Fatalf("claims = %v, want the three pwm lines only", reg.claims)
	}
}

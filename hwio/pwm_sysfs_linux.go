//go:build linux

package hwio

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// sysfsPWM drives one line of a /sys/class/pwm chip. The pseudofiles are
// written on every call; the kernel rejects a duty_cycle larger than the
// current period, so Configure clears the duty first when shrinking the
// period.
type sysfsPWM struct {
	chipPath string
	line     int

	periodNs uint64
	dutyNs   uint64
}

var _ PWMHandle = (*sysfsPWM)(nil)

func openSysfsPWM(chip, line int) (*sysfsPWM, error) {
	p := &sysfsPWM{
		chipPath: fmt.Sprintf("/sys/class/pwm/pwmchip%d", chip),
		line:     line,
	}
	if err := p.export(); err != nil {
		return nil, err
	}
	// Pick up a period pre-configured by the platform, if any.
	if v, err := p.readLine("period"); err == nil {
		p.periodNs = v
	}
	if v, err := p.readLine("duty_cycle"); err == nil {
		p.dutyNs = v
	}
	return p, nil
}

func (p *sysfsPWM) linePath() string {
	return fmt.Sprintf("%s/pwm%d", p.chipPath, p.line)
}

func (p *sysfsPWM) export() error {
	if _, err := os.Lstat(p.linePath()); err == nil {
		return nil // already exported
	}
	return p.writeChip("export", uint64(p.line))
}

func (p *sysfsPWM) writeChip(name string, v uint64) error {
	path := p.chipPath + "/" + name
	err := os.WriteFile(path, []byte(strconv.FormatUint(v, 10)), 0o600)
	return errors.Wrap(err, path)
}

func (p *sysfsPWM) writeLine(name string, v uint64) error {
	path := p.linePath() + "/" + name
	err := os.WriteFile(path, []byte(strconv.FormatUint(v, 10)), 0o600)
	return errors.Wrap(err, path)
}

func (p *sysfsPWM) readLine(name string) (uint64, error) {
	path := p.linePath() + "/" + name
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrap(err, path)
	}
	return strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
}

func (p *sysfsPWM) Configure(dutyNs, periodNs uint64) error {
	if periodNs < p.dutyNs {
		// Shrinking below the programmed duty: zero the duty first or the
		// period write is rejected.
		if err := p.writeLine("duty_cycle", 0); err != nil {
			return err
		}
		p.dutyNs = 0
	}
	if periodNs != p.periodNs {
		if err := p.writeLine("period", periodNs); err != nil {
			return err
		}
		p.periodNs = periodNs
	}
	if dutyNs != p.dutyNs {
		if err := p.writeLine("duty_cycle", dutyNs); err != nil {
			return err
		}
		p.dutyNs = dutyNs
	}
	return nil
}

func (p *sysfsPWM) Enable() error { return p.writeLine("enable", 1) }

func (p *sysfsPWM) Disable() error { return p.writeLine("enable", 0) }

func (p *sysfsPWM) PeriodNs() uint64 { return p.periodNs }

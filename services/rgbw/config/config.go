// Package config holds the static manifest describing one RGBW light head
// and the role-assignment rules that turn it into per-color channels.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rgbwd/errcode"
	"rgbwd/types"
)

// PWMRef names one hardware PWM line.
type PWMRef struct {
	Chip int `yaml:"chip"`
	Line int `yaml:"line"`
}

// Manifest is read once at setup. Colors are declared either through a
// hardware PWM reference or a GPIO pin; naming is optional. With names, each
// entry of PWMNames/GPIONames labels the reference at the same position.
// Without names, roles are assigned positionally in R,G,B,W order across
// PWMs first, then GPIOs.
type Manifest struct {
	Name      string   `yaml:"name"`
	PWMs      []PWMRef `yaml:"pwms"`
	GPIOs     []int    `yaml:"gpios"`
	PWMNames  []string `yaml:"pwm-names"`
	GPIONames []string `yaml:"gpio-names"`

	// BrightnessLevels maps a brightness index to a duty value; the last
	// entry defines the maximum. MaxBrightness is the fallback when no
	// table is given.
	BrightnessLevels []int `yaml:"brightness-levels"`
	MaxBrightness    int   `yaml:"max-brightness"`

	// FrequencyHz picks the shared period when no hardware PWM channel
	// exists to derive it from. 0 keeps the built-in default.
	FrequencyHz uint32 `yaml:"frequency-hz"`
}

// Role is one validated channel assignment.
type Role struct {
	Color   types.Color
	Backend types.Backend
	PWM     PWMRef // valid when Backend is BackendHardwarePWM
	Pin     int    // valid when Backend is BackendSoftwarePWM
}

// Load reads a manifest file. Validation happens at probe time.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the manifest and returns the channel role assignments in
// canonical color order.
func (m *Manifest) Validate() ([]Role, error) {
	nColors := len(m.PWMs) + len(m.GPIOs)
	if nColors < 3 {
		return nil, &errcode.E{C: errcode.NotEnoughColors, Op: "validate",
			Msg: "not enough colors defined with pwm and gpio"}
	}
	if nColors > 4 {
		return nil, &errcode.E{C: errcode.TooManyColors, Op: "validate",
			Msg: "too many colors defined with pwm and gpio"}
	}
	if len(m.BrightnessLevels) == 0 && m.MaxBrightness <= 0 {
		return nil, &errcode.E{C: errcode.MissingLevels, Op: "validate",
			Msg: "brightness levels must be defined"}
	}
	for _, lvl := range m.BrightnessLevels {
		if lvl < 0 {
			return nil, &errcode.E{C: errcode.MissingLevels, Op: "validate",
				Msg: "brightness levels must be non-negative"}
		}
	}

	nNames := len(m.PWMNames) + len(m.GPIONames)
	if nNames == 0 {
		return m.positionalRoles(), nil
	}
	if nNames != nColors {
		return nil, &errcode.E{C: errcode.NameCountMismatch, Op: "validate",
			Msg: fmt.Sprintf("names=%d references=%d", nNames, nColors)}
	}
	if len(m.PWMNames) != len(m.PWMs) || len(m.GPIONames) != len(m.GPIOs) {
		return nil, &errcode.E{C: errcode.NameCountMismatch, Op: "validate",
			Msg: fmt.Sprintf("pwm-names=%d pwms=%d gpio-names=%d gpios=%d",
				len(m.PWMNames), len(m.PWMs), len(m.GPIONames), len(m.GPIOs))}
	}
	return m.namedRoles(nNames)
}

func (m *Manifest) namedRoles(nNames int) ([]Role, error) {
	roles := make([]Role, 0, nNames)
	for c := types.Red; c < types.Color(nNames); c++ {
		name := types.ColorNames[c]
		if idx := indexOf(m.PWMNames, name); idx >= 0 {
			roles = append(roles, Role{Color: c, Backend: types.BackendHardwarePWM, PWM: m.PWMs[idx]})
			continue
		}
		if idx := indexOf(m.GPIONames, name); idx >= 0 {
			roles = append(roles, Role{Color: c, Backend: types.BackendSoftwarePWM, Pin: m.GPIOs[idx]})
			continue
		}
		return nil, &errcode.E{C: errcode.UnknownColorName, Op: "validate",
			Msg: "could not find the name for color " + name}
	}
	return roles, nil
}

// positionalRoles assigns R,G,B,W across PWM references first, then GPIOs.
func (m *Manifest) positionalRoles() []Role {
	roles := make([]Role, 0, len(m.PWMs)+len(m.GPIOs))
	c := types.Red
	for _, ref := range m.PWMs {
		roles = append(roles, Role{Color: c, Backend: types.BackendHardwarePWM, PWM: ref})
		c++
	}
	for _, pin := range m.GPIOs {
		roles = append(roles, Role{Color: c, Backend: types.BackendSoftwarePWM, Pin: pin})
		c++
	}
	return roles
}

func indexOf(names []string, want string) int {
	for i, n := range names {
		if n == want {
			return i
		}
	}
	return -1
}

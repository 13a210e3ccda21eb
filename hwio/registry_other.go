//go:build !linux

package hwio

import "errors"

// NewHostRegistry is only implemented for Linux hosts; everywhere else the
// services run against fakes.
func NewHostRegistry() (Registry, error) {
	return nil, errors.New("hwio: no host registry on this platform")
}

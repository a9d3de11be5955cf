package model

import (
	"strconv"
	"strings"

	"github.com/efficientgo/core/errors"
)

// Path identifies a device position in the topology: the bus number
// plus the chain of hub port numbers leading to the device, matching
// the sysfs name syntax <bus>-<port>[.<port>]* (e.g. "3-2.1").
type Path struct {
	Bus   int
	Ports []int
}

// ParsePath parses the canonical sysfs device name. Malformed input
// fails with ErrInvalidPath.
func ParsePath(s string) (Path, error) {
	busStr, portStr, ok := strings.Cut(s, "-")
	if !ok {
		return Path{}, errors.Wrapf(ErrInvalidPath, "%q: missing bus separator", s)
	}

	bus, err := strconv.Atoi(busStr)
	if err != nil || bus <= 0 {
		return Path{}, errors.Wrapf(ErrInvalidPath, "%q: bad bus number", s)
	}

	parts := strings.Split(portStr, ".")
	ports := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			return Path{}, errors.Wrapf(ErrInvalidPath, "%q: bad port number %q", s, p)
		}
		ports = append(ports, n)
	}

	return Path{Bus: bus, Ports: ports}, nil
}

func (p Path) String() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(p.Bus))
	for i, port := range p.Ports {
		if i == 0 {
			b.WriteByte('-')
		} else {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(port))
	}
	return b.String()
}

// Parent returns the path of the parent hub and false when the device
// hangs directly off the root hub.
func (p Path) Parent() (Path, bool) {
	if len(p.Ports) <= 1 {
		return Path{}, false
	}
	return Path{Bus: p.Bus, Ports: p.Ports[:len(p.Ports)-1]}, true
}

// Depth is 0 for direct children of the root hub.
func (p Path) Depth() int {
	if len(p.Ports) == 0 {
		return 0
	}
	return len(p.Ports) - 1
}

// Compare orders paths by bus number, then by port sequence
// numerically. A prefix sorts before its extensions, so compare order
// matches depth-first tree order.
func (p Path) Compare(o Path) int {
	if p.Bus != o.Bus {
		if p.Bus < o.Bus {
			return -1
		}
		return 1
	}
	for i := 0; i < len(p.Ports) && i < len(o.Ports); i++ {
		if p.Ports[i] != o.Ports[i] {
			if p.Ports[i] < o.Ports[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(p.Ports) < len(o.Ports):
		return -1
	case len(p.Ports) > len(o.Ports):
		return 1
	default:
		return 0
	}
}

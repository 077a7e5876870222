package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// Zone identifies one of the township's four collection districts.
type Zone int

const (
	Zone1 Zone = iota + 1
	Zone2
	Zone3
	Zone4
)

// Zones lists every collection district in order.
var Zones = []Zone{Zone1, Zone2, Zone3, Zone4}

var ErrInvalidZone = fmt.Errorf("invalid collection zone")

func (z Zone) Valid() bool {
	return z >= Zone1 && z <= Zone4
}

func (z Zone) String() string {
	return fmt.Sprintf("Zone %d", int(z))
}

// ParseZone accepts "Zone 3", "zone3" or "3".
func ParseZone(s string) (Zone, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.TrimPrefix(normalized, "zone")
	normalized = strings.TrimSpace(normalized)

	n, err := strconv.Atoi(normalized)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidZone, s)
	}
	z := Zone(n)
	if !z.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidZone, s)
	}
	return z, nil
}

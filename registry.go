package pinkit

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrLineNotFound is returned when a command names a (group, line)
// pair absent from the registry. Commands arrive from the bus, so an
// unknown pair is an expected condition, not a fault.
var ErrLineNotFound = errors.New("line not found")

// LineKey identifies one named line within a group.
type LineKey struct {
	Group string
	Line  string
}

// LineEntry binds one line to its physical pin.
type LineEntry struct {
	Group string
	Line  string
	Pin   uint16
}

// LineRegistry is the immutable (group, line) → physical pin map,
// built once at startup from configuration.
type LineRegistry struct {
	entries []LineEntry
	byKey   map[LineKey]uint16
}

// NewLineRegistry validates the configured groups and builds the
// registry. Physical pins must be unique across all groups: two lines
// sharing a pin would fight over it.
func NewLineRegistry(groups map[string]map[string]uint16) (*LineRegistry, error) {
	if len(groups) == 0 {
		return nil, errors.New("no groups configured")
	}

	reg := &LineRegistry{byKey: make(map[LineKey]uint16)}
	pinOwner := make(map[uint16]LineKey)

	groupNames := make([]string, 0, len(groups))
	for name := range groups {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	for _, group := range groupNames {
		lines := groups[group]
		if len(lines) == 0 {
			return nil, errors.Errorf("group %s has no lines", group)
		}

		lineNames := make([]string, 0, len(lines))
		for name := range lines {
			lineNames = append(lineNames, name)
		}
		sort.Strings(lineNames)

		for _, line := range lineNames {
			pin := lines[line]
			key := LineKey{Group: group, Line: line}
			if owner, taken := pinOwner[pin]; taken {
				return nil, errors.Errorf("pin %d bound to both %s/%s and %s/%s", pin, owner.Group, owner.Line, group, line)
			}
			pinOwner[pin] = key
			reg.byKey[key] = pin
			reg.entries = append(reg.entries, LineEntry{Group: group, Line: line, Pin: pin})
		}
	}

	return reg, nil
}

// Resolve looks up the physical pin for a (group, line) pair.
func (lr *LineRegistry) Resolve(group, line string) (uint16, error) {
	pin, found := lr.byKey[LineKey{Group: group, Line: line}]
	if !found {
		return 0, ErrLineNotFound
	}
	return pin, nil
}

// Entries returns every binding in a stable, sorted order.
func (lr *LineRegistry) Entries() []LineEntry {
	entries := make([]LineEntry, len(lr.entries))
	copy(entries, lr.entries)
	return entries
}

// Pins returns every physical pin in registry order.
func (lr *LineRegistry) Pins() (pins []uint16) {
	for _, entry := range lr.entries {
		pins = append(pins, entry.Pin)
	}
	return
}

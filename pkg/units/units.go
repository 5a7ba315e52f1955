// Package units maps machine identifiers to their organizational production
// unit (îlot). The mapping is hand-maintained: plants reorganize rarely, and
// when they do this table is the single place to touch.
package units

import "strings"

// MachinePrefix is the workcenter family this deployment tracks. Machines
// outside the family never classify into a unit.
const MachinePrefix = "850MS"

// Unknown is returned for machines matching no unit. Unknown machines stay in
// global aggregates but are dropped from unit-scoped ones.
const Unknown = "UNKNOWN"

// Order is the display order of units, used for stable per-unit output.
var Order = []string{"PM1", "PM2", "BZ1", "BZ2", "GRM"}

// Mapping is unit id → machine-number suffixes (the digits after
// MachinePrefix). 24 machines across 5 units as of the last plant survey.
var Mapping = map[string][]string{
	"PM1": {"135", "122", "123", "125"},
	"PM2": {"143", "146", "150", "158"},
	"BZ1": {"157", "104", "077", "087"},
	"BZ2": {"071", "130", "155", "073"},
	"GRM": {"070", "085", "086", "161", "120", "144", "091", "117"},
}

// Classify returns the unit owning the machine, or Unknown. This runs once
// per record during a batch refresh, so the linear scan over the table is fine.
func Classify(machineID string) string {
	m := strings.ToUpper(strings.TrimSpace(machineID))
	if m == "" {
		return Unknown
	}
	for _, unit := range Order {
		for _, suffix := range Mapping[unit] {
			if strings.Contains(m, MachinePrefix+suffix) {
				return unit
			}
		}
	}
	return Unknown
}

// IsKnown reports whether id names a configured unit (case-insensitive).
func IsKnown(id string) bool {
	id = strings.ToUpper(id)
	_, ok := Mapping[id]
	return ok
}

// InFamily reports whether the machine belongs to the tracked workcenter
// family. The global snapshot only keeps family rows, mirroring the export
// filter the reporting team applies by hand.
func InFamily(machineID string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(machineID)), MachinePrefix)
}

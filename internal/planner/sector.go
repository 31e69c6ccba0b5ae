package planner

import (
	"fmt"
	"strings"
)

// Sector is a user-togglable domain gating which AI actions may take effect.
type Sector string

const (
	SectorProductivity Sector = "Productivity"
	SectorHabits       Sector = "Habits"
	SectorGoals        Sector = "Goals"
)

// AllSectors lists every sector in display order.
var AllSectors = []Sector{SectorProductivity, SectorHabits, SectorGoals}

// ParseSector matches a sector name case-insensitively.
func ParseSector(raw string) (Sector, error) {
	for _, s := range AllSectors {
		if strings.EqualFold(strings.TrimSpace(raw), string(s)) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown sector %q", raw)
}

// ParseSectors parses and de-duplicates a list of sector names, keeping order.
func ParseSectors(raw []string) ([]Sector, error) {
	out := make([]Sector, 0, len(raw))
	seen := make(map[Sector]struct{}, len(raw))
	for _, r := range raw {
		s, err := ParseSector(r)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

// HasSector reports whether s is in sectors.
func HasSector(sectors []Sector, s Sector) bool {
	for _, candidate := range sectors {
		if candidate == s {
			return true
		}
	}
	return false
}

package planner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StaticMap is a Planner backed by a fixed lookup table of travel estimates
// between named locations. The real path planner (routing, map data,
// simulation) is an external collaborator out of scope for this module;
// StaticMap exists so the bundled demo binaries have a concrete Planner to
// run against, loaded from the same YAML configuration style as
// internal/config.
type StaticMap struct {
	Routes map[string]map[string]Estimate
}

// EstimateTravel looks up the configured estimate from->to. Travelling from
// a location to itself is free. An unconfigured pair is an error rather than
// a zero estimate, so a missing route surfaces as a bid failure (a no-bid)
// instead of silently proposing an instant move.
func (m StaticMap) EstimateTravel(from, to string) (Estimate, error) {
	if from == to {
		return Estimate{}, nil
	}
	if dests, ok := m.Routes[from]; ok {
		if est, ok := dests[to]; ok {
			return est, nil
		}
	}
	return Estimate{}, fmt.Errorf("planner: no route from %q to %q", from, to)
}

// routesFile is the on-disk shape of a StaticMap: a flat list of directed
// edges rather than a nested map, easier to hand-author and review.
type routesFile struct {
	Routes []struct {
		From     string  `yaml:"from"`
		To       string  `yaml:"to"`
		Mean     float64 `yaml:"mean"`
		Variance float64 `yaml:"variance"`
	} `yaml:"routes"`
}

// LoadStaticMap reads a StaticMap from a YAML file of from/to/mean/variance
// entries.
func LoadStaticMap(path string) (StaticMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return StaticMap{}, fmt.Errorf("planner: reading %s: %w", path, err)
	}

	var raw routesFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return StaticMap{}, fmt.Errorf("planner: parsing yaml: %w", err)
	}

	m := StaticMap{Routes: make(map[string]map[string]Estimate, len(raw.Routes))}
	for _, r := range raw.Routes {
		if m.Routes[r.From] == nil {
			m.Routes[r.From] = make(map[string]Estimate)
		}
		m.Routes[r.From][r.To] = Estimate{Mean: r.Mean, Variance: r.Variance}
	}
	return m, nil
}

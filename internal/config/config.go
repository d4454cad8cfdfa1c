// Package config loads and validates the coordinator's YAML configuration,
// covering every key in the external interface: bidding rule, alternative
// timeslot policy, closure/freeze windows, dispatch queue horizon, recovery
// method, STP method, and fleet roster.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BiddingRule selects the Bidder.Rule used to score candidate insertions.
type BiddingRule string

const (
	BiddingRuleCompletionTime         BiddingRule = "completion_time"
	BiddingRuleCompletionTimeDistance BiddingRule = "completion_time_distance"
	BiddingRuleMakespan               BiddingRule = "makespan"
	BiddingRuleMakespanDistance       BiddingRule = "makespan_distance"
	BiddingRuleIdleTime               BiddingRule = "idle_time"
)

func (r BiddingRule) valid() bool {
	switch r {
	case BiddingRuleCompletionTime, BiddingRuleCompletionTimeDistance,
		BiddingRuleMakespan, BiddingRuleMakespanDistance, BiddingRuleIdleTime:
		return true
	default:
		return false
	}
}

// RecoveryMethod selects how the timetable monitor reacts to an
// inconsistency discovered while recomputing a dispatchable graph.
type RecoveryMethod string

const (
	RecoveryMethodPreempt    RecoveryMethod = "preempt"
	RecoveryMethodReallocate RecoveryMethod = "re-allocate"
)

func (r RecoveryMethod) valid() bool {
	switch r {
	case RecoveryMethodPreempt, RecoveryMethodReallocate:
		return true
	default:
		return false
	}
}

// STPMethod selects which temporal-network flavor robots build: a plain STN,
// or an STNU with contingent travel/work edges.
type STPMethod string

const (
	STPMethodSTN  STPMethod = "stn"
	STPMethodSTNU STPMethod = "stnu"
)

func (m STPMethod) valid() bool {
	switch m {
	case STPMethodSTN, STPMethodSTNU:
		return true
	default:
		return false
	}
}

// Config is the coordinator's top-level configuration, recognizing every key
// named in the external interface.
type Config struct {
	BiddingRule          BiddingRule    `yaml:"bidding_rule"`
	AlternativeTimeslots bool           `yaml:"alternative_timeslots"`
	ClosureWindow        time.Duration  `yaml:"closure_window_s"`
	FreezeWindow         time.Duration  `yaml:"freeze_window_minutes"`
	NQueuedTasks         int            `yaml:"n_queued_tasks"`
	RecoveryMethod       RecoveryMethod `yaml:"recovery_method"`
	STPMethod            STPMethod      `yaml:"stp_method"`
	Fleet                []string       `yaml:"fleet"`

	// BiddingAlpha weights the distance term in the *_distance bidding rules;
	// not an external interface key, defaults to the 0.1 used throughout the
	// bidder's design notes.
	BiddingAlpha float64 `yaml:"bidding_alpha"`
}

// durationConfig is the wire shape of Config: closure_window_s and
// freeze_window_minutes are plain numbers (seconds, minutes respectively) in
// the YAML file, not Go duration strings.
type durationConfig struct {
	BiddingRule          BiddingRule    `yaml:"bidding_rule"`
	AlternativeTimeslots bool           `yaml:"alternative_timeslots"`
	ClosureWindowSeconds float64        `yaml:"closure_window_s"`
	FreezeWindowMinutes  float64        `yaml:"freeze_window_minutes"`
	NQueuedTasks         int            `yaml:"n_queued_tasks"`
	RecoveryMethod       RecoveryMethod `yaml:"recovery_method"`
	STPMethod            STPMethod      `yaml:"stp_method"`
	Fleet                []string       `yaml:"fleet"`
	BiddingAlpha         *float64       `yaml:"bidding_alpha"`
}

// Load reads and validates a Config from the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse validates a Config from raw YAML bytes.
func Parse(data []byte) (*Config, error) {
	var raw durationConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing yaml: %w", err)
	}

	alpha := 0.1
	if raw.BiddingAlpha != nil {
		alpha = *raw.BiddingAlpha
	}

	cfg := &Config{
		BiddingRule:          raw.BiddingRule,
		AlternativeTimeslots: raw.AlternativeTimeslots,
		ClosureWindow:        time.Duration(raw.ClosureWindowSeconds * float64(time.Second)),
		FreezeWindow:         time.Duration(raw.FreezeWindowMinutes * float64(time.Minute)),
		NQueuedTasks:         raw.NQueuedTasks,
		RecoveryMethod:       raw.RecoveryMethod,
		STPMethod:            raw.STPMethod,
		Fleet:                raw.Fleet,
		BiddingAlpha:         alpha,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown enum values, a non-positive closure window and a
// negative freeze window (zero is accepted) before the
// coordinator starts, failing fast rather than surfacing a confusing error
// mid-run.
func (c *Config) Validate() error {
	if !c.BiddingRule.valid() {
		return fmt.Errorf("config: unrecognized bidding_rule %q", c.BiddingRule)
	}
	if !c.RecoveryMethod.valid() {
		return fmt.Errorf("config: unrecognized recovery_method %q", c.RecoveryMethod)
	}
	if !c.STPMethod.valid() {
		return fmt.Errorf("config: unrecognized stp_method %q", c.STPMethod)
	}
	if c.ClosureWindow <= 0 {
		return fmt.Errorf("config: closure_window_s must be positive, got %s", c.ClosureWindow)
	}
	if c.FreezeWindow < 0 {
		return fmt.Errorf("config: freeze_window_minutes must not be negative, got %s", c.FreezeWindow)
	}
	if c.NQueuedTasks <= 0 {
		return fmt.Errorf("config: n_queued_tasks must be positive, got %d", c.NQueuedTasks)
	}
	if len(c.Fleet) == 0 {
		return fmt.Errorf("config: fleet must name at least one robot")
	}
	seen := make(map[string]bool, len(c.Fleet))
	for _, id := range c.Fleet {
		if id == "" {
			return fmt.Errorf("config: fleet entries must not be empty")
		}
		if seen[id] {
			return fmt.Errorf("config: duplicate fleet entry %q", id)
		}
		seen[id] = true
	}
	return nil
}

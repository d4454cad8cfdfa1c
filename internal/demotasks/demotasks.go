// Package demotasks loads a fixed task list for the bundled demo binaries
// from a YAML file, standing in for the external task-injection interface
// spec.md leaves out of scope: something has to hand the coordinator its
// initial tasks_to_allocate.
package demotasks

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/joeycumines/fleet-auction/internal/task"
)

// entry is one task's on-disk shape: pickup window times are offsets in
// seconds from the fleet's ZTP, easier to hand-author than absolute
// timestamps.
type entry struct {
	Pickup              string  `yaml:"pickup"`
	Delivery            string  `yaml:"delivery"`
	EarliestPickupAfter float64 `yaml:"earliest_pickup_after_s"`
	LatestPickupAfter   float64 `yaml:"latest_pickup_after_s"`
}

type tasksFile struct {
	Tasks []entry `yaml:"tasks"`
}

// Load reads a demo task list from the YAML file at path, anchoring each
// task's pickup window at ztp.
func Load(path string, ztp time.Time) ([]*task.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("demotasks: reading %s: %w", path, err)
	}

	var raw tasksFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("demotasks: parsing yaml: %w", err)
	}

	out := make([]*task.Task, len(raw.Tasks))
	for i, e := range raw.Tasks {
		if e.Pickup == "" || e.Delivery == "" {
			return nil, fmt.Errorf("demotasks: entry %d missing pickup or delivery location", i)
		}
		out[i] = &task.Task{
			TaskID:           uuid.New(),
			PickupLocation:   e.Pickup,
			DeliveryLocation: e.Delivery,
			EarliestPickup:   ztp.Add(time.Duration(e.EarliestPickupAfter * float64(time.Second))),
			LatestPickup:     ztp.Add(time.Duration(e.LatestPickupAfter * float64(time.Second))),
			Status:           task.StatusUnallocated,
		}
	}
	return out, nil
}

package ccu

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrTaskNotFound is returned by TaskRegistry.GetTask when no task is
// registered under the given id.
type ErrTaskNotFound struct {
	TaskID uuid.UUID
}

func (e *ErrTaskNotFound) Error() string {
	return fmt.Sprintf("ccu: no task %s registered", e.TaskID)
}

// ErrUnknownRobot is returned when a robot id names no entry in a registry
// that requires one to already exist (PoseRegistry.RobotPose).
type ErrUnknownRobot struct {
	RobotID string
}

func (e *ErrUnknownRobot) Error() string {
	return fmt.Sprintf("ccu: unknown robot %q", e.RobotID)
}

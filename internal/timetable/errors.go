package timetable

import "errors"

// ErrTaskNotFound is returned by operations that reference a task absent
// from the timetable's schedule.
var ErrTaskNotFound = errors.New("timetable: task not found")

// ErrPositionOutOfRange is returned by GetTask when position falls outside
// [1, len(schedule)].
var ErrPositionOutOfRange = errors.New("timetable: position out of range")

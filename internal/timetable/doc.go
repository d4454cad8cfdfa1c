// Package timetable holds a single robot's schedule: an ordered sequence of
// tasks plus the two temporal networks (raw STN and dispatchable graph) that
// constrain them, anchored at a zero-timepoint (ZTP).
//
// Operations mirror mrs.timetable in the source system this module is
// derived from: querying neighbours in the schedule, reading dispatchable
// bounds as absolute times, flagging delayed execution, and producing the
// prefix sub-graph sent to a robot as a D-graph update.
package timetable

// Package dispatch implements the Dispatcher: the coordinator component
// that freezes and releases a robot's earliest PLANNED task once its start
// time falls inside the freeze window, and pushes prefix D-graph updates to
// the fleet as their schedules change.
package dispatch

// Package bidder implements the per-robot side of the TeSSI-style auction:
// given an announced task, try every insertion position in the robot's
// timetable, keep the consistent candidates, and score each with a
// configurable Rule to pick the robot's single best bid for the round.
package bidder

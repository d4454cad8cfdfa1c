// Package ccu wires the Auctioneer, Dispatcher, and TimetableMonitor into a
// single coordinator tick loop, the Go rendering of the original system's
// CCU: a cooperative single-goroutine process that drains inbound bus
// envelopes, runs each component's Run in the fixed order spec.md §5
// requires, then drains the auctioneer's freshly committed allocations.
//
// The in-memory TaskRegistry/TimetableRegistry/PoseRegistry here are a
// reference persistence/collaborator layer for the bundled demo and tests;
// a production deployment supplies its own Store/PoseSource implementations
// backed by a real database and fleet-management feed.
package ccu

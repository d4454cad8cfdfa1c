// Package messaging defines the wire envelope and transport contract shared
// by every component that puts a message on the bus or receives one: a
// named-group publish/subscribe channel (TASK-ALLOCATION) plus directed
// messages to a specific peer (a robot id, or a robot's proxy).
//
// Package inproc provides a reference in-memory Bus, for tests and the
// bundled single-process demo. Production deployments plug in a real
// pub/sub transport by implementing Bus.
package messaging

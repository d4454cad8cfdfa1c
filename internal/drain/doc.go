// Package drain supports receiving as many buffered values as possible from
// a channel in one call, bounded by size and a partial-receive timeout.
//
// The coordinator's tick loop uses it to pull a tick's worth of inbound
// envelopes (bids, acks, status reports) off a subscription channel without
// blocking indefinitely on a slow or empty bus.
package drain

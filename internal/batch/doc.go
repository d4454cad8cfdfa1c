// Package batch groups jobs into small batches, flushed on size or a flush
// interval, whichever comes first.
//
// The dispatch package uses it to coalesce a tick's worth of DGraphUpdate
// sends to distinct robots into one flush.
package batch

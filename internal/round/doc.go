// Package round implements the single-item sealed-bid auction round: a
// state machine (IDLE -> OPEN -> FINISHED) that accumulates bids from the
// fleet and picks the minimum-metric winner once the round closes. A CLOSING
// state is defined and counts as opened, but no method moves a round into it.
package round

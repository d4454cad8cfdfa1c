// Package ratelimit implements multi-window rate limiting per (arbitrary)
// "category". Rates are applied independently, to all categories, with
// separate buckets per category. It uses a simple but potentially poorly
// optimized strategy, involving tracking discrete events, within a sliding
// window.
//
// internal/monitor uses it to cap how often a single task may be withdrawn
// and re-queued for a fresh auction round, keyed by task id, so a task whose
// STN keeps coming back inconsistent doesn't thrash the auctioneer every
// tick.
package ratelimit

// Package auction implements the Auctioneer: the coordinator-side half of
// the single-item sealed-bid auction, announcing unallocated tasks to the
// fleet, driving a round to closure, and committing the winning bid to the
// winner's timetable.
package auction

// Package monitor tracks execution progress reported for DISPATCHED and
// ONGOING tasks, keeps each robot's timetable in step with that progress,
// and retires tasks that finish, are withdrawn, or are preempted.
//
// A reported ONGOING status assigns the observed timepoint into both the
// STN and the dispatchable graph and re-tightens the closure; a negative
// outcome there (the schedule downstream of the update is no longer
// consistent) is handed to the configured recovery method rather than left
// to surface as a silent scheduling error. COMPLETED tasks are queued for
// removal once their finish time has actually elapsed, mirroring the
// deferred removal in monitor.py, rather than removed the instant the
// status arrives.
package monitor

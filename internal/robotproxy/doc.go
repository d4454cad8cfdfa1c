// Package robotproxy is the robot-side half of the auction protocol: it
// bids on task announcements on behalf of one robot, accepts or rejects the
// contracts it wins, and keeps a local timetable in step with what
// the coordinator dispatches, grounded on original_source/allocation/robot.py's
// Robot class. Motion execution itself (actually travelling, actually picking
// up a load) is an external collaborator; this package only maintains the
// state a real executor would report progress against.
package robotproxy

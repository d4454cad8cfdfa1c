package temporalnet

import "errors"

// ErrNoSTPSolution is raised when computing a dispatchable graph finds the
// underlying STN inconsistent (a negative cycle in the minimal network).
var ErrNoSTPSolution = errors.New("temporalnet: no STP solution (inconsistent network)")

// ErrTaskNotFound is raised by operations that reference a task absent from
// the network.
var ErrTaskNotFound = errors.New("temporalnet: task not found")

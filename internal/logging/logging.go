// Package logging wires the coordinator and robot-proxy binaries to a
// structured, leveled logger, following this corpus's convention of a thin
// logiface builder API over a swappable backend, here github.com/sirupsen/logrus
// via github.com/joeycumines/ilogrus.
package logging

import (
	"github.com/joeycumines/ilogrus"
	"github.com/joeycumines/logiface"
	"github.com/sirupsen/logrus"
)

// Logger is the concrete logger type used throughout this module.
type Logger = logiface.Logger[*ilogrus.Event]

// New configures a Logger backed by logrus, at the given level.
func New(level logiface.Level) *Logger {
	backend := logrus.New()
	backend.SetLevel(logrus.TraceLevel)
	return logiface.New[*ilogrus.Event](
		ilogrus.WithLogrus(backend),
		logiface.WithLevel[*ilogrus.Event](level),
	)
}

// Component derives a sub-logger tagged with a "component" field, so that
// every line emitted by the auctioneer, dispatcher, monitor, etc. can be
// filtered independently.
func Component(base *Logger, name string) *Logger {
	return base.Clone().Str("component", name).Logger()
}

// Package inproc implements messaging.Bus in memory, for tests and the
// bundled single-process demo: every group or peer name maps to a set of
// buffered channels, fanned out on Publish/Whisper and drained by a tick
// loop the way the corpus's longpoll.Channel drains a subscription channel.
package inproc

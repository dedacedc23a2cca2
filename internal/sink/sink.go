// Package sink implements the downstream collaborators the core bridge
// feeds: a TCP client re-emitting shots to the simulator, a TCP server
// speaking a small text protocol, and an HTTP endpoint for a putting
// camera. All three converge on the same Sink interface spec.md §6
// names as the core's export surface.
package sink

import (
	"github.com/srg/r10bridge/internal/normalize"
	"github.com/srg/r10bridge/internal/r10errors"
)

// Sink is the downstream interface the core invokes. Implementations must
// not block the caller for longer than their own internal timeout;
// Session and the normalisation adapter only invoke sinks, they never own
// their lifecycle.
type Sink interface {
	OnShot(record normalize.ShotRecord)
	OnReadinessChanged(ready bool)
	OnError(severity r10errors.Severity, message string)
}

// Fanout broadcasts every call to each configured Sink, letting the BLE
// core and the putting-camera HTTP handler converge on one set of
// downstream consumers.
type Fanout struct {
	sinks []Sink
}

// NewFanout builds a Fanout over the given sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) OnShot(record normalize.ShotRecord) {
	for _, s := range f.sinks {
		s.OnShot(record)
	}
}

func (f *Fanout) OnReadinessChanged(ready bool) {
	for _, s := range f.sinks {
		s.OnReadinessChanged(ready)
	}
}

func (f *Fanout) OnError(severity r10errors.Severity, message string) {
	for _, s := range f.sinks {
		s.OnError(severity, message)
	}
}

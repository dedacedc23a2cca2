// Package discovery scans for BLE advertisements and tracks the
// devices seen so far, following the teacher's scanner.Scanner shape:
// a concurrent registry fed by a callback-driven scan, with new-vs-
// updated events delivered over a channel.
package discovery

import (
	"context"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/srg/r10bridge/internal/gattbus"
)

// EventType marks whether a Device was newly discovered or updated.
type EventType int

const (
	EventNew EventType = iota
	EventUpdated
)

// Event is delivered once per advertisement observed during a Scan.
type Event struct {
	Type   EventType
	Device gattbus.Advertisement
}

// DefaultScanTimeout bounds how long Scan keeps the adapter in discovery
// mode when the caller supplies a zero timeout.
const DefaultScanTimeout = 10 * time.Second

// Registry tracks BLE devices seen across one or more scans. It is safe
// for concurrent use: Scan's advertisement callback runs on the goroutine
// that called Scan while callers may read Devices from another.
type Registry struct {
	bus     *gattbus.Bus
	log     *logrus.Entry
	devices *hashmap.Map[string, gattbus.Advertisement]
	events  chan Event
}

// NewRegistry builds a Registry backed by bus. log may be nil.
func NewRegistry(bus *gattbus.Bus, log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		bus:     bus,
		log:     log,
		devices: hashmap.New[string, gattbus.Advertisement](),
		events:  make(chan Event, 64),
	}
}

// Events returns the channel Scan publishes discovery events to.
func (r *Registry) Events() <-chan Event { return r.events }

// Scan runs BLE discovery on adapter for timeout (DefaultScanTimeout if
// zero), updating the registry and publishing an Event for every
// advertisement observed. It blocks until the scan window elapses or ctx
// is cancelled.
func (r *Registry) Scan(ctx context.Context, adapter gattbus.Adapter, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	r.log.WithField("timeout", timeout).Info("discovery: starting BLE scan")

	err := r.bus.Scan(ctx, adapter, timeout, func(adv gattbus.Advertisement) {
		_, existing := r.devices.Get(adv.Address)
		r.devices.Set(adv.Address, adv)

		evt := Event{Device: adv}
		if existing {
			evt.Type = EventUpdated
		} else {
			r.log.WithFields(logrus.Fields{
				"address": adv.Address,
				"name":    adv.Name,
				"rssi":    adv.RSSI,
			}).Info("discovery: new device")
			evt.Type = EventNew
		}

		select {
		case r.events <- evt:
		default: // a full channel means nobody's draining; drop rather than block the scan.
		}
	})
	if err != nil {
		return err
	}

	r.log.WithField("device_count", r.devices.Len()).Info("discovery: scan complete")
	return nil
}

// Devices returns a snapshot of every device seen so far, keyed by
// address.
func (r *Registry) Devices() map[string]gattbus.Advertisement {
	out := make(map[string]gattbus.Advertisement, r.devices.Len())
	r.devices.Range(func(addr string, adv gattbus.Advertisement) bool {
		out[addr] = adv
		return true
	})
	return out
}

// Lookup returns the advertisement seen for addr, if any.
func (r *Registry) Lookup(addr string) (gattbus.Advertisement, bool) {
	return r.devices.Get(addr)
}

package gattbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"

	"github.com/srg/r10bridge/internal/device"
	"github.com/srg/r10bridge/internal/r10errors"
)

const (
	notifyEnableTimeout    = 30 * time.Second
	valueReadTimeout       = 30 * time.Second
	writeConfirmTimeout    = 10 * time.Second
	writerRingBufferBytes  = 4096
)

// DeviceTransport is a connected R10's GATT surface: the cached endpoint
// tree, the writer characteristic, and the notification fan-in channel the
// session's readerLoop consumes. It implements session.Transport.
type DeviceTransport struct {
	bus    *Bus
	log    *logrus.Entry
	device dbus.ObjectPath

	endpoints endpointTree

	writerPath dbus.ObjectPath
	writerRing *ringbuffer.RingBuffer
	writerMu   sync.Mutex

	notifications  chan []byte
	sigCh          chan *dbus.Signal
	protectedFirst atomic.Bool // true once enableProtectedNotifier has run
	anyGattOp      atomic.Bool // true once any other GATT op has run

	disconnected     chan struct{}
	disconnectClosed atomic.Bool

	stop chan struct{}
}

// Connect dials adapter and address, waits for service resolution, and
// builds the GATT endpoint cache via the native strategy (safe only because
// no GATT operation has happened yet on this bus connection).
func Connect(ctx context.Context, bus *Bus, log *logrus.Entry, adapter Adapter, address string) (*DeviceTransport, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	powered, err := getProperty[bool](bus.conn, adapter.path(), ifaceAdapter1, "Powered")
	if err != nil || !powered {
		return nil, r10errors.ErrAdapterUnavailable
	}

	devPath := devicePath(adapter, address)
	dev := bus.conn.Object(bluezBus, devPath)

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if call := dev.CallWithContext(connectCtx, ifaceDevice1+".Connect", 0); call.Err != nil {
		return nil, fmt.Errorf("%w: %v", r10errors.ErrConnectFailed, call.Err)
	}

	connected, err := getProperty[bool](bus.conn, devPath, ifaceDevice1, "Connected")
	if err != nil || !connected {
		return nil, r10errors.ErrConnectFailed
	}

	t := &DeviceTransport{
		bus:           bus,
		log:           log,
		device:        devPath,
		notifications: make(chan []byte, 64),
		disconnected:  make(chan struct{}),
		stop:          make(chan struct{}),
	}

	if err := bus.waitServicesResolved(ctx, devPath, 30*time.Second); err != nil {
		return nil, fmt.Errorf("%w: %v", r10errors.ErrConnectFailed, err)
	}

	tree, err := bus.Discover(devPath)
	if err != nil {
		return nil, fmt.Errorf("gattbus: discover: %w", err)
	}
	t.endpoints = tree

	writer, ok := t.endpoint(ServiceDeviceInterface, CharDeviceWriter)
	if !ok {
		return nil, fmt.Errorf("gattbus: device writer characteristic not found")
	}
	t.writerPath = writer.Path
	t.writerRing = ringbuffer.New(writerRingBufferBytes)
	t.writerRing.SetBlocking(true)

	t.sigCh = make(chan *dbus.Signal, 64)
	bus.conn.Signal(t.sigCh)
	go t.signalLoop()

	return t, nil
}

func (t *DeviceTransport) endpoint(serviceUUID, charUUID string) (Endpoint, bool) {
	svcUUID := device.NormalizeUUID(serviceUUID)
	chUUID := device.NormalizeUUID(charUUID)
	chars, ok := t.endpoints[svcUUID]
	if !ok {
		return Endpoint{}, false
	}
	ep, ok := chars[chUUID]
	return ep, ok
}

// EnableProtectedNotifier enables notifications on the device interface
// notifier, installing in-band pairing as a side effect. This must be the
// first GATT operation performed on the connection: the host controller
// hangs on the subsequent attempt to enable the protected notifier if any
// other read or notify-enable precedes it.
func (t *DeviceTransport) EnableProtectedNotifier(ctx context.Context) error {
	if t.anyGattOp.Load() {
		return r10errors.ErrNotifyAuthRequired
	}
	ep, ok := t.endpoint(ServiceDeviceInterface, CharDeviceNotifier)
	if !ok {
		return fmt.Errorf("gattbus: device notifier characteristic not found")
	}

	notifyCtx, cancel := context.WithTimeout(ctx, notifyEnableTimeout)
	defer cancel()
	obj := t.bus.conn.Object(bluezBus, ep.Path)
	call := obj.CallWithContext(notifyCtx, ifaceGattChar+".StartNotify", 0)
	if call.Err != nil {
		return fmt.Errorf("%w: %v", r10errors.ErrNotifyAuthRequired, call.Err)
	}

	t.protectedFirst.Store(true)
	t.anyGattOp.Store(true)
	return nil
}

// EnablePlainNotifier enables notifications on an unauthenticated
// characteristic (battery, measurement, control-point, status). Valid only
// after EnableProtectedNotifier has run.
func (t *DeviceTransport) EnablePlainNotifier(ctx context.Context, serviceUUID, charUUID string) error {
	if !t.protectedFirst.Load() {
		return r10errors.ErrNotifyAuthRequired
	}
	ep, ok := t.endpoint(serviceUUID, charUUID)
	if !ok {
		return fmt.Errorf("gattbus: characteristic %s/%s not found", serviceUUID, charUUID)
	}

	notifyCtx, cancel := context.WithTimeout(ctx, notifyEnableTimeout)
	defer cancel()
	obj := t.bus.conn.Object(bluezBus, ep.Path)
	call := obj.CallWithContext(notifyCtx, ifaceGattChar+".StartNotify", 0)
	t.anyGattOp.Store(true)
	if call.Err != nil {
		return fmt.Errorf("gattbus: enable notify on %s: %w", charUUID, call.Err)
	}
	return nil
}

// ReadValue reads a characteristic's value, honoring the 30s value-read
// timeout. Valid only after EnableProtectedNotifier has run.
func (t *DeviceTransport) ReadValue(ctx context.Context, serviceUUID, charUUID string) ([]byte, error) {
	if !t.protectedFirst.Load() {
		return nil, r10errors.ErrNotifyAuthRequired
	}
	ep, ok := t.endpoint(serviceUUID, charUUID)
	if !ok {
		return nil, fmt.Errorf("gattbus: characteristic %s/%s not found", serviceUUID, charUUID)
	}

	readCtx, cancel := context.WithTimeout(ctx, valueReadTimeout)
	defer cancel()
	obj := t.bus.conn.Object(bluezBus, ep.Path)
	call := obj.CallWithContext(readCtx, ifaceGattChar+".ReadValue", 0, map[string]dbus.Variant{})
	t.anyGattOp.Store(true)
	if call.Err != nil {
		return nil, call.Err
	}
	var data []byte
	if err := call.Store(&data); err != nil {
		return nil, fmt.Errorf("gattbus: decode read value: %w", err)
	}
	return data, nil
}

// WriteWithoutResponse performs a GATT write-without-response on the device
// writer characteristic. Writes are first pushed through a length-prefixed
// ring buffer to pace bursts of framing chunks (a handshake reply or a
// multi-chunk request can produce several writes back to back) before being
// flushed to the bus, matching the teacher's ring-buffered write-queue shape.
func (t *DeviceTransport) WriteWithoutResponse(ctx context.Context, data []byte) error {
	t.writerMu.Lock()
	defer t.writerMu.Unlock()

	if err := writeFramed(t.writerRing, data); err != nil {
		return fmt.Errorf("gattbus: ring buffer write: %w", err)
	}
	chunk, err := readFramed(t.writerRing)
	if err != nil {
		return fmt.Errorf("gattbus: ring buffer read: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeConfirmTimeout)
	defer cancel()
	obj := t.bus.conn.Object(bluezBus, t.writerPath)
	call := obj.CallWithContext(writeCtx, ifaceGattChar+".WriteValue", 0, chunk, map[string]dbus.Variant{
		"type": dbus.MakeVariant("command"),
	})
	t.anyGattOp.Store(true)
	if call.Err != nil {
		return fmt.Errorf("gattbus: write value: %w", call.Err)
	}
	return nil
}

// Notifications returns the channel of raw notification bytes (header byte
// included) the session's readerLoop consumes.
func (t *DeviceTransport) Notifications() <-chan []byte {
	return t.notifications
}

// Disconnected returns a channel that closes once BlueZ reports this
// device's Connected property as false, driving the reconnect loop
// spec.md §4.6 describes.
func (t *DeviceTransport) Disconnected() <-chan struct{} {
	return t.disconnected
}

// Close tears down the signal subscription and disconnects the device.
func (t *DeviceTransport) Close() error {
	close(t.stop)
	t.bus.conn.RemoveSignal(t.sigCh)
	obj := t.bus.conn.Object(bluezBus, t.device)
	obj.Call(ifaceDevice1+".Disconnect", 0)
	return nil
}

func (t *DeviceTransport) signalDisconnect() {
	if t.disconnectClosed.CompareAndSwap(false, true) {
		close(t.disconnected)
	}
}

// signalLoop forwards PropertiesChanged "Value" updates on any characteristic
// under this device into the notifications channel.
func (t *DeviceTransport) signalLoop() {
	prefix := string(t.device) + "/"
	for {
		select {
		case <-t.stop:
			return
		case sig, ok := <-t.sigCh:
			if !ok {
				return
			}
			if sig.Name != ifaceProperties+".PropertiesChanged" {
				continue
			}
			if len(sig.Body) < 2 {
				continue
			}
			changed, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				continue
			}

			if sig.Path == t.device {
				if connectedVar, ok := changed["Connected"]; ok {
					if connected, ok := connectedVar.Value().(bool); ok && !connected {
						t.signalDisconnect()
					}
				}
				continue
			}

			if !strings.HasPrefix(string(sig.Path), prefix) {
				continue
			}
			valueVar, ok := changed["Value"]
			if !ok {
				continue
			}
			value, ok := valueVar.Value().([]byte)
			if !ok {
				continue
			}
			select {
			case t.notifications <- value:
			case <-t.stop:
				return
			}
		}
	}
}

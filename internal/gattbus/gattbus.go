// Package gattbus implements the R10 bridge's GATT transport against a
// BlueZ D-Bus system bus: adapter selection, device connect, GATT tree
// discovery, the NoInputNoOutput pairing agent, and the ordering-constrained
// notifier/writer characteristics the session protocol drives.
package gattbus

import (
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/srg/r10bridge/internal/device"
)

const (
	bluezBus         = "org.bluez"
	ifaceAdapter1    = "org.bluez.Adapter1"
	ifaceDevice1     = "org.bluez.Device1"
	ifaceGattService = "org.bluez.GattService1"
	ifaceGattChar    = "org.bluez.GattCharacteristic1"
	ifaceProperties  = "org.freedesktop.DBus.Properties"
	ifaceObjectMgr   = "org.freedesktop.DBus.ObjectManager"
)

// Adapter identifies a local BLE host controller.
type Adapter struct {
	Address  string
	HCIIndex int
}

func (a Adapter) hciName() string {
	return fmt.Sprintf("hci%d", a.HCIIndex)
}

func (a Adapter) path() dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + a.hciName())
}

// Endpoint is a discovered GATT characteristic: its owning service UUID, its
// own UUID, the D-Bus object path BlueZ exposes it at, and the properties
// the device advertised for it.
type Endpoint struct {
	ServiceUUID string
	CharUUID    string
	Path        dbus.ObjectPath
	Props       device.Properties
}

// Bus owns the process-wide system bus connection used for every BlueZ
// call the bridge makes. Exactly one Bus exists per process; its D-Bus
// connection is shared across Sessions the way a real BlueZ client would
// share its bus handle, since dbus.Conn is itself safe for concurrent use.
type Bus struct {
	conn *dbus.Conn

	mu    sync.Mutex
	agent *pairingAgent
}

// Dial connects to the system bus. Callers should create one Bus per
// process and reuse it across connects/reconnects.
func Dial() (*Bus, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("gattbus: system bus dial: %w", err)
	}
	return &Bus{conn: conn}, nil
}

// Close releases the pairing agent registration, if any. The underlying
// system bus connection is a shared process-wide handle and is never
// closed.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.agent != nil {
		b.agent.unregister(b.conn)
		b.agent = nil
	}
	return nil
}

// EnsureAgent registers the NoInputNoOutput pairing agent and sets it as
// the system default, idempotently. The R10 rejects any pairing attempt
// that carries the MITM flag, which BlueZ's built-in default agent sets;
// without this the protected notifier's in-band pairing round-trip fails.
func (b *Bus) EnsureAgent() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.agent != nil {
		return nil
	}
	agent, err := registerPairingAgent(b.conn)
	if err != nil {
		return err
	}
	b.agent = agent
	return nil
}

// getProperty reads a single D-Bus property by interface and name.
func getProperty[T any](conn *dbus.Conn, path dbus.ObjectPath, iface, name string) (T, error) {
	var zero T
	obj := conn.Object(bluezBus, path)
	v, err := obj.GetProperty(iface + "." + name)
	if err != nil {
		return zero, err
	}
	val, ok := v.Value().(T)
	if !ok {
		return zero, fmt.Errorf("gattbus: property %s.%s has unexpected type %T", iface, name, v.Value())
	}
	return val, nil
}

// devicePath derives the BlueZ object path for a device's MAC address
// under the given adapter: "AA:BB:CC:DD:EE:FF" -> ".../hci0/dev_AA_BB_..."
func devicePath(adapter Adapter, address string) dbus.ObjectPath {
	return dbus.ObjectPath(string(adapter.path()) + "/dev_" + strings.ReplaceAll(address, ":", "_"))
}

// DevicePath exposes devicePath for callers outside the package that need
// to address a device's object path without going through Connect, such as
// the inspect subcommand's GATT-tree dump.
func DevicePath(adapter Adapter, address string) dbus.ObjectPath {
	return devicePath(adapter, address)
}

package gattbus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

// Advertisement is a BlueZ-reported Device1 object seen during discovery.
type Advertisement struct {
	Address          string
	Name             string
	RSSI             int16
	ManufacturerData map[uint16][]byte
}

// Scan starts BlueZ LE discovery on adapter, invokes onAdvertisement for
// every Device1 object it observes (both newly discovered and already
// cached by BlueZ), and stops discovery when ctx is cancelled or timeout
// elapses.
func (b *Bus) Scan(ctx context.Context, adapter Adapter, timeout time.Duration, onAdvertisement func(Advertisement)) error {
	adapterObj := b.conn.Object(bluezBus, adapter.path())

	filter := map[string]dbus.Variant{"Transport": dbus.MakeVariant("le")}
	if call := adapterObj.Call(ifaceAdapter1+".SetDiscoveryFilter", 0, filter); call.Err != nil {
		return fmt.Errorf("gattbus: set discovery filter: %w", call.Err)
	}
	if call := adapterObj.Call(ifaceAdapter1+".StartDiscovery", 0); call.Err != nil {
		return fmt.Errorf("gattbus: start discovery: %w", call.Err)
	}
	defer adapterObj.Call(ifaceAdapter1+".StopDiscovery", 0)

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	seen := make(map[string]struct{})
	for {
		select {
		case <-scanCtx.Done():
			return nil
		case <-ticker.C:
			advs, err := b.currentAdvertisements(adapter)
			if err != nil {
				continue
			}
			for _, adv := range advs {
				if _, ok := seen[adv.Address]; ok {
					continue
				}
				seen[adv.Address] = struct{}{}
				onAdvertisement(adv)
			}
		}
	}
}

func (b *Bus) currentAdvertisements(adapter Adapter) ([]Advertisement, error) {
	root := b.conn.Object(bluezBus, dbus.ObjectPath("/"))
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := root.Call(ifaceObjectMgr+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, call.Err
	}
	if err := call.Store(&objects); err != nil {
		return nil, err
	}

	prefix := string(adapter.path()) + "/"
	var out []Advertisement
	for path, ifaces := range objects {
		props, ok := ifaces[ifaceDevice1]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		adv := Advertisement{ManufacturerData: map[uint16][]byte{}}
		if v, ok := props["Address"]; ok {
			adv.Address, _ = v.Value().(string)
		}
		if v, ok := props["Name"]; ok {
			adv.Name, _ = v.Value().(string)
		}
		if v, ok := props["RSSI"]; ok {
			adv.RSSI, _ = v.Value().(int16)
		}
		if v, ok := props["ManufacturerData"]; ok {
			if md, ok := v.Value().(map[uint16]dbus.Variant); ok {
				for company, variant := range md {
					if data, ok := variant.Value().([]byte); ok {
						adv.ManufacturerData[company] = data
					}
				}
			}
		}
		if adv.Address != "" {
			out = append(out, adv)
		}
	}
	return out, nil
}

package gattbus

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/srg/r10bridge/internal/device"
)

// endpointTree is the two-level GATT cache: serviceUUID -> charUUID -> Endpoint.
type endpointTree map[string]map[string]Endpoint

// pathPattern matches ".../hciX/dev_.../serviceYYYY/charZZZZ"-shaped BlueZ
// object paths, capturing the service and characteristic path segments.
var pathPattern = regexp.MustCompile(`/(service[0-9a-fA-F]+)/(char[0-9a-fA-F]+)$`)

// Discover builds the service/characteristic endpoint cache for dev. native
// uses a single GetManagedObjects call; it is only safe to attempt on a bus
// connection that has not yet performed a GATT connect, per the documented
// BlueZ D-Bus deadlock. Once any GATT operation has occurred on the
// connection, callers must use DiscoverSubprocess instead.
func (b *Bus) Discover(dev dbus.ObjectPath) (endpointTree, error) {
	root := b.conn.Object(bluezBus, dbus.ObjectPath("/"))

	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := root.Call(ifaceObjectMgr+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("gattbus: GetManagedObjects: %w", call.Err)
	}
	if err := call.Store(&objects); err != nil {
		return nil, fmt.Errorf("gattbus: decode managed objects: %w", err)
	}

	prefix := string(dev) + "/"
	tree := make(endpointTree)
	for path, ifaces := range objects {
		charProps, ok := ifaces[ifaceGattChar]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		charUUID, _ := charProps["UUID"].Value().(string)
		serviceRaw, _ := charProps["Service"].Value().(dbus.ObjectPath)
		svcUUID := b.serviceUUID(serviceRaw)
		addEndpoint(tree, svcUUID, device.NormalizeUUID(charUUID), path, characteristicFlags(charProps))
	}
	return tree, nil
}

// characteristicFlags extracts org.bluez.GattCharacteristic1's Flags
// property (an array of strings like "read", "notify") as device.Properties.
func characteristicFlags(props map[string]dbus.Variant) device.Properties {
	v, ok := props["Flags"]
	if !ok {
		return nil
	}
	flags, ok := v.Value().([]string)
	if !ok {
		return nil
	}
	return device.FlagProperties(flags)
}

func (b *Bus) serviceUUID(path dbus.ObjectPath) string {
	v, err := getProperty[string](b.conn, path, ifaceGattService, "UUID")
	if err != nil {
		return ""
	}
	return device.NormalizeUUID(v)
}

// DiscoverSubprocess discovers the GATT tree by shelling out to busctl and
// parsing its introspection output, the fallback (and post-connect default)
// strategy the D-Bus ObjectManager deadlock forces.
func (b *Bus) DiscoverSubprocess(ctx context.Context, dev dbus.ObjectPath) (endpointTree, error) {
	paths, err := busctlTree(ctx, string(dev))
	if err != nil {
		return nil, err
	}

	tree := make(endpointTree)
	serviceUUIDCache := make(map[string]string)
	for _, p := range paths {
		m := pathPattern.FindStringSubmatch(p)
		if m == nil {
			continue
		}
		servicePath := strings.TrimSuffix(p, "/"+m[2])

		svcUUID, ok := serviceUUIDCache[servicePath]
		if !ok {
			svcUUID, _ = busctlUUIDProperty(ctx, servicePath, ifaceGattService)
			serviceUUIDCache[servicePath] = svcUUID
		}
		charUUID, err := busctlUUIDProperty(ctx, p, ifaceGattChar)
		if err != nil {
			continue
		}
		flags, _ := busctlFlagsProperty(ctx, p, ifaceGattChar)
		addEndpoint(tree, device.NormalizeUUID(svcUUID), device.NormalizeUUID(charUUID), dbus.ObjectPath(p), flags)
	}
	return tree, nil
}

func addEndpoint(tree endpointTree, serviceUUID, charUUID string, path dbus.ObjectPath, props device.Properties) {
	if serviceUUID == "" || charUUID == "" {
		return
	}
	chars, ok := tree[serviceUUID]
	if !ok {
		chars = make(map[string]Endpoint)
		tree[serviceUUID] = chars
	}
	chars[charUUID] = Endpoint{ServiceUUID: serviceUUID, CharUUID: charUUID, Path: path, Props: props}
}

// busctlTree invokes "busctl tree org.bluez" and returns every object path
// nested under devicePath.
func busctlTree(ctx context.Context, devicePath string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "busctl", "--system", "tree", bluezBus)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("gattbus: busctl tree: %w", err)
	}

	var paths []string
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// busctl tree draws box-drawing prefixes ("├─", "└─") before each path.
		line = strings.TrimLeft(line, "├└─│ ")
		if strings.HasPrefix(line, devicePath+"/") {
			paths = append(paths, line)
		}
	}
	return paths, nil
}

// busctlUUIDProperty invokes "busctl get-property" for a given object's
// UUID property under iface.
func busctlUUIDProperty(ctx context.Context, path, iface string) (string, error) {
	cmd := exec.CommandContext(ctx, "busctl", "--system", "get-property", bluezBus, path, iface, "UUID")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("gattbus: busctl get-property %s: %w", path, err)
	}
	// Output is of the form: s "6a4e2812-667b-11e3-949a-0800200c9a66"
	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		return "", fmt.Errorf("gattbus: unexpected busctl output %q", out)
	}
	return strings.Trim(fields[1], `"`), nil
}

// busctlFlagsProperty invokes "busctl get-property" for a characteristic's
// Flags array and returns it as device.Properties.
func busctlFlagsProperty(ctx context.Context, path, iface string) (device.Properties, error) {
	cmd := exec.CommandContext(ctx, "busctl", "--system", "get-property", bluezBus, path, iface, "Flags")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("gattbus: busctl get-property %s: %w", path, err)
	}
	// Output is of the form: as 2 "read" "notify"
	fields := strings.Fields(string(out))
	if len(fields) < 2 {
		return device.FlagProperties(nil), nil
	}
	flags := make([]string, 0, len(fields)-2)
	for _, f := range fields[2:] {
		flags = append(flags, strings.Trim(f, `"`))
	}
	return device.FlagProperties(flags), nil
}

// waitServicesResolved polls Device1.ServicesResolved until it reports true
// or deadline elapses.
func (b *Bus) waitServicesResolved(ctx context.Context, dev dbus.ObjectPath, deadline time.Duration) error {
	timeout := time.After(deadline)
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("gattbus: services not resolved within %s", deadline)
		case <-ticker.C:
			resolved, err := getProperty[bool](b.conn, dev, ifaceDevice1, "ServicesResolved")
			if err == nil && resolved {
				return nil
			}
		}
	}
}

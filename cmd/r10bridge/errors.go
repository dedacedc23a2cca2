package main

import (
	"errors"

	"github.com/srg/r10bridge/internal/r10errors"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the BLE connection was unexpectedly lost during operation.
	// This is distinct from r10errors.ErrDisconnected, which the core uses internally to
	// drive its own reconnect loop rather than surface to a CLI caller.
	ErrConnectionLost = errors.New("connection lost")

	// ErrDeviceAddressRequired indicates neither --device nor the config file supplied
	// a device MAC to connect to.
	ErrDeviceAddressRequired = errors.New("device address required: set --device or device.address in the config file")
)

// FormatUserError renders err for a terminal user, adding remediation
// hints for the error kinds spec.md §7 calls out as requiring one.
func FormatUserError(err error) string {
	switch {
	case errors.Is(err, r10errors.ErrNotifyAuthRequired):
		return err.Error() + " (is the adapter's Secure-Connections feature disabled, and is the device in pairing mode?)"
	case errors.Is(err, r10errors.ErrAdapterUnavailable):
		return err.Error() + " (is the configured Bluetooth adapter powered on?)"
	case errors.Is(err, r10errors.ErrDeviceNotFound):
		return err.Error() + " (run 'r10bridge inspect scan' to list nearby devices)"
	default:
		return err.Error()
	}
}

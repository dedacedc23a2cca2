// Package r10errors defines the sentinel and typed error values the R10
// bridge surfaces across its transport, session, and command layers:
// sentinel values for errors.Is checks plus one typed DeviceError.
package r10errors

import "errors"

// Sentinel errors for conditions with no further structured detail.
var (
	// ErrAdapterUnavailable indicates no local BLE host controller was found.
	ErrAdapterUnavailable = errors.New("r10: no BLE adapter available")

	// ErrDeviceNotFound indicates the configured device MAC was not seen
	// during the discovery scan.
	ErrDeviceNotFound = errors.New("r10: device not found")

	// ErrConnectFailed indicates the GATT connect call failed or the
	// connection did not report connected=true within its resolve timeout.
	ErrConnectFailed = errors.New("r10: connect failed")

	// ErrNotifyAuthRequired indicates either a CCCD write returned
	// insufficient-authentication and in-band pairing did not resolve it, or
	// a GATT operation ran before enableProtectedNotifier, the ordering
	// constraint that operation must satisfy first.
	ErrNotifyAuthRequired = errors.New("r10: notification requires authentication")

	// ErrHandshakeTimeout indicates no handshake reply arrived within the
	// handshake deadline.
	ErrHandshakeTimeout = errors.New("r10: handshake timeout")

	// ErrRequestTimeout indicates no matching response arrived after all
	// retry attempts. SendRequest has still advanced the request counter on
	// every timed-out attempt.
	ErrRequestTimeout = errors.New("r10: request timeout")

	// ErrDisconnected indicates the device disconnected; the session is torn
	// down and the reconnect loop takes over.
	ErrDisconnected = errors.New("r10: device disconnected")
)

// Severity classifies device-reported and bridge-local errors for the error
// listener.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// DeviceError wraps an error code/message pair reported by the device
// itself (via an AlertNotification), as opposed to a bridge-local error.
type DeviceError struct {
	Code     int32
	Message  string
	Severity Severity
}

func (e *DeviceError) Error() string {
	return e.Message
}

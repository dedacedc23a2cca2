package device

import (
	"fmt"
	"strings"
)

// bluetoothSIGBaseSuffix is the fixed tail of every 128-bit UUID derived from a
// 16-bit Bluetooth SIG assigned number (0000xxxx-0000-1000-8000-00805f9b34fb).
const bluetoothSIGBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to the package's canonical internal form:
// lowercase, no dashes or braces, no "0x" prefix. 128-bit UUIDs that follow the
// Bluetooth SIG base pattern are collapsed to their 16-bit short form so that
// "0000180f-0000-1000-8000-00805f9b34fb" and "180f" compare equal.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(uuid)
	u = strings.Trim(u, "{}")
	u = strings.ReplaceAll(u, "-", "")
	u = strings.TrimPrefix(u, "0x")

	if len(u) == 32 && strings.HasSuffix(u, bluetoothSIGBaseSuffix) && strings.HasPrefix(u, "0000") {
		return u[4:8]
	}
	return u
}

// NormalizeUUIDs normalizes a slice of UUID strings to internal format.
func NormalizeUUIDs(uuids []string) []string {
	out := make([]string, len(uuids))
	for i, u := range uuids {
		out[i] = NormalizeUUID(u)
	}
	return out
}

// ShortenUUID returns a truncated version of a UUID for display purposes.
// Returns the first eight characters for long UUIDs and short UUIDs by themselves.
func ShortenUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

// ValidateUUID checks that each UUID string is non-empty and normalizes it.
// Length and hex characters are not checked.
// Returns normalized UUID strings or an error.
// Accepts one or more UUIDs as variadic arguments.
func ValidateUUID(uuids ...string) ([]string, error) {
	if len(uuids) == 0 {
		return nil, fmt.Errorf("at least one UUID is required")
	}

	result := make([]string, 0, len(uuids))
	for i, uuid := range uuids {
		if uuid == "" {
			return nil, fmt.Errorf("UUID at index %d cannot be empty", i)
		}
		normalized := NormalizeUUID(uuid)
		if normalized == "" {
			return nil, fmt.Errorf("invalid UUID format at index %d: %s", i, uuid)
		}
		result = append(result, normalized)
	}
	return result, nil
}

package device

import (
	"fmt"
)

// Well-known GATT characteristic UUIDs relevant to the R10, 16-bit short form,
// normalized without dashes (see spec.md §6 for the full table).
const (
	CharacteristicSerialNumber    = "2a25"
	CharacteristicModelNumber     = "2a24"
	CharacteristicFirmwareVersion = "2a28"
	CharacteristicBatteryLevel    = "2a19"
)

// CharacteristicParser is a function that parses a characteristic value.
type CharacteristicParser func([]byte) (interface{}, error)

// parseBatteryLevel parses the Battery Level characteristic (0x2A19): a single
// byte, percentage 0-100.
func parseBatteryLevel(value []byte) (interface{}, error) {
	if len(value) != 1 {
		return nil, fmt.Errorf("battery level value must be 1 byte, got %d", len(value))
	}
	if value[0] > 100 {
		return nil, fmt.Errorf("battery level %d out of range", value[0])
	}
	return int(value[0]), nil
}

// parseDeviceInfoString parses Serial Number / Model Number / Firmware
// Revision strings, which the device reports as plain ASCII/UTF-8.
func parseDeviceInfoString(value []byte) (interface{}, error) {
	return string(value), nil
}

// characteristicParsers maps normalized characteristic UUIDs to their parser functions.
var characteristicParsers = map[string]CharacteristicParser{
	CharacteristicBatteryLevel:    parseBatteryLevel,
	CharacteristicSerialNumber:    parseDeviceInfoString,
	CharacteristicModelNumber:     parseDeviceInfoString,
	CharacteristicFirmwareVersion: parseDeviceInfoString,
}

// IsParsableCharacteristic returns true if the characteristic UUID supports value parsing.
func IsParsableCharacteristic(uuid string) bool {
	_, exists := characteristicParsers[NormalizeUUID(uuid)]
	return exists
}

// ParseCharacteristicValue parses a characteristic value based on its UUID.
// Returns nil for characteristics with no registered parser, and (nil, nil) for
// an unparsed value rather than treating it as an error.
func ParseCharacteristicValue(uuid string, value []byte) (interface{}, error) {
	parser, exists := characteristicParsers[NormalizeUUID(uuid)]
	if !exists {
		return nil, nil
	}
	return parser(value)
}

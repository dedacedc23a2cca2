package gattbus

// R10 GATT surface UUIDs, normalized to the package's short-form convention
// where they fall under the Bluetooth SIG base, and left in full 128-bit form
// where they carry the Garmin base (-667b-11e3-949a-0800200c9a66).
const (
	ServiceDeviceInformation = "180a"
	CharSerialNumber         = "2a25"
	CharModelNumber          = "2a24"
	CharFirmwareVersion      = "2a28"

	ServiceBattery    = "180f"
	CharBatteryLevel  = "2a19"

	ServiceDeviceInterface  = "6a4e2800-667b-11e3-949a-0800200c9a66"
	CharDeviceNotifier      = "6a4e2812-667b-11e3-949a-0800200c9a66"
	CharDeviceWriter        = "6a4e2822-667b-11e3-949a-0800200c9a66"

	ServiceMeasurement   = "6a4e3400-667b-11e3-949a-0800200c9a66"
	CharMeasurement      = "6a4e3401-667b-11e3-949a-0800200c9a66"
	CharControlPoint     = "6a4e3402-667b-11e3-949a-0800200c9a66"
	CharStatus           = "6a4e3403-667b-11e3-949a-0800200c9a66"
)

// Package device holds the BLE identification and value-parsing tables the
// R10 bridge needs regardless of transport: UUID normalization, known
// characteristic/descriptor/manufacturer-data parsers, and the
// Properties/Descriptor value types internal/gattbus attaches to a
// discovered Endpoint. It does not model connections or devices; those are
// internal/gattbus.DeviceTransport's job.
package device

package device

import (
	"encoding/binary"
	"fmt"
)

const (
	// UnknownCompanyID is a sentinel value indicating the company ID should be
	// extracted from the raw manufacturer data (first 2 bytes, little-endian).
	// Use this when the manufacturer/vendor is not known in advance.
	UnknownCompanyID uint16 = 0

	// GarminCompanyID is the Bluetooth SIG assigned company identifier for
	// Garmin International, Inc. The R10 advertises this in its manufacturer
	// data alongside the assigned-numbers GATT services.
	GarminCompanyID uint16 = 0x0087
)

// ManufacturerDataParser parses company-specific manufacturer data.
type ManufacturerDataParser func([]byte) (interface{}, error)

// VendorInfo allows parsed manufacturer data to expose vendor identity.
type VendorInfo interface {
	VendorID() uint16
	VendorName() string
}

// manufacturerDataParsers maps company IDs to their parser functions.
var manufacturerDataParsers = map[uint16]ManufacturerDataParser{
	GarminCompanyID: parseGarminManufacturerData,
}

// ParseManufacturerData parses BLE manufacturer data for a specific company.
//
// Parameters:
//   - companyID: The Bluetooth SIG assigned company identifier. If UnknownCompanyID (0),
//     the company ID will be extracted from the first 2 bytes of rawData (little-endian).
//     This is useful when the manufacturer is not known in advance.
//   - rawData: The raw manufacturer-specific data bytes
//
// Returns:
//   - Parsed manufacturer data (type depends on company), or nil for unknown companies
//   - Error if data is malformed or too short
//   - (nil, nil) for unknown/unsupported company IDs (not an error)
func ParseManufacturerData(companyID uint16, rawData []byte) (interface{}, error) {
	var id uint16

	if companyID == UnknownCompanyID {
		if len(rawData) < 2 {
			return nil, fmt.Errorf("manufacturer data too short: %d bytes", len(rawData))
		}
		id = binary.LittleEndian.Uint16(rawData[0:2])
	} else {
		id = companyID
	}

	parser, exists := manufacturerDataParsers[id]
	if !exists {
		return nil, nil
	}

	return parser(rawData)
}

// IsParsableManufacturerData returns true if a parser exists for the company ID.
func IsParsableManufacturerData(companyID uint16) bool {
	_, exists := manufacturerDataParsers[companyID]
	return exists
}

// -----------------------------------------------------------------------------
// Garmin manufacturer data
// -----------------------------------------------------------------------------

// GarminManufacturerData is the company-specific advertisement payload Garmin
// fitness and sport devices emit following the 2-byte company ID.
//
// Format observed on the R10 (variable length, at least 3 bytes including the
// 2-byte company ID):
//   - Bytes 0-1: Company ID (0x0087 = Garmin International, Inc.)
//   - Byte 2:    Product category byte (device-family specific, opaque here)
type GarminManufacturerData struct {
	ProductCategory byte
	Raw             []byte
}

// VendorID implements VendorInfo.
func (g *GarminManufacturerData) VendorID() uint16 {
	return GarminCompanyID
}

// VendorName implements VendorInfo.
func (g *GarminManufacturerData) VendorName() string {
	return "Garmin International, Inc."
}

func parseGarminManufacturerData(data []byte) (interface{}, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("garmin manufacturer data too short: %d bytes, expected at least 3", len(data))
	}
	return &GarminManufacturerData{
		ProductCategory: data[2],
		Raw:             append([]byte(nil), data[2:]...),
	}, nil
}

package device

// DescriptorInfo represents descriptor metadata
type DescriptorInfo interface {
	UUID() string
	KnownName() string
	Value() []byte            // Returns raw descriptor value bytes, nil if read failed or skipped
	ParsedValue() interface{} // Returns parsed value, *DescriptorError if read failed, nil if skipped
}

// Descriptor combines descriptor information (writes deferred to future implementation)
type Descriptor interface {
	DescriptorInfo
}

// Property represents a single BLE characteristic property
type Property interface {
	Value() int
	KnownName() string
}

// Properties represent a collection of BLE characteristic properties, parsed
// from a GATT characteristic's BlueZ Flags.
type Properties interface {
	Broadcast() Property
	Read() Property
	Write() Property
	WriteWithoutResponse() Property
	Notify() Property
	Indicate() Property
	AuthenticatedSignedWrites() Property
	ExtendedProperties() Property
}

// flag implements Property as a simple boolean present/absent flag.
type flag bool

func (f flag) Value() int {
	if f {
		return 1
	}
	return 0
}

func (f flag) KnownName() string {
	if f {
		return "set"
	}
	return "unset"
}

// FlagProperties adapts the string flags org.bluez.GattCharacteristic1
// reports ("broadcast", "read", "write", "write-without-response",
// "notify", "indicate", "authenticated-signed-writes",
// "extended-properties") into Properties.
type FlagProperties []string

func (p FlagProperties) has(name string) bool {
	for _, f := range p {
		if f == name {
			return true
		}
	}
	return false
}

func (p FlagProperties) Broadcast() Property            { return flag(p.has("broadcast")) }
func (p FlagProperties) Read() Property                 { return flag(p.has("read")) }
func (p FlagProperties) Write() Property                { return flag(p.has("write")) }
func (p FlagProperties) Notify() Property               { return flag(p.has("notify")) }
func (p FlagProperties) Indicate() Property             { return flag(p.has("indicate")) }
func (p FlagProperties) WriteWithoutResponse() Property { return flag(p.has("write-without-response")) }
func (p FlagProperties) AuthenticatedSignedWrites() Property {
	return flag(p.has("authenticated-signed-writes"))
}
func (p FlagProperties) ExtendedProperties() Property { return flag(p.has("extended-properties")) }

// String renders the set flags for display, e.g. "read,notify".
func (p FlagProperties) String() string {
	if len(p) == 0 {
		return ""
	}
	out := p[0]
	for _, f := range p[1:] {
		out += "," + f
	}
	return out
}

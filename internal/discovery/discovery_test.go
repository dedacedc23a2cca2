package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/r10bridge/internal/gattbus"
)

func TestRegistry_LookupAfterScanPublishesNew(t *testing.T) {
	r := NewRegistry(nil, nil)

	// Exercise the registry's bookkeeping directly, mirroring what Scan's
	// internal callback does per advertisement, without depending on a
	// real D-Bus adapter.
	adv := gattbus.Advertisement{Address: "AA:BB:CC:DD:EE:FF", Name: "Approach R10"}
	_, existed := r.devices.Get(adv.Address)
	require.False(t, existed)
	r.devices.Set(adv.Address, adv)

	got, ok := r.Lookup(adv.Address)
	require.True(t, ok)
	assert.Equal(t, "Approach R10", got.Name)

	all := r.Devices()
	assert.Len(t, all, 1)
}

func TestRegistry_DevicesSnapshotIsIndependent(t *testing.T) {
	r := NewRegistry(nil, nil)
	r.devices.Set("addr-1", gattbus.Advertisement{Address: "addr-1"})

	snap := r.Devices()
	snap["addr-2"] = gattbus.Advertisement{Address: "addr-2"}

	assert.Len(t, r.Devices(), 1, "mutating a snapshot must not affect the registry")
}

package gattbus

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestPathPattern_MatchesServiceAndChar(t *testing.T) {
	m := pathPattern.FindStringSubmatch("/org/bluez/hci0/dev_AA_BB/service0012/char0015")
	assert.NotNil(t, m)
	assert.Equal(t, "service0012", m[1])
	assert.Equal(t, "char0015", m[2])
}

func TestPathPattern_NoMatchOnServiceOnly(t *testing.T) {
	m := pathPattern.FindStringSubmatch("/org/bluez/hci0/dev_AA_BB/service0012")
	assert.Nil(t, m)
}

func TestAddEndpoint_BuildsNestedTree(t *testing.T) {
	tree := make(endpointTree)
	addEndpoint(tree, "6a4e2800667b11e3949a0800200c9a66", "6a4e2812667b11e3949a0800200c9a66", dbus.ObjectPath("/x/char1"), nil)
	addEndpoint(tree, "6a4e2800667b11e3949a0800200c9a66", "6a4e2822667b11e3949a0800200c9a66", dbus.ObjectPath("/x/char2"), nil)

	chars, ok := tree["6a4e2800667b11e3949a0800200c9a66"]
	assert.True(t, ok)
	assert.Len(t, chars, 2)
}

func TestAddEndpoint_SkipsEmptyUUIDs(t *testing.T) {
	tree := make(endpointTree)
	addEndpoint(tree, "", "char", dbus.ObjectPath("/x"), nil)
	addEndpoint(tree, "service", "", dbus.ObjectPath("/x"), nil)
	assert.Len(t, tree, 0)
}

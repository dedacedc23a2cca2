package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagProperties_ReportsSetFlags(t *testing.T) {
	p := FlagProperties{"read", "notify"}

	assert.Equal(t, 1, p.Read().Value())
	assert.Equal(t, 1, p.Notify().Value())
	assert.Equal(t, 0, p.Write().Value())
	assert.Equal(t, "unset", p.Write().KnownName())
	assert.Equal(t, "read,notify", p.String())
}

func TestFlagProperties_EmptyHasNoFlagsSet(t *testing.T) {
	var p FlagProperties

	assert.Equal(t, 0, p.Read().Value())
	assert.Equal(t, "", p.String())
}

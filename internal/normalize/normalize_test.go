package normalize

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srg/r10bridge/internal/lmproto"
)

func TestShot_S2Scenario(t *testing.T) {
	// spec §8 S2: ballSpeed=50.0 m/s, spinAxis=3.0°, totalSpin=3000 rpm.
	m := &lmproto.ShotMetrics{
		ShotID:    42,
		BallSpeed: 50.0,
		SpinAxis:  3.0,
		TotalSpin: 3000,
	}

	got := Shot(m)

	assert.EqualValues(t, 42, got.ShotID)
	assert.InDelta(t, 111.845, got.BallSpeedMPH, 0.001)
	assert.InDelta(t, -3.0, got.SpinAxisDeg, 1e-9)

	wantSide := 3000 * math.Sin(-3.0*math.Pi/180)
	wantBack := 3000 * math.Cos(-3.0*math.Pi/180)
	assert.InDelta(t, wantSide, got.SideSpinRPM, 1e-6)
	assert.InDelta(t, wantBack, got.BackSpinRPM, 1e-6)
}

func TestShot_PassthroughFields(t *testing.T) {
	m := &lmproto.ShotMetrics{
		LaunchAngle:     12.5,
		LaunchDirection: -1.2,
		AttackAngle:     2.3,
		ClubFace:        0.4,
		ClubPath:        -0.6,
	}

	got := Shot(m)

	assert.EqualValues(t, 12.5, got.LaunchAngleDeg)
	assert.EqualValues(t, float32(-1.2), got.LaunchDirection)
	assert.EqualValues(t, float32(2.3), got.AttackAngleDeg)
	assert.EqualValues(t, float32(0.4), got.ClubFaceDeg)
	assert.EqualValues(t, float32(-0.6), got.ClubPathDeg)
}

func TestShot_ZeroSpinAxisHasNoSideSpin(t *testing.T) {
	m := &lmproto.ShotMetrics{TotalSpin: 2500, SpinAxis: 0}
	got := Shot(m)
	assert.InDelta(t, 0, got.SideSpinRPM, 1e-9)
	assert.InDelta(t, 2500, got.BackSpinRPM, 1e-6)
}

// Package normalize converts the R10's raw protobuf shot metrics into a
// sink-neutral ShotRecord, applying the unit conversions and sign
// conventions the boundary adapter owns (spec §4.7): the core protocol
// layers never see mph or the sink's spin-axis convention.
package normalize

import (
	"math"

	"github.com/srg/r10bridge/internal/lmproto"
)

// metersPerSecondToMPH converts the device's native m/s readings to the
// mph the sink expects.
const metersPerSecondToMPH = 2.2369

// ShotRecord is the sink-neutral shape emitted once per unique shot-id.
type ShotRecord struct {
	ShotID          uint32
	BallSpeedMPH    float64
	ClubSpeedMPH    float64
	SpinAxisDeg     float64
	SideSpinRPM     float64
	BackSpinRPM     float64
	LaunchAngleDeg  float64
	LaunchDirection float64
	AttackAngleDeg  float64
	ClubFaceDeg     float64
	ClubPathDeg     float64
}

// Shot converts one decoded ShotMetrics into a ShotRecord. The device
// reports spinAxis with the opposite sign convention from the sink, and
// expresses total spin as a single magnitude that must be decomposed into
// side/back spin components from the (already-negated) axis angle.
func Shot(m *lmproto.ShotMetrics) ShotRecord {
	spinAxis := -float64(m.SpinAxis)
	axisRad := spinAxis * math.Pi / 180

	return ShotRecord{
		ShotID:          m.ShotID,
		BallSpeedMPH:    float64(m.BallSpeed) * metersPerSecondToMPH,
		ClubSpeedMPH:    float64(m.ClubHeadSpeed) * metersPerSecondToMPH,
		SpinAxisDeg:     spinAxis,
		SideSpinRPM:     float64(m.TotalSpin) * math.Sin(axisRad),
		BackSpinRPM:     float64(m.TotalSpin) * math.Cos(axisRad),
		LaunchAngleDeg:  float64(m.LaunchAngle),
		LaunchDirection: float64(m.LaunchDirection),
		AttackAngleDeg:  float64(m.AttackAngle),
		ClubFaceDeg:     float64(m.ClubFace),
		ClubPathDeg:     float64(m.ClubPath),
	}
}

// Package lmproto decodes and encodes the R10's protobuf-wire message
// bodies by hand, field by field, via protowire. The vendor's .proto schema
// is not published; field numbers and types here are reverse-engineered from
// the observed wire bytes, not generated from a schema file.
package lmproto

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// DeviceState enumerates the launch monitor's reported operating state.
type DeviceState int32

const (
	StateStandby DeviceState = 0
	StateWaiting DeviceState = 1
	StateError   DeviceState = 2
)

func (s DeviceState) String() string {
	switch s {
	case StateStandby:
		return "Standby"
	case StateWaiting:
		return "Waiting"
	case StateError:
		return "Error"
	default:
		return fmt.Sprintf("DeviceState(%d)", int32(s))
	}
}

// field is one decoded top-level protobuf wire field.
type field struct {
	num     protowire.Number
	typ     protowire.Type
	varint  uint64
	fixed32 uint32
	bytes   []byte
}

func (f field) float32() float32 {
	return math.Float32frombits(f.fixed32)
}

// walkFields iterates every top-level field in a protobuf wire-encoded
// message, invoking fn once per field. Group/unsupported wire types are
// skipped rather than rejected, since only the handful of fields each
// message type defines are meaningful here.
func walkFields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("lmproto: malformed tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return fmt.Errorf("lmproto: malformed varint: %w", protowire.ParseError(n))
			}
			f.varint = v
			b = b[n:]
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return fmt.Errorf("lmproto: malformed fixed32: %w", protowire.ParseError(n))
			}
			f.fixed32 = v
			b = b[n:]
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return fmt.Errorf("lmproto: malformed fixed64: %w", protowire.ParseError(n))
			}
			_ = v
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return fmt.Errorf("lmproto: malformed bytes: %w", protowire.ParseError(n))
			}
			f.bytes = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return fmt.Errorf("lmproto: malformed field: %w", protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// StatusResponse is the body of a queryStatus() reply.
type StatusResponse struct {
	State DeviceState
}

// DecodeStatusResponse parses a StatusResponse from its protobuf wire body.
func DecodeStatusResponse(b []byte) (*StatusResponse, error) {
	out := &StatusResponse{}
	err := walkFields(b, func(f field) error {
		if f.num == 1 {
			out.State = DeviceState(f.varint)
		}
		return nil
	})
	return out, err
}

// TiltResponse is the body of a queryTilt() reply.
type TiltResponse struct {
	Roll  float32
	Pitch float32
}

// DecodeTiltResponse parses a TiltResponse from its protobuf wire body.
func DecodeTiltResponse(b []byte) (*TiltResponse, error) {
	out := &TiltResponse{}
	err := walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			out.Roll = f.float32()
		case 2:
			out.Pitch = f.float32()
		}
		return nil
	})
	return out, err
}

// AlertError carries a device-reported error code and message.
type AlertError struct {
	Code    int32
	Message string
}

func decodeAlertError(b []byte) (*AlertError, error) {
	out := &AlertError{}
	err := walkFields(b, func(f field) error {
		switch f.num {
		case 1:
			out.Code = int32(f.varint)
		case 2:
			out.Message = string(f.bytes)
		}
		return nil
	})
	return out, err
}

// ShotMetrics carries one decoded shot's ball, club, and swing metrics, in
// the device's native units (m/s, degrees, rpm) before normalisation.
type ShotMetrics struct {
	ShotID          uint32
	BallSpeed       float32
	SpinAxis        float32
	TotalSpin       float32
	ClubHeadSpeed   float32
	LaunchAngle     float32
	LaunchDirection float32
	AttackAngle     float32
	ClubFace        float32
	ClubPath        float32
}

func decodeShotMetrics(b []byte) (*ShotMetrics, error) {
	out := &ShotMetrics{}
	err := walkFields(b, func(f field) error {
		if f.num == 1 {
			out.ShotID = uint32(f.varint)
			return nil
		}
		switch f.num {
		case 2:
			out.BallSpeed = f.float32()
		case 3:
			out.SpinAxis = f.float32()
		case 4:
			out.TotalSpin = f.float32()
		case 5:
			out.ClubHeadSpeed = f.float32()
		case 6:
			out.LaunchAngle = f.float32()
		case 7:
			out.LaunchDirection = f.float32()
		case 8:
			out.AttackAngle = f.float32()
		case 9:
			out.ClubFace = f.float32()
		case 10:
			out.ClubPath = f.float32()
		}
		return nil
	})
	return out, err
}

// TiltCalibration carries the result of a startTiltCalibration() cycle.
type TiltCalibration struct {
	Status int32
}

// AlertNotification is the body of a B313 asynchronous device-to-host
// message: a state change, an error, shot metrics, or a tilt calibration
// result. Any subset of the optional fields may be present.
type AlertNotification struct {
	State           *DeviceState
	Error           *AlertError
	Metrics         *ShotMetrics
	TiltCalibration *TiltCalibration
}

// DecodeAlertNotification parses an AlertNotification from its protobuf wire body.
func DecodeAlertNotification(b []byte) (*AlertNotification, error) {
	out := &AlertNotification{}
	err := walkFields(b, func(f field) error {
		switch f.num {
		case 1: // state
			s := DeviceState(f.varint)
			out.State = &s
		case 2: // error
			e, err := decodeAlertError(f.bytes)
			if err != nil {
				return err
			}
			out.Error = e
		case 3: // metrics
			m, err := decodeShotMetrics(f.bytes)
			if err != nil {
				return err
			}
			out.Metrics = m
		case 4: // tiltCalibration
			out.TiltCalibration = &TiltCalibration{Status: int32(f.varint)}
		}
		return nil
	})
	return out, err
}

// ShotConfigRequest is the body sent to shotConfig(): the environmental
// settings the device uses to correct raw sensor readings.
type ShotConfigRequest struct {
	TemperatureF float32
	Humidity     float32
	AltitudeM    float32
	AirDensity   float32
	TeeRangeM    float32
}

// Encode serialises a ShotConfigRequest to protobuf wire bytes.
func (r *ShotConfigRequest) Encode() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(r.TemperatureF))
	b = protowire.AppendTag(b, 2, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(r.Humidity))
	b = protowire.AppendTag(b, 3, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(r.AltitudeM))
	b = protowire.AppendTag(b, 4, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(r.AirDensity))
	b = protowire.AppendTag(b, 5, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, math.Float32bits(r.TeeRangeM))
	return b
}

// DecodeSingleVarintAck parses the minimal single-field acknowledgement body
// startTiltCalibration() and shotConfig() receive: one varint at field 1.
func DecodeSingleVarintAck(b []byte) (int32, error) {
	var out int32
	err := walkFields(b, func(f field) error {
		if f.num == 1 && f.typ == protowire.VarintType {
			out = int32(f.varint)
		}
		return nil
	})
	return out, err
}

// AlertKind selects which class of alerts subscribeToAlerts() requests.
type AlertKind int32

// LaunchMonitorAlerts is the only alert kind the device firmware currently
// defines; it carries state, error, shot-metrics, and tilt-calibration
// notifications.
const LaunchMonitorAlerts AlertKind = 0

// EncodeAlertSubscription serialises the request body for
// subscribeToAlerts(kind).
func EncodeAlertSubscription(kind AlertKind) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(kind))
	return b
}

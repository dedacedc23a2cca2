package launchmonitor

import (
	"context"

	"github.com/srg/r10bridge/internal/lmproto"
)

// wake asks the device to leave standby and returns its reported status.
func (m *Monitor) wake(ctx context.Context) (*lmproto.StatusResponse, error) {
	resp, err := m.sess.SendRequest(ctx, nil)
	if err != nil {
		return nil, err
	}
	return lmproto.DecodeStatusResponse(resp)
}

// queryStatus returns the device's current operating state.
func (m *Monitor) queryStatus(ctx context.Context) (*lmproto.StatusResponse, error) {
	resp, err := m.sess.SendRequest(ctx, nil)
	if err != nil {
		return nil, err
	}
	return lmproto.DecodeStatusResponse(resp)
}

// queryTilt returns the device's current roll/pitch reading.
func (m *Monitor) queryTilt(ctx context.Context) (*lmproto.TiltResponse, error) {
	resp, err := m.sess.SendRequest(ctx, nil)
	if err != nil {
		return nil, err
	}
	return lmproto.DecodeTiltResponse(resp)
}

// subscribeToAlerts registers for the given class of asynchronous
// AlertNotifications.
func (m *Monitor) subscribeToAlerts(ctx context.Context, kind lmproto.AlertKind) error {
	_, err := m.sess.SendRequest(ctx, lmproto.EncodeAlertSubscription(kind))
	return err
}

// startTiltCalibration begins a tilt calibration cycle. Its result arrives
// later via an AlertNotification's tiltCalibration field, handled by
// Monitor.handleTiltCalibration; the synchronous response here only
// acknowledges that calibration started.
func (m *Monitor) startTiltCalibration(ctx context.Context) (*lmproto.TiltCalibration, error) {
	resp, err := m.sess.SendRequest(ctx, nil)
	if err != nil {
		return nil, err
	}
	status, err := lmproto.DecodeSingleVarintAck(resp)
	if err != nil {
		return nil, err
	}
	return &lmproto.TiltCalibration{Status: status}, nil
}

// shotConfig pushes the environmental settings the device uses to correct
// raw sensor readings, returning the device's accept/reject acknowledgement.
func (m *Monitor) shotConfig(ctx context.Context, cfg lmproto.ShotConfigRequest) (bool, error) {
	resp, err := m.sess.SendRequest(ctx, cfg.Encode())
	if err != nil {
		return false, err
	}
	accepted, err := lmproto.DecodeSingleVarintAck(resp)
	if err != nil {
		return false, err
	}
	return accepted != 0, nil
}

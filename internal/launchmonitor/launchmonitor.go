// Package launchmonitor wraps a session.Session with the R10's
// higher-level launch-monitor commands, readiness derivation, alert
// handling, and the setupSession startup sequence.
package launchmonitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/r10bridge/internal/device"
	"github.com/srg/r10bridge/internal/gattbus"
	"github.com/srg/r10bridge/internal/lmproto"
	"github.com/srg/r10bridge/internal/r10errors"
	"github.com/srg/r10bridge/internal/session"
)

// Transport is the GATT dependency Monitor drives: the session-level
// write/notify contract plus the ordering-constrained notifier/read
// operations setupSession needs. gattbus.DeviceTransport satisfies this;
// tests supply a fake.
type Transport interface {
	session.Transport
	EnableProtectedNotifier(ctx context.Context) error
	EnablePlainNotifier(ctx context.Context, serviceUUID, charUUID string) error
	ReadValue(ctx context.Context, serviceUUID, charUUID string) ([]byte, error)
}

// Info holds the device-info strings read once at setup time.
type Info struct {
	Serial   string
	Model    string
	Firmware string
}

// Config controls optional setupSession behavior.
type Config struct {
	AutoWake            bool
	CalibrateOnStartup  bool
	ShotConfig          lmproto.ShotConfigRequest
}

// Monitor is the launch-monitor-level view of a connected R10: the
// session protocol engine, the cached device info and tilt reading, and
// the readiness/alert glue spec.md §4.6 describes.
type Monitor struct {
	sess      *session.Session
	transport Transport
	log       *logrus.Entry
	cfg       Config

	mu    sync.Mutex
	ready bool
	info  Info
	tilt  *lmproto.TiltResponse

	onReadinessChanged func(bool)
	onShot             func(*lmproto.ShotMetrics)
	onError            func(r10errors.Severity, string)
}

// New wires a Monitor over an already-constructed session and its
// underlying GATT transport. Call Setup to run the startup sequence before
// using any command.
func New(transport Transport, log *logrus.Entry, cfg Config) *Monitor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Monitor{
		transport: transport,
		log:       log,
		cfg:       cfg,
	}
	m.sess = session.New(transport, log)
	m.sess.OnAlertState(m.handleAlertState)
	m.sess.OnAlertError(m.handleAlertError)
	m.sess.OnShotMetrics(m.handleShotMetrics)
	m.sess.OnTiltCalibration(m.handleTiltCalibration)
	return m
}

// OnReadinessChanged registers the callback fired whenever the derived
// readiness (state == Waiting) flips.
func (m *Monitor) OnReadinessChanged(fn func(ready bool)) { m.onReadinessChanged = fn }

// OnShot registers the callback fired once per unique shot.
func (m *Monitor) OnShot(fn func(*lmproto.ShotMetrics)) { m.onShot = fn }

// OnError registers the callback fired for device-reported and bridge-local
// errors.
func (m *Monitor) OnError(fn func(severity r10errors.Severity, message string)) { m.onError = fn }

// Info returns the device-info strings read during Setup.
func (m *Monitor) Info() Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// Ready reports the last known readiness (state == Waiting).
func (m *Monitor) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Tilt returns the last known tilt reading, or nil if none has been read.
func (m *Monitor) Tilt() *lmproto.TiltResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tilt
}

// Setup runs the setupSession startup sequence: protected notifier first
// (the ordering constraint), then plain notifiers, device-info reads, the
// handshake, an initial wake/status/tilt query, alert subscription, an
// optional tilt calibration, and the environmental shot-config push.
func (m *Monitor) Setup(ctx context.Context) error {
	if err := m.transport.EnableProtectedNotifier(ctx); err != nil {
		return fmt.Errorf("launchmonitor: enable protected notifier: %w", err)
	}

	plainNotifiers := []struct{ service, char string }{
		{gattbus.ServiceBattery, gattbus.CharBatteryLevel},
		{gattbus.ServiceMeasurement, gattbus.CharMeasurement},
		{gattbus.ServiceMeasurement, gattbus.CharControlPoint},
		{gattbus.ServiceMeasurement, gattbus.CharStatus},
	}
	for _, n := range plainNotifiers {
		if err := m.transport.EnablePlainNotifier(ctx, n.service, n.char); err != nil {
			return fmt.Errorf("launchmonitor: enable notifier %s: %w", n.char, err)
		}
	}

	info, err := m.readDeviceInfo(ctx)
	if err != nil {
		return fmt.Errorf("launchmonitor: read device info: %w", err)
	}
	m.mu.Lock()
	m.info = info
	m.mu.Unlock()

	if err := m.sess.Start(ctx); err != nil {
		return fmt.Errorf("launchmonitor: handshake: %w", err)
	}

	if _, err := m.wake(ctx); err != nil {
		return fmt.Errorf("launchmonitor: wake: %w", err)
	}
	status, err := m.queryStatus(ctx)
	if err != nil {
		return fmt.Errorf("launchmonitor: query status: %w", err)
	}
	m.setReady(status.State == lmproto.StateWaiting)

	tilt, err := m.queryTilt(ctx)
	if err != nil {
		return fmt.Errorf("launchmonitor: query tilt: %w", err)
	}
	m.mu.Lock()
	m.tilt = tilt
	m.mu.Unlock()

	if err := m.subscribeToAlerts(ctx, lmproto.LaunchMonitorAlerts); err != nil {
		return fmt.Errorf("launchmonitor: subscribe to alerts: %w", err)
	}

	if m.cfg.CalibrateOnStartup {
		if _, err := m.startTiltCalibration(ctx); err != nil {
			return fmt.Errorf("launchmonitor: start tilt calibration: %w", err)
		}
	}

	if _, err := m.shotConfig(ctx, m.cfg.ShotConfig); err != nil {
		return fmt.Errorf("launchmonitor: push shot config: %w", err)
	}

	return nil
}

func (m *Monitor) readDeviceInfo(ctx context.Context) (Info, error) {
	read := func(char string) string {
		data, err := m.transport.ReadValue(ctx, gattbus.ServiceDeviceInformation, char)
		if err != nil {
			m.log.WithError(err).WithField("char", char).Warn("launchmonitor: device-info read failed")
			return ""
		}
		v, err := device.ParseCharacteristicValue(char, data)
		if err != nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}
	return Info{
		Serial:   read(gattbus.CharSerialNumber),
		Model:    read(gattbus.CharModelNumber),
		Firmware: read(gattbus.CharFirmwareVersion),
	}, nil
}

func (m *Monitor) setReady(ready bool) {
	m.mu.Lock()
	changed := m.ready != ready
	m.ready = ready
	m.mu.Unlock()
	if changed && m.onReadinessChanged != nil {
		m.onReadinessChanged(ready)
	}
}

func (m *Monitor) handleAlertState(state lmproto.DeviceState) {
	m.setReady(state == lmproto.StateWaiting)
	if state == lmproto.StateStandby {
		if m.cfg.AutoWake {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := m.wake(ctx); err != nil {
				m.reportError(r10errors.SeverityWarning, fmt.Sprintf("auto-wake failed: %v", err))
			}
			return
		}
		m.reportError(r10errors.SeverityInfo, "device entered standby")
	}
}

func (m *Monitor) handleAlertError(e *lmproto.AlertError) {
	m.reportError(r10errors.SeverityWarning, e.Message)
}

func (m *Monitor) handleShotMetrics(metrics *lmproto.ShotMetrics) {
	if m.onShot != nil {
		m.onShot(metrics)
	}
}

func (m *Monitor) handleTiltCalibration(*lmproto.TiltCalibration) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tilt, err := m.queryTilt(ctx)
	if err != nil {
		m.reportError(r10errors.SeverityWarning, fmt.Sprintf("re-query tilt after calibration failed: %v", err))
		return
	}
	m.mu.Lock()
	m.tilt = tilt
	m.mu.Unlock()
}

func (m *Monitor) reportError(severity r10errors.Severity, message string) {
	m.log.WithField("severity", severity.String()).Warn("launchmonitor: " + message)
	if m.onError != nil {
		m.onError(severity, message)
	}
}

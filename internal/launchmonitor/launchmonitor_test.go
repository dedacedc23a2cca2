package launchmonitor

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/srg/r10bridge/internal/frame"
	"github.com/srg/r10bridge/internal/lmproto"
	"github.com/srg/r10bridge/internal/r10errors"
)

// fakeTransport captures writes and lets the test feed notifications; it
// never answers a request by itself. It satisfies Transport without touching
// any real GATT/D-Bus machinery. It
// enforces the same protected-notifier-first ordering constraint as
// gattbus.DeviceTransport so tests can exercise Setup's handling of a
// transport that already saw a GATT op before EnableProtectedNotifier ran.
type fakeTransport struct {
	writes        chan []byte
	notifications chan []byte

	headerByte byte

	protectedFirst bool
	anyGattOp      bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		writes:        make(chan []byte, 256),
		notifications: make(chan []byte, 256),
		headerByte:    0x11,
	}
}

func (f *fakeTransport) WriteWithoutResponse(_ context.Context, data []byte) error {
	f.writes <- append([]byte(nil), data...)
	return nil
}

func (f *fakeTransport) Notifications() <-chan []byte { return f.notifications }

func (f *fakeTransport) EnableProtectedNotifier(_ context.Context) error {
	if f.anyGattOp {
		return r10errors.ErrNotifyAuthRequired
	}
	f.protectedFirst = true
	f.anyGattOp = true
	return nil
}

func (f *fakeTransport) EnablePlainNotifier(_ context.Context, _, _ string) error {
	if !f.protectedFirst {
		return r10errors.ErrNotifyAuthRequired
	}
	f.anyGattOp = true
	return nil
}

func (f *fakeTransport) ReadValue(_ context.Context, _, _ string) ([]byte, error) {
	if !f.protectedFirst {
		return nil, r10errors.ErrNotifyAuthRequired
	}
	f.anyGattOp = true
	return []byte("R10-TEST"), nil
}

func TestReadiness_DerivedFromState(t *testing.T) {
	m := &Monitor{log: logrus.NewEntry(logrus.New())}

	var transitions []bool
	m.OnReadinessChanged(func(ready bool) { transitions = append(transitions, ready) })

	m.setReady(false) // no transition: already false by zero value... see below
	m.handleAlertState(lmproto.StateWaiting)
	m.handleAlertState(lmproto.StateWaiting) // no duplicate transition
	m.handleAlertState(lmproto.StateStandby)

	require.Len(t, transitions, 2)
	assert.True(t, transitions[0])
	assert.False(t, transitions[1])
}

func TestHandleAlertState_AutoWakeFromStandby(t *testing.T) {
	tr := newFakeTransport()
	m := New(tr, logrus.NewEntry(logrus.New()), Config{AutoWake: true})

	startHandshaken(t, m, tr)

	var errs []string
	m.OnError(func(_ r10errors.Severity, message string) { errs = append(errs, message) })

	go func() {
		env := drainEnvelope(t, tr)
		resp := makeStatusResponse(decodeCounter(env), lmproto.StateWaiting)
		notifyFrame(tr, resp, tr.headerByte)
	}()

	m.handleAlertState(lmproto.StateStandby)

	assert.False(t, m.Ready()) // standby itself is not ready; wake()'s reply is not fed back into readiness
	assert.Empty(t, errs, "auto-wake should have succeeded without surfacing an error")
}

// startHandshaken drives m's session through the handshake so its worker
// loops are running before a test exercises a command.
func startHandshaken(t *testing.T, m *Monitor, tr *fakeTransport) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- m.sess.Start(context.Background()) }()

	<-tr.writes // handshake-open write
	reply := append([]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, tr.headerByte, 0x00, 0x00, 0x00})
	tr.notifications <- reply

	require.NoError(t, <-done)
	<-tr.writes // handshake-close write
	t.Cleanup(m.sess.Stop)
}

// TestSetup_OrderingViolationSurfacesNotifyAuthRequired covers spec.md §8's
// ordering-constraint property: a transport that already ran a GATT
// operation before EnableProtectedNotifier (e.g. a connection reused after a
// prior setup crashed mid-sequence) must make Setup fail with
// ErrNotifyAuthRequired rather than hang or succeed.
func TestSetup_OrderingViolationSurfacesNotifyAuthRequired(t *testing.T) {
	tr := newFakeTransport()
	tr.anyGattOp = true // simulate a GATT op that already ran out of order

	m := New(tr, logrus.NewEntry(logrus.New()), Config{})
	err := m.Setup(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, r10errors.ErrNotifyAuthRequired)
}

func TestHandleShotMetrics_InvokesCallback(t *testing.T) {
	m := &Monitor{log: logrus.NewEntry(logrus.New())}
	var got *lmproto.ShotMetrics
	m.OnShot(func(metrics *lmproto.ShotMetrics) { got = metrics })

	m.handleShotMetrics(&lmproto.ShotMetrics{ShotID: 7})
	require.NotNil(t, got)
	assert.EqualValues(t, 7, got.ShotID)
}

// --- helpers shared with the request/response exchange ---

func decodeCounter(payload []byte) uint32 {
	if len(payload) < 5 {
		return 0
	}
	return uint32(payload[2])<<16 | uint32(payload[3])<<8 | uint32(payload[4])
}

func makeStatusResponse(counter uint32, state lmproto.DeviceState) []byte {
	out := make([]byte, 16)
	out[0], out[1] = 0xB4, 0x13
	out[2] = byte(counter >> 16)
	out[3] = byte(counter >> 8)
	out[4] = byte(counter)
	var body []byte
	body = protowire.AppendTag(body, 1, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(state))
	return append(out, body...)
}

func notifyFrame(tr *fakeTransport, envelopeBody []byte, headerByte byte) {
	wrapped := frame.Build(envelopeBody)
	for _, c := range frame.Chunk(wrapped, headerByte) {
		tr.notifications <- c
	}
}

func drainEnvelope(t *testing.T, tr *fakeTransport) []byte {
	t.Helper()
	r := frame.NewReassembler()
	for {
		chunk := <-tr.writes
		payload, complete := r.Feed(chunk[1:])
		if !complete {
			continue
		}
		wrapped := make([]byte, 0, len(payload)+2)
		wrapped = append(wrapped, 0x00)
		wrapped = append(wrapped, payload...)
		wrapped = append(wrapped, 0x00)
		msg, err := frame.Parse(wrapped)
		require.NoError(t, err)
		return msg
	}
}

package session

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/srg/r10bridge/internal/frame"
	"github.com/srg/r10bridge/internal/lmproto"
	"github.com/srg/r10bridge/internal/r10errors"
)

// fakeTransport is a test double standing in for the GATT transport. Writes
// are captured for assertions; notifications are fed by the test.
type fakeTransport struct {
	writes        chan []byte
	notifications chan []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		writes:        make(chan []byte, 256),
		notifications: make(chan []byte, 256),
	}
}

func (f *fakeTransport) WriteWithoutResponse(_ context.Context, data []byte) error {
	cp := append([]byte(nil), data...)
	f.writes <- cp
	return nil
}

func (f *fakeTransport) Notifications() <-chan []byte {
	return f.notifications
}

func newTestSession(t *testing.T) (*Session, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	log := logrus.NewEntry(logrus.New())
	s := New(tr, log)
	return s, tr
}

func startHandshaken(t *testing.T, headerByte byte) (*Session, *fakeTransport) {
	t.Helper()
	s, tr := newTestSession(t)

	done := make(chan error, 1)
	go func() {
		done <- s.Start(context.Background())
	}()

	// Drain the handshake-open write, then reply with the device's
	// handshake notification carrying headerByte.
	<-tr.writes
	reply := append([]byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, headerByte, 0x00, 0x00, 0x00})
	tr.notifications <- reply

	require.NoError(t, <-done)
	<-tr.writes // drain the handshake-close write

	t.Cleanup(s.Stop)
	return s, tr
}

func TestHandshake_AdoptsHeaderByte(t *testing.T) {
	s, _ := startHandshaken(t, 0x7E)
	assert.Equal(t, byte(0x7E), s.HeaderByte())
}

func TestHandshake_Timeout(t *testing.T) {
	handshakeDeadline = 50 * time.Millisecond
	defer func() { handshakeDeadline = 10 * time.Second }()

	s, tr := newTestSession(t)
	err := s.Start(context.Background())
	<-tr.writes // the handshake-open write, never answered
	assert.ErrorIs(t, err, r10errors.ErrHandshakeTimeout)
}

func TestSendRequest_MatchingResponse(t *testing.T) {
	s, tr := startHandshaken(t, 0x42)

	go func() {
		payload := drainEnvelope(t, tr)
		counter := decodeCounter(payload)

		resp := makeResponseEnvelope(counter, encodeStatusWaiting())
		notifyFrame(tr, resp, 0x42)
	}()

	resp, err := s.SendRequest(context.Background(), lmproto.EncodeAlertSubscription(lmproto.LaunchMonitorAlerts))
	require.NoError(t, err)

	status, err := lmproto.DecodeStatusResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, lmproto.StateWaiting, status.State)

	drainEnvelope(t, tr) // the ack written for the B413 response
}

func TestSendRequest_CounterAdvancesOnTimeoutThenRecovers(t *testing.T) {
	requestTimeout = 30 * time.Millisecond
	defer func() { requestTimeout = 5 * time.Second }()

	s, tr := startHandshaken(t, 0x11)

	// The request is only written once SendRequest runs, so the device side
	// of the exchange runs in its own goroutine.
	var firstCounter, secondCounter uint32
	go func() {
		// First attempt (#N) times out: never answer it, but capture its counter.
		firstCounter = decodeCounter(drainEnvelope(t, tr))

		// A late, stale reply to the first counter arrives after the timeout.
		go func(stale uint32) {
			time.Sleep(60 * time.Millisecond)
			notifyFrame(tr, makeResponseEnvelope(stale, encodeStatusWaiting()), 0x11)
		}(firstCounter)

		// Retry #2 uses counter+1 and succeeds.
		secondCounter = decodeCounter(drainEnvelope(t, tr))
		notifyFrame(tr, makeResponseEnvelope(secondCounter, encodeStatusWaiting()), 0x11)
	}()

	resp, err := s.SendRequest(context.Background(), lmproto.EncodeAlertSubscription(lmproto.LaunchMonitorAlerts))
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Equal(t, firstCounter+1, secondCounter)
}

func TestShotDeduplication(t *testing.T) {
	s, tr := startHandshaken(t, 0x11)

	var shots []*lmproto.ShotMetrics
	s.OnShotMetrics(func(m *lmproto.ShotMetrics) { shots = append(shots, m) })

	alert := makeMetricsAlert(42)
	env := buildRequestEnvelope(0, alert)
	env[0], env[1] = 0xB3, 0x13 // protoRequest prefix (async alert)

	notifyFrame(tr, env, 0x11)
	<-tr.writes // ack
	notifyFrame(tr, env, 0x11) // duplicate shot-id
	<-tr.writes                // ack for the duplicate too

	// Give the processor loop a moment to run (fake transport is async).
	deadline := time.After(time.Second)
	for len(shots) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for shot metrics callback")
		case <-time.After(time.Millisecond):
		}
	}

	assert.Len(t, shots, 1)
	assert.EqualValues(t, 42, shots[0].ShotID)
}

// --- test helpers ---

func notifyFrame(tr *fakeTransport, envelopeBody []byte, headerByte byte) {
	wrapped := frame.Build(envelopeBody)
	chunks := frame.Chunk(wrapped, headerByte)
	for _, c := range chunks {
		tr.notifications <- c
	}
}

// drainEnvelope reads chunks off tr.writes until a full frame reassembles,
// mirroring Session.handleNotification's own reassembly logic. A request or
// response envelope routinely spans more than one 19-byte BLE chunk, so
// tests must not assume a single read yields a complete frame.
func drainEnvelope(t *testing.T, tr *fakeTransport) []byte {
	t.Helper()
	r := frame.NewReassembler()
	for {
		chunk := <-tr.writes
		payload, complete := r.Feed(chunk[1:]) // strip the header byte
		if !complete {
			continue
		}
		msg, err := frame.Parse(wrapSentinels(payload))
		require.NoError(t, err)
		return msg
	}
}

func makeResponseEnvelope(counter uint32, body []byte) []byte {
	env := buildRequestEnvelope(counter, body)
	env[0], env[1] = 0xB4, 0x13 // protoResponse prefix
	return env
}

func encodeStatusWaiting() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(lmproto.StateWaiting))
	return b
}

func makeMetricsAlert(shotID uint32) []byte {
	var metrics []byte
	metrics = protowire.AppendTag(metrics, 1, protowire.VarintType)
	metrics = protowire.AppendVarint(metrics, uint64(shotID))
	metrics = protowire.AppendTag(metrics, 2, protowire.Fixed32Type)
	metrics = protowire.AppendFixed32(metrics, math.Float32bits(50.0))

	var b []byte
	b = protowire.AppendTag(b, 3, protowire.BytesType)
	b = protowire.AppendBytes(b, metrics)
	return b
}

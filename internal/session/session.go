// Package session implements the R10's device-session protocol engine: the
// handshake, the writer/reader/processor worker loops, request/response
// correlation by monotonic counter, message classification and
// acknowledgement, and shot deduplication.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/r10bridge/internal/frame"
	"github.com/srg/r10bridge/internal/goroutine"
	"github.com/srg/r10bridge/internal/lmproto"
	"github.com/srg/r10bridge/internal/r10errors"
)

const (
	queueCapacity  = 64
	requestRetries = 3
)

// handshakeDeadline and requestTimeout are vars, not consts, so tests can
// shrink them; production code never reassigns them.
var (
	handshakeDeadline = 10 * time.Second
	requestTimeout    = 5 * time.Second
)

// Transport is the GATT-level dependency a Session drives: writes-without-
// response on the device's writer characteristic, and a stream of raw
// notification bytes (header byte included) from its notifier
// characteristics. internal/gattbus provides the concrete BlueZ D-Bus
// implementation; tests supply a fake.
type Transport interface {
	WriteWithoutResponse(ctx context.Context, data []byte) error
	Notifications() <-chan []byte
}

// Session owns one connected, handshaken link to an R10. Exactly one
// Session exists per device connection; it is torn down on disconnect
// before a new one is created.
type Session struct {
	transport Transport
	log       *logrus.Entry

	headerByte    atomic.Uint32
	handshakeDone chan struct{}
	handshakeErr  error

	sendMu  sync.Mutex // serializes sendRequest callers; only one in-flight request
	counter uint32      // guarded by sendMu

	respMu         sync.Mutex // guards pendingCounter/pendingResp only
	pendingCounter uint32
	pendingResp    chan []byte

	// processedShotIDs tracks shot-ids already delivered to onShotMetrics,
	// touched only by the processor loop. Ordered so DiagnosticsShotIDs
	// can report them in the sequence the device sent them.
	processedShotIDs *orderedmap.OrderedMap[uint32, struct{}]

	writeQueue     chan []byte
	processorQueue chan []byte

	reassembler *frame.Reassembler

	cancel context.CancelFunc
	wg     sync.WaitGroup

	onAlertState      func(lmproto.DeviceState)
	onAlertError      func(*lmproto.AlertError)
	onShotMetrics     func(*lmproto.ShotMetrics)
	onTiltCalibration func(*lmproto.TiltCalibration)
}

// New constructs a Session over transport. Alert handlers are wired via the
// On* setters before Start.
func New(transport Transport, log *logrus.Entry) *Session {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Session{
		transport:        transport,
		log:              log,
		handshakeDone:    make(chan struct{}),
		processedShotIDs: orderedmap.New[uint32, struct{}](),
		writeQueue:       make(chan []byte, queueCapacity),
		processorQueue:   make(chan []byte, queueCapacity),
		reassembler:      frame.NewReassembler(),
	}
}

// OnAlertState registers the callback invoked when an AlertNotification
// carries a state field.
func (s *Session) OnAlertState(fn func(lmproto.DeviceState)) { s.onAlertState = fn }

// OnAlertError registers the callback invoked when an AlertNotification
// carries an error field.
func (s *Session) OnAlertError(fn func(*lmproto.AlertError)) { s.onAlertError = fn }

// OnShotMetrics registers the callback invoked once per unique shot-id when
// an AlertNotification carries metrics. Duplicate shot-ids are filtered
// before this callback runs.
func (s *Session) OnShotMetrics(fn func(*lmproto.ShotMetrics)) { s.onShotMetrics = fn }

// OnTiltCalibration registers the callback invoked when an AlertNotification
// carries a tiltCalibration result.
func (s *Session) OnTiltCalibration(fn func(*lmproto.TiltCalibration)) { s.onTiltCalibration = fn }

// Start launches the writer, reader, and processor loops and performs the
// handshake. It blocks until the handshake completes or handshakeDeadline
// elapses, returning r10errors.ErrHandshakeTimeout on timeout.
func (s *Session) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(3)
	goroutine.Go(runCtx, "session-writer", s.writerLoop)
	goroutine.Go(runCtx, "session-reader", s.readerLoop)
	goroutine.Go(runCtx, "session-processor", s.processorLoop)

	if err := s.transport.WriteWithoutResponse(runCtx, handshakeHostOpen); err != nil {
		s.Stop()
		return fmt.Errorf("session: handshake open write: %w", err)
	}

	select {
	case <-s.handshakeDone:
		if s.handshakeErr != nil {
			s.Stop()
			return s.handshakeErr
		}
	case <-time.After(handshakeDeadline):
		s.Stop()
		return r10errors.ErrHandshakeTimeout
	case <-runCtx.Done():
		return runCtx.Err()
	}

	if err := s.transport.WriteWithoutResponse(runCtx, handshakeHostClose); err != nil {
		s.Stop()
		return fmt.Errorf("session: handshake close write: %w", err)
	}
	return nil
}

// Stop cancels all worker loops and waits for them to exit.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// HeaderByte returns the session's negotiated header byte. Valid only after
// the handshake completes.
func (s *Session) HeaderByte() byte {
	return byte(s.headerByte.Load())
}

func (s *Session) writerLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-s.writeQueue:
			if !ok {
				return
			}
			if err := s.transport.WriteWithoutResponse(ctx, chunk); err != nil {
				s.log.WithError(err).Warn("session: write failed")
			}
		}
	}
}

func (s *Session) readerLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case notification, ok := <-s.transport.Notifications():
			if !ok {
				return
			}
			s.handleNotification(ctx, notification)
		}
	}
}

func (s *Session) handleNotification(ctx context.Context, notification []byte) {
	if len(notification) == 0 {
		return
	}

	if notification[0] == 0x00 || !s.isHandshakeComplete() {
		s.advanceHandshake(notification)
		return
	}

	chunk := notification[1:]
	payload, complete := s.reassembler.Feed(chunk)
	if !complete {
		return
	}

	msg, err := frame.Parse(wrapSentinels(payload))
	if err != nil {
		s.log.WithError(err).Debug("session: dropping malformed/corrupt frame")
		s.reassembler.Reset()
		return
	}

	select {
	case s.processorQueue <- msg:
	case <-ctx.Done():
	}
}

// wrapSentinels re-adds the 0x00 delimiters Reassembler.Feed strips, since
// frame.Parse accepts either sentinel-wrapped or bare COBS bodies.
func wrapSentinels(body []byte) []byte {
	out := make([]byte, 0, len(body)+2)
	out = append(out, 0x00)
	out = append(out, body...)
	out = append(out, 0x00)
	return out
}

func (s *Session) isHandshakeComplete() bool {
	select {
	case <-s.handshakeDone:
		return true
	default:
		return false
	}
}

func (s *Session) advanceHandshake(notification []byte) {
	if s.isHandshakeComplete() {
		return
	}
	headerByte, ok := parseHandshakeReply(notification)
	if !ok {
		return
	}
	s.headerByte.Store(uint32(headerByte))
	close(s.handshakeDone)
}

func (s *Session) processorLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-s.processorQueue:
			if !ok {
				return
			}
			s.dispatch(ctx, payload)
		}
	}
}

func (s *Session) dispatch(ctx context.Context, payload []byte) {
	k := classify(payload)
	if k == kindUnknown {
		s.log.WithField("prefix", fmt.Sprintf("%x", firstTwo(payload))).Debug("session: unclassified frame")
		return
	}

	s.acknowledge(ctx, [2]byte{payload[0], payload[1]})

	switch k {
	case kindDeviceInfo, kindConfig:
		// No application action beyond acknowledgement.
	case kindProtoResponse:
		s.handleResponse(payload)
	case kindProtoRequest:
		s.handleAlert(payload)
	}
}

func firstTwo(b []byte) []byte {
	if len(b) < 2 {
		return b
	}
	return b[:2]
}

func (s *Session) acknowledge(ctx context.Context, origPrefix [2]byte) {
	ack := buildAck(origPrefix)
	for _, chunk := range frame.BuildChunks(ack, s.HeaderByte()) {
		select {
		case s.writeQueue <- chunk:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) handleResponse(payload []byte) {
	if len(payload) <= envelopeBodyOffset {
		return
	}
	counter := decodeCounter(payload)

	s.respMu.Lock()
	if s.pendingResp == nil || counter != s.pendingCounter {
		s.respMu.Unlock()
		return // stale or unmatched response; not an error to the caller
	}
	ch := s.pendingResp
	s.pendingResp = nil
	s.respMu.Unlock()

	ch <- protoBody(payload)
}

func (s *Session) handleAlert(payload []byte) {
	body := protoBody(payload)
	if body == nil {
		return
	}
	alert, err := lmproto.DecodeAlertNotification(body)
	if err != nil {
		s.log.WithError(err).Warn("session: malformed alert notification")
		return
	}

	if alert.State != nil && s.onAlertState != nil {
		s.onAlertState(*alert.State)
	}
	if alert.Error != nil && s.onAlertError != nil {
		s.onAlertError(alert.Error)
	}
	if alert.TiltCalibration != nil && s.onTiltCalibration != nil {
		s.onTiltCalibration(alert.TiltCalibration)
	}
	if alert.Metrics != nil {
		if _, seen := s.processedShotIDs.Get(alert.Metrics.ShotID); seen {
			s.log.WithField("shot_id", alert.Metrics.ShotID).Warn("session: duplicate shot-id, dropping")
			return
		}
		s.processedShotIDs.Set(alert.Metrics.ShotID, struct{}{})
		if s.onShotMetrics != nil {
			s.onShotMetrics(alert.Metrics)
		}
	}
}

// DiagnosticsShotIDs returns every shot-id this session has delivered to
// onShotMetrics, in the order the device reported them. Intended for a
// support dump, not the hot path.
func (s *Session) DiagnosticsShotIDs() []uint32 {
	ids := make([]uint32, 0, s.processedShotIDs.Len())
	for pair := s.processedShotIDs.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// SendRequest builds a B313 request envelope carrying body, writes it, and
// waits for a matching B413 response. It retries up to requestRetries times
// with a requestTimeout wait each; the request counter advances
// unconditionally on every timeout, matching or not.
func (s *Session) SendRequest(ctx context.Context, body []byte) ([]byte, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	for attempt := 0; attempt < requestRetries; attempt++ {
		counter := s.counter
		respCh := make(chan []byte, 1)

		s.respMu.Lock()
		s.pendingCounter = counter
		s.pendingResp = respCh
		s.respMu.Unlock()

		env := buildRequestEnvelope(counter, body)
		for _, chunk := range frame.BuildChunks(env, s.HeaderByte()) {
			select {
			case s.writeQueue <- chunk:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		select {
		case resp := <-respCh:
			s.counter++
			return resp, nil
		case <-time.After(requestTimeout):
			// The device considers the request consumed regardless; advance
			// the counter so the next request is not classified stale.
			s.counter++
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, r10errors.ErrRequestTimeout
}

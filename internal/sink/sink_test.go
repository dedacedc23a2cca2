package sink

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srg/r10bridge/internal/normalize"
	"github.com/srg/r10bridge/internal/r10errors"
)

type recordingSink struct {
	shots      []normalize.ShotRecord
	readiness  []bool
	errMessage string
}

func (r *recordingSink) OnShot(record normalize.ShotRecord) { r.shots = append(r.shots, record) }
func (r *recordingSink) OnReadinessChanged(ready bool)       { r.readiness = append(r.readiness, ready) }
func (r *recordingSink) OnError(_ r10errors.Severity, message string) { r.errMessage = message }

func TestFanout_BroadcastsToAllSinks(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	f := NewFanout(a, b)

	f.OnShot(normalize.ShotRecord{ShotID: 1})
	f.OnReadinessChanged(true)
	f.OnError(r10errors.SeverityWarning, "boom")

	for _, s := range []*recordingSink{a, b} {
		require.Len(t, s.shots, 1)
		assert.EqualValues(t, 1, s.shots[0].ShotID)
		assert.Equal(t, []bool{true}, s.readiness)
		assert.Equal(t, "boom", s.errMessage)
	}
}

func TestTCPShotClient_WritesLengthPrefixedFrame(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		accepted <- conn
	}()

	c := NewTCPShotClient(ln.Addr().String(), nil, time.Millisecond)
	c.OnShot(normalize.ShotRecord{ShotID: 7, BallSpeedMPH: 111.8})
	defer c.Close()

	conn := <-accepted
	defer conn.Close()

	var lenBuf [4]byte
	_, err = conn.Read(lenBuf[:])
	require.NoError(t, err)
	n := int(lenBuf[0])<<24 | int(lenBuf[1])<<16 | int(lenBuf[2])<<8 | int(lenBuf[3])
	assert.Greater(t, n, 0)

	body := make([]byte, n)
	_, err = conn.Read(body)
	require.NoError(t, err)
}

func TestTextLineServer_BroadcastsKeyValueLines(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s := NewTextLineServer(nil)
	go s.Serve(ln)
	defer s.Close()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// Give Serve's Accept a moment to register the client.
	time.Sleep(20 * time.Millisecond)

	s.OnReadinessChanged(true)

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event=readiness ready=true\n", line)
}

func TestPuttingHTTPHandler_ForwardsSyntheticShot(t *testing.T) {
	next := &recordingSink{}
	h := NewPuttingHTTPHandler(next, nil)

	body, _ := json.Marshal(map[string]float64{"ball_speed_mph": 12.5, "launch_direction_deg": 1.0})
	req := httptest.NewRequest(http.MethodPost, "/putt", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, next.shots, 1)
	assert.InDelta(t, 12.5, next.shots[0].BallSpeedMPH, 1e-9)
	assert.Greater(t, next.shots[0].ShotID, uint32(1<<29))
}

func TestPuttingHTTPHandler_RejectsNonPost(t *testing.T) {
	h := NewPuttingHTTPHandler(&recordingSink{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/putt", nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

package sink

import (
	"bufio"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/srg/r10bridge/internal/normalize"
	"github.com/srg/r10bridge/internal/r10errors"
)

// TextLineServer listens for simulator connections that prefer a plain
// text protocol over the binary TCP client frames: each accepted
// connection receives one newline-terminated key=value record per shot
// or readiness transition. It stands in for "a separate text protocol"
// spec.md §1 names as an external collaborator.
type TextLineServer struct {
	log *logrus.Entry

	mu      sync.Mutex
	clients map[net.Conn]*bufio.Writer
}

// NewTextLineServer builds a server with no listener started yet.
func NewTextLineServer(log *logrus.Entry) *TextLineServer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &TextLineServer{log: log, clients: make(map[net.Conn]*bufio.Writer)}
}

// Serve accepts connections on ln until it returns an error (including
// on ln.Close()). Call it from its own goroutine.
func (s *TextLineServer) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.clients[conn] = bufio.NewWriter(conn)
		s.mu.Unlock()
		s.log.WithField("remote", conn.RemoteAddr()).Info("sink: text line client connected")
	}
}

func (s *TextLineServer) OnShot(record normalize.ShotRecord) {
	s.broadcast(fmt.Sprintf(
		"event=shot shot_id=%d ball_speed_mph=%.3f club_speed_mph=%.3f spin_axis_deg=%.2f side_spin_rpm=%.1f back_spin_rpm=%.1f launch_angle_deg=%.2f launch_direction_deg=%.2f attack_angle_deg=%.2f club_face_deg=%.2f club_path_deg=%.2f\n",
		record.ShotID, record.BallSpeedMPH, record.ClubSpeedMPH, record.SpinAxisDeg,
		record.SideSpinRPM, record.BackSpinRPM, record.LaunchAngleDeg, record.LaunchDirection,
		record.AttackAngleDeg, record.ClubFaceDeg, record.ClubPathDeg,
	))
}

func (s *TextLineServer) OnReadinessChanged(ready bool) {
	s.broadcast(fmt.Sprintf("event=readiness ready=%t\n", ready))
}

func (s *TextLineServer) OnError(severity r10errors.Severity, message string) {
	s.broadcast(fmt.Sprintf("event=error severity=%s message=%q\n", severity, message))
}

func (s *TextLineServer) broadcast(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, w := range s.clients {
		if _, err := w.WriteString(line); err != nil || w.Flush() != nil {
			s.log.WithField("remote", conn.RemoteAddr()).Debug("sink: text line client dropped")
			delete(s.clients, conn)
			_ = conn.Close()
			continue
		}
	}
}

// Close disconnects every client still attached.
func (s *TextLineServer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		_ = conn.Close()
		delete(s.clients, conn)
	}
}

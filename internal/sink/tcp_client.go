package sink

import (
	"encoding/binary"
	"math"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/srg/r10bridge/internal/normalize"
	"github.com/srg/r10bridge/internal/r10errors"
)

// DefaultReconnectDelay is used by TCPShotClient when its caller doesn't
// configure one.
const DefaultReconnectDelay = 5 * time.Second

// TCPShotClient dials a simulator-side TCP listener and re-emits every
// shot as a length-prefixed protobuf-wire ShotRecord frame. Connection
// loss is tolerated: writes fail silently into a reconnect attempt made
// on the next OnShot call, logged but never returned to the caller,
// since the core treats sinks as fire-and-forget.
type TCPShotClient struct {
	addr           string
	log            *logrus.Entry
	reconnectDelay time.Duration

	mu       sync.Mutex
	conn     net.Conn
	lastDial time.Time
}

// NewTCPShotClient builds a client targeting addr ("host:port"). It does
// not dial until the first OnShot call.
func NewTCPShotClient(addr string, log *logrus.Entry, reconnectDelay time.Duration) *TCPShotClient {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &TCPShotClient{addr: addr, log: log, reconnectDelay: reconnectDelay}
}

func (c *TCPShotClient) OnShot(record normalize.ShotRecord) {
	frame := encodeShotRecord(record)
	buf := make([]byte, 4+len(frame))
	binary.BigEndian.PutUint32(buf, uint32(len(frame)))
	copy(buf[4:], frame)

	conn, err := c.ensureConn()
	if err != nil {
		c.log.WithError(err).Warn("sink: tcp shot client dial failed")
		return
	}
	if _, err := conn.Write(buf); err != nil {
		c.log.WithError(err).Warn("sink: tcp shot client write failed")
		c.mu.Lock()
		_ = c.conn.Close()
		c.conn = nil
		c.mu.Unlock()
	}
}

func (c *TCPShotClient) OnReadinessChanged(bool) {}

func (c *TCPShotClient) OnError(r10errors.Severity, string) {}

// Close releases the underlying connection, if any.
func (c *TCPShotClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *TCPShotClient) ensureConn() (net.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}
	if !c.lastDial.IsZero() && time.Since(c.lastDial) < c.reconnectDelay {
		return nil, r10errors.ErrDisconnected
	}
	c.lastDial = time.Now()
	conn, err := net.DialTimeout("tcp", c.addr, 10*time.Second)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return conn, nil
}

// encodeShotRecord serialises a ShotRecord to protobuf wire bytes. Fields
// 1-3 (shot id, ball speed, spin axis) share lmproto.ShotMetrics' numbers;
// from field 4 on the numbering is ShotRecord's own (side spin, back spin,
// club speed, then the launch and club angles), not lmproto.ShotMetrics'.
func encodeShotRecord(r normalize.ShotRecord) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.ShotID))
	b = appendFloatField(b, 2, r.BallSpeedMPH)
	b = appendFloatField(b, 3, r.SpinAxisDeg)
	b = appendFloatField(b, 4, r.SideSpinRPM)
	b = appendFloatField(b, 5, r.BackSpinRPM)
	b = appendFloatField(b, 6, r.ClubSpeedMPH)
	b = appendFloatField(b, 7, r.LaunchAngleDeg)
	b = appendFloatField(b, 8, r.LaunchDirection)
	b = appendFloatField(b, 9, r.AttackAngleDeg)
	b = appendFloatField(b, 10, r.ClubFaceDeg)
	b = appendFloatField(b, 11, r.ClubPathDeg)
	return b
}

func appendFloatField(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(float32(v)))
}

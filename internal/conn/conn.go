package conn

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ibmirror/internal/logger"
	"ibmirror/internal/protocol"
)

// State is the connection lifecycle phase.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshake
	StateConnected
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshake:
		return "handshake"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	}
	return "unknown"
}

// Stats is a snapshot of transport counters for the current connection.
type Stats struct {
	ConnectedAt time.Time
	FramesIn    int64
	FramesOut   int64
	BytesIn     int64
	BytesOut    int64
}

type Config struct {
	Host             string
	Port             int
	ClientID         int64
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration

	// Dialer overrides the TCP dial, used by tests to wire an in-process
	// gateway over net.Pipe.
	Dialer func(ctx context.Context, addr string) (net.Conn, error)
}

// Manager owns one socket to the gateway. A single read goroutine splits
// inbound frames and hands each payload to onFrame; onDisconnect fires
// exactly once per established connection, whether the peer dropped us or
// Disconnect was called.
type Manager struct {
	cfg Config
	log *logger.Logger

	onFrame      func(payload []byte)
	onDisconnect func(err error)

	// OnHandshake runs after version negotiation, before the read loop
	// delivers any frame. Set before Connect.
	OnHandshake func(serverVersion int)

	mu            sync.Mutex
	state         State
	conn          net.Conn
	serverVersion int
	serverTime    string
	stats         Stats
	downOnce      *sync.Once
	stopCh        chan struct{}
}

func New(cfg Config, log *logger.Logger, onFrame func([]byte), onDisconnect func(error)) *Manager {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Manager{
		cfg:          cfg,
		log:          log,
		onFrame:      onFrame,
		onDisconnect: onDisconnect,
		state:        StateDisconnected,
	}
}

func (m *Manager) logEntry() *logrus.Entry {
	return m.log.WithComponent("conn").WithField("client_id", m.cfg.ClientID)
}

// Connect dials the gateway, performs the version handshake and sends the
// API start message. On return the read loop is running and inbound frames
// flow to the onFrame sink.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("connect while %s", state)
	}
	m.state = StateConnecting
	m.mu.Unlock()

	addr := net.JoinHostPort(m.cfg.Host, fmt.Sprintf("%d", m.cfg.Port))
	m.logEntry().WithField("addr", addr).Info("Connecting to gateway.")

	var (
		c   net.Conn
		err error
	)
	if m.cfg.Dialer != nil {
		c, err = m.cfg.Dialer(ctx, addr)
	} else {
		d := net.Dialer{Timeout: m.cfg.ConnectTimeout}
		c, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		m.setState(StateDisconnected)
		return fmt.Errorf("dial gateway: %w", err)
	}

	m.setState(StateHandshake)
	serverVersion, serverTime, fb, err := m.handshake(c)
	if err != nil {
		c.Close()
		m.setState(StateDisconnected)
		return err
	}

	m.mu.Lock()
	m.conn = c
	m.serverVersion = serverVersion
	m.serverTime = serverTime
	m.stats = Stats{ConnectedAt: time.Now()}
	m.downOnce = &sync.Once{}
	m.stopCh = make(chan struct{})
	m.state = StateConnected
	stop := m.stopCh
	m.mu.Unlock()

	m.logEntry().WithFields(logrus.Fields{
		"server_version": serverVersion,
		"server_time":    serverTime,
	}).Info("Gateway connection established.")

	if m.OnHandshake != nil {
		m.OnHandshake(serverVersion)
	}

	go m.readLoop(c, stop, fb)

	// announce the session before anything else goes out
	enc := protocol.NewEncoder(serverVersion)
	if err := m.Send(enc.StartAPI(m.cfg.ClientID)); err != nil {
		m.Disconnect()
		return fmt.Errorf("send startAPI: %w", err)
	}
	return nil
}

// handshake writes the plaintext preamble with our supported version range
// and reads the server's version and session time. The frame buffer is
// returned so bytes the gateway coalesced behind its reply are not lost.
func (m *Manager) handshake(c net.Conn) (int, string, *protocol.FrameBuffer, error) {
	deadline := time.Now().Add(m.cfg.HandshakeTimeout)
	c.SetDeadline(deadline)
	defer c.SetDeadline(time.Time{})

	if _, err := c.Write(protocol.Preamble(protocol.MinClientVersion, protocol.MaxClientVersion)); err != nil {
		return 0, "", nil, fmt.Errorf("write preamble: %w", err)
	}

	fb := &protocol.FrameBuffer{}
	buf := make([]byte, 4096)
	for {
		n, err := c.Read(buf)
		if err != nil {
			return 0, "", nil, fmt.Errorf("read handshake: %w", err)
		}
		fb.Write(buf[:n])
		payload, err := fb.Next()
		if err != nil {
			return 0, "", nil, fmt.Errorf("handshake frame: %w", err)
		}
		if payload == nil {
			continue
		}
		version, serverTime, err := protocol.ParseHandshake(payload)
		if err != nil {
			return 0, "", nil, err
		}
		if version < protocol.MinClientVersion {
			return 0, "", nil, fmt.Errorf("server version %d below supported minimum %d", version, protocol.MinClientVersion)
		}
		return version, serverTime, fb, nil
	}
}

// readLoop continues on the handshake's frame buffer, draining any frames
// already buffered before touching the socket again.
func (m *Manager) readLoop(c net.Conn, stop <-chan struct{}, fb *protocol.FrameBuffer) {
	m.logEntry().Debug("Read loop started.")

	buf := make([]byte, 64*1024)
	for {
		for {
			payload, err := fb.Next()
			if err != nil {
				m.logEntry().WithError(err).Error("Framing error, dropping connection.")
				m.down(err)
				return
			}
			if payload == nil {
				break
			}
			m.mu.Lock()
			m.stats.FramesIn++
			m.mu.Unlock()
			m.onFrame(payload)
		}

		select {
		case <-stop:
			return
		default:
		}

		n, err := c.Read(buf)
		if err != nil {
			select {
			case <-stop:
				// local disconnect already reported
			default:
				m.logEntry().WithError(err).Warn("Gateway read failed.")
				m.down(fmt.Errorf("connection lost: %w", err))
			}
			return
		}
		fb.Write(buf[:n])

		m.mu.Lock()
		m.stats.BytesIn += int64(n)
		m.mu.Unlock()
	}
}

// Send frames payload and writes it to the socket.
func (m *Manager) Send(payload []byte) error {
	m.mu.Lock()
	c := m.conn
	state := m.state
	m.mu.Unlock()
	if state != StateConnected || c == nil {
		return fmt.Errorf("send while %s", state)
	}

	frame := protocol.Frame(payload)
	if _, err := c.Write(frame); err != nil {
		m.down(fmt.Errorf("connection lost: %w", err))
		return fmt.Errorf("write frame: %w", err)
	}

	m.mu.Lock()
	m.stats.FramesOut++
	m.stats.BytesOut += int64(len(frame))
	m.mu.Unlock()
	return nil
}

// Disconnect closes the socket deliberately. The disconnect hook still
// fires, with a nil error.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state != StateConnected && m.state != StateHandshake {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnecting
	m.mu.Unlock()

	m.logEntry().Info("Disconnecting from gateway.")
	m.down(nil)
}

// down tears the connection state back to disconnected and fires the hook
// exactly once for this connection.
func (m *Manager) down(cause error) {
	m.mu.Lock()
	once := m.downOnce
	c := m.conn
	stop := m.stopCh
	m.mu.Unlock()
	if once == nil {
		return
	}

	once.Do(func() {
		if stop != nil {
			close(stop)
		}
		if c != nil {
			c.Close()
		}
		m.mu.Lock()
		m.conn = nil
		m.state = StateDisconnected
		m.mu.Unlock()

		if m.onDisconnect != nil {
			m.onDisconnect(cause)
		}
	})
}

// State reports the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ServerVersion is the version negotiated at handshake, 0 before connect.
func (m *Manager) ServerVersion() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serverVersion
}

// ServerTime is the session time string the gateway reported at handshake.
func (m *Manager) ServerTime() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serverTime
}

// Stats returns a snapshot of the transport counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

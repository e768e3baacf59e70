package session

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ibmirror/internal/conn"
	"ibmirror/internal/events"
	"ibmirror/internal/logger"
	"ibmirror/internal/mirror"
	"ibmirror/internal/models"
	"ibmirror/internal/protocol"
	"ibmirror/internal/throttle"
	"ibmirror/internal/ticks"
)

// wait handle names for requests without their own id
const (
	opNextValidID     = "nextValidId"
	opManagedAccounts = "managedAccounts"
	opOpenOrders      = "openOrders"
	opPositions       = "positions"
	opAccountValues   = "accountValues"
	opCurrentTime     = "currentTime"
)

type Config struct {
	Host     string
	Port     int
	ClientID int64

	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	ThrottleLimit    int
	ThrottleInterval time.Duration

	Defaults protocol.Defaults

	// AdvisoryCodes adds to the built-in set of codes treated as
	// informational rather than raised.
	AdvisoryCodes map[int]bool

	// Dialer overrides the TCP dial for tests.
	Dialer func(ctx context.Context, addr string) (net.Conn, error)
}

// Session is the caller-facing facade: one gateway connection, its state
// mirror, ticker registry and request plumbing. All inbound mutation runs
// on the connection's read goroutine; callers read snapshots.
type Session struct {
	cfg Config
	log *logger.Logger

	bus    *events.Bus
	mirror *mirror.Mirror
	ticks  *ticks.Registry
	seq    *throttle.Sequencer
	pacer  *throttle.Pacer
	conn   *conn.Manager

	mu         sync.Mutex
	pending    map[string]*pending
	enc        *protocol.Encoder
	dec        *protocol.Decoder
	ready      bool
	serverTime time.Time

	// live market data and depth subscriptions, for idempotent cancels
	mktData map[int64]bool
	depth   map[int64]bool
}

func New(cfg Config, log *logger.Logger) *Session {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.ThrottleInterval == 0 {
		cfg.ThrottleInterval = time.Second
	}
	if cfg.Defaults.Timezone == nil {
		cfg.Defaults = protocol.DefaultDefaults()
	}

	s := &Session{
		cfg:     cfg,
		log:     log,
		bus:     events.NewBus(),
		seq:     throttle.NewSequencer(),
		pending: make(map[string]*pending),
		mktData: make(map[int64]bool),
		depth:   make(map[int64]bool),
	}
	s.mirror = mirror.New(log, s.bus)
	s.ticks = ticks.NewRegistry(log, s.bus, cfg.Defaults)
	s.conn = conn.New(conn.Config{
		Host:           cfg.Host,
		Port:           cfg.Port,
		ClientID:       cfg.ClientID,
		ConnectTimeout: cfg.ConnectTimeout,
		Dialer:         cfg.Dialer,
	}, log, s.onFrame, s.onDisconnect)
	// the codec pair must exist before the read loop delivers anything
	s.conn.OnHandshake = func(serverVersion int) {
		s.mu.Lock()
		s.enc = protocol.NewEncoder(serverVersion)
		s.dec = protocol.NewDecoder(serverVersion, s.cfg.Defaults)
		s.mu.Unlock()
	}
	s.pacer = throttle.NewPacer(cfg.ThrottleLimit, cfg.ThrottleInterval, s.conn.Send)
	s.pacer.OnPause = func(queued int) {
		s.logEntry().WithField("queued", queued).Warn("Message rate limit reached, queueing.")
	}
	s.pacer.OnResume = func() {
		s.logEntry().Info("Message queue drained.")
	}
	return s
}

func (s *Session) logEntry() *logrus.Entry {
	return s.log.WithComponent("session").WithField("client_id", s.cfg.ClientID)
}

// Bus exposes event subscription.
func (s *Session) Bus() *events.Bus { return s.bus }

// Ready reports whether the post-connect resync has completed.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Connect dials the gateway, waits for the session bootstrap (next valid
// order id, managed accounts) and runs the resync pass. Only after it
// returns is the mirror authoritative.
func (s *Session) Connect(ctx context.Context) error {
	nextID := s.register(opNextValidID, nil)
	accounts := s.register(opManagedAccounts, nil)

	if err := s.conn.Connect(ctx); err != nil {
		s.abandon(nextID)
		s.abandon(accounts)
		return err
	}

	if err := s.await(ctx, nextID); err != nil {
		s.conn.Disconnect()
		return fmt.Errorf("waiting for order id bootstrap: %w", err)
	}
	if err := s.await(ctx, accounts); err != nil {
		s.conn.Disconnect()
		return fmt.Errorf("waiting for managed accounts: %w", err)
	}

	if err := s.resync(ctx); err != nil {
		s.conn.Disconnect()
		return err
	}

	s.mu.Lock()
	s.ready = true
	s.mu.Unlock()

	s.bus.Publish(events.Event{Type: events.KindConnectivity,
		Connected: &events.ConnectivityEvent{Up: true}})
	s.logEntry().Info("Session ready.")
	return nil
}

// resync rebuilds the mirror from the server's canonical lists. Delivery
// is idempotent, so entities already known are not duplicated.
func (s *Session) resync(ctx context.Context) error {
	s.logEntry().Info("Resynchronizing server state.")

	p := s.register(opOpenOrders, nil)
	if err := s.send(s.encoder().ReqOpenOrders()); err != nil {
		s.abandon(p)
		return err
	}
	if err := s.await(ctx, p); err != nil {
		return fmt.Errorf("resync open orders: %w", err)
	}

	p = s.register(opPositions, func() {
		s.send(s.encoder().CancelPositions())
	})
	if err := s.send(s.encoder().ReqPositions()); err != nil {
		s.abandon(p)
		return err
	}
	if err := s.await(ctx, p); err != nil {
		return fmt.Errorf("resync positions: %w", err)
	}

	p = s.register(opAccountValues, func() {
		s.send(s.encoder().ReqAccountUpdates(false, ""))
	})
	if err := s.send(s.encoder().ReqAccountUpdates(true, "")); err != nil {
		s.abandon(p)
		return err
	}
	if err := s.await(ctx, p); err != nil {
		return fmt.Errorf("resync account values: %w", err)
	}

	reqID := s.seq.Next()
	p = s.register(reqKey(reqID), nil)
	if err := s.send(s.encoder().ReqExecutions(reqID)); err != nil {
		s.abandon(p)
		return err
	}
	if err := s.await(ctx, p); err != nil {
		return fmt.Errorf("resync executions: %w", err)
	}
	return nil
}

// Disconnect closes the connection deliberately. The mirror is cleared
// either way; it is only valid for one connection's lifetime.
func (s *Session) Disconnect() {
	s.conn.Disconnect()
}

// CurrentTime asks the gateway for its clock.
func (s *Session) CurrentTime(ctx context.Context) (time.Time, error) {
	p := s.register(opCurrentTime, nil)
	if err := s.send(s.encoder().ReqCurrentTime()); err != nil {
		s.abandon(p)
		return time.Time{}, err
	}
	if err := s.await(ctx, p); err != nil {
		return time.Time{}, err
	}
	s.mu.Lock()
	t := s.serverTime
	s.mu.Unlock()
	return t, nil
}

// RequestPositions re-requests the canonical position list and waits for
// the terminator.
func (s *Session) RequestPositions(ctx context.Context) ([]models.Position, error) {
	p := s.register(opPositions, func() {
		s.send(s.encoder().CancelPositions())
	})
	if err := s.send(s.encoder().ReqPositions()); err != nil {
		s.abandon(p)
		return nil, err
	}
	if err := s.await(ctx, p); err != nil {
		return nil, err
	}
	return s.mirror.Positions(), nil
}

// RequestExecutions re-requests today's executions.
func (s *Session) RequestExecutions(ctx context.Context) error {
	reqID := s.seq.Next()
	p := s.register(reqKey(reqID), nil)
	if err := s.send(s.encoder().ReqExecutions(reqID)); err != nil {
		s.abandon(p)
		return err
	}
	return s.await(ctx, p)
}

// Trades, positions and account state come from the mirror.

func (s *Session) Trade(orderID int64) (models.Trade, bool) { return s.mirror.Trade(orderID) }
func (s *Session) Trades() []models.Trade                   { return s.mirror.Trades() }
func (s *Session) OpenTrades() []models.Trade               { return s.mirror.OpenTrades() }
func (s *Session) Fills() []models.Fill                     { return s.mirror.Fills() }
func (s *Session) Positions() []models.Position             { return s.mirror.Positions() }
func (s *Session) AccountValues() []models.AccountValue     { return s.mirror.AccountValues() }
func (s *Session) ManagedAccounts() []string                { return s.mirror.ManagedAccounts() }

// Ticker returns the live snapshot for a market data subscription.
func (s *Session) Ticker(reqID int64) (ticks.Ticker, bool) { return s.ticks.Ticker(reqID) }
func (s *Session) Tickers() []ticks.Ticker                 { return s.ticks.Tickers() }

// Depth returns the order book ladder for a depth subscription.
func (s *Session) Depth(reqID int64) (bids, asks []ticks.DepthLevel) {
	return s.ticks.Depth(reqID)
}

// ConnectionStats reports transport counters for the current connection.
func (s *Session) ConnectionStats() conn.Stats { return s.conn.Stats() }

// ServerVersion is the negotiated protocol version.
func (s *Session) ServerVersion() int { return s.conn.ServerVersion() }

func (s *Session) encoder() *protocol.Encoder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc
}

func (s *Session) send(payload []byte) error {
	return s.pacer.Send(payload)
}

func reqKey(reqID int64) string {
	return "req:" + strconv.FormatInt(reqID, 10)
}

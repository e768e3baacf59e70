package conn

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"ibmirror/internal/logger"
	"ibmirror/internal/protocol"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

// fakeGateway speaks the server half of the handshake over one end of a
// net.Pipe.
type fakeGateway struct {
	conn net.Conn
	fb   protocol.FrameBuffer
}

func (g *fakeGateway) readFrame(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 4096)
	for {
		if payload, err := g.fb.Next(); err != nil {
			t.Fatalf("gateway framing: %v", err)
		} else if payload != nil {
			return payload
		}
		n, err := g.conn.Read(buf)
		if err != nil {
			t.Fatalf("gateway read: %v", err)
		}
		g.fb.Write(buf[:n])
	}
}

func (g *fakeGateway) expectPreamble(t *testing.T) {
	t.Helper()
	head := make([]byte, 4)
	if _, err := g.conn.Read(head); err != nil {
		t.Fatalf("gateway read preamble: %v", err)
	}
	if string(head) != "API\x00" {
		t.Fatalf("bad preamble %q", head)
	}
	g.readFrame(t) // version range
}

func (g *fakeGateway) sendHandshakeReply(t *testing.T, version int) {
	t.Helper()
	body := fmt.Sprintf("%d\x0020260831 10:00:00 UTC\x00", version)
	if _, err := g.conn.Write(protocol.Frame([]byte(body))); err != nil {
		t.Fatalf("gateway write: %v", err)
	}
}

func pipeManager(t *testing.T, onFrame func([]byte), onDisconnect func(error)) (*Manager, *fakeGateway) {
	t.Helper()
	client, server := net.Pipe()
	cfg := Config{
		Host:     "gateway",
		Port:     4002,
		ClientID: 1,
		Dialer: func(ctx context.Context, addr string) (net.Conn, error) {
			return client, nil
		},
	}
	if onFrame == nil {
		onFrame = func([]byte) {}
	}
	m := New(cfg, testLogger(), onFrame, onDisconnect)
	return m, &fakeGateway{conn: server}
}

func TestConnectHandshake(t *testing.T) {
	m, gw := pipeManager(t, nil, nil)

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background()) }()

	gw.expectPreamble(t)
	gw.sendHandshakeReply(t, 176)

	start := gw.readFrame(t)
	if string(start[:2]) != fmt.Sprintf("%d", protocol.OutStartAPI)[:2] {
		t.Fatalf("first message is not startAPI: %q", start)
	}

	if err := <-done; err != nil {
		t.Fatalf("connect: %v", err)
	}
	if m.State() != StateConnected {
		t.Fatalf("state = %v", m.State())
	}
	if m.ServerVersion() != 176 {
		t.Fatalf("server version = %d", m.ServerVersion())
	}
	m.Disconnect()
}

func TestConnectRejectsOldServer(t *testing.T) {
	m, gw := pipeManager(t, nil, nil)

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background()) }()

	gw.expectPreamble(t)
	gw.sendHandshakeReply(t, protocol.MinClientVersion-1)

	if err := <-done; err == nil {
		t.Fatalf("expected version rejection")
	}
	if m.State() != StateDisconnected {
		t.Fatalf("state = %v", m.State())
	}
}

func TestFramesReachSink(t *testing.T) {
	var mu sync.Mutex
	var got [][]byte
	m, gw := pipeManager(t, func(p []byte) {
		mu.Lock()
		got = append(got, append([]byte(nil), p...))
		mu.Unlock()
	}, nil)

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background()) }()
	gw.expectPreamble(t)
	gw.sendHandshakeReply(t, 176)
	gw.readFrame(t) // startAPI
	if err := <-done; err != nil {
		t.Fatalf("connect: %v", err)
	}

	gw.conn.Write(protocol.Frame([]byte("9\x001\x0042\x00")))
	gw.conn.Write(protocol.Frame([]byte("15\x001\x00DU1\x00")))

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sink saw %d frames, want 2", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	stats := m.Stats()
	if stats.FramesIn != 2 || stats.FramesOut != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	m.Disconnect()
}

func TestDisconnectHookFiresOnce(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	var cause error
	m, gw := pipeManager(t, nil, func(err error) {
		mu.Lock()
		calls++
		cause = err
		mu.Unlock()
	})

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background()) }()
	gw.expectPreamble(t)
	gw.sendHandshakeReply(t, 176)
	gw.readFrame(t)
	if err := <-done; err != nil {
		t.Fatalf("connect: %v", err)
	}

	// peer drops the socket
	gw.conn.Close()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := calls
		mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("disconnect hook never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// a follow-up local Disconnect must not fire the hook again
	m.Disconnect()
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("hook fired %d times", calls)
	}
	if cause == nil {
		t.Fatalf("peer drop must carry a cause")
	}
}

func TestLocalDisconnectNilCause(t *testing.T) {
	hook := make(chan error, 1)
	m, gw := pipeManager(t, nil, func(err error) { hook <- err })

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background()) }()
	gw.expectPreamble(t)
	gw.sendHandshakeReply(t, 176)
	gw.readFrame(t)
	if err := <-done; err != nil {
		t.Fatalf("connect: %v", err)
	}

	m.Disconnect()
	select {
	case err := <-hook:
		if err != nil {
			t.Fatalf("local disconnect cause = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("hook never fired")
	}
	if m.State() != StateDisconnected {
		t.Fatalf("state = %v", m.State())
	}
}

func TestHandshakeKeepsCoalescedFrames(t *testing.T) {
	var mu sync.Mutex
	var got [][]byte
	m, gw := pipeManager(t, func(p []byte) {
		mu.Lock()
		got = append(got, append([]byte(nil), p...))
		mu.Unlock()
	}, nil)

	done := make(chan error, 1)
	go func() { done <- m.Connect(context.Background()) }()

	gw.expectPreamble(t)

	// the reply and the gateway's first push arrive in one TCP segment
	reply := protocol.Frame([]byte("176\x0020260831 10:00:00 UTC\x00"))
	push := protocol.Frame([]byte("9\x001\x0042\x00"))
	if _, err := gw.conn.Write(append(reply, push...)); err != nil {
		t.Fatalf("gateway write: %v", err)
	}

	gw.readFrame(t) // startAPI
	if err := <-done; err != nil {
		t.Fatalf("connect: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("sink saw %d frames, want 1", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	frame := string(got[0])
	mu.Unlock()
	if frame != "9\x001\x0042\x00" {
		t.Fatalf("frame = %q", frame)
	}
	m.Disconnect()
}

package ws

import (
	"net/http"
	"sync"
)

type MockConn struct {
	username string
	in       chan *OutMessage
	done     chan struct{}
	hub      Hub

	mu       sync.Mutex
	received []*OutMessage

	closeOnce sync.Once
}

func NewMockConn(username string, hub Hub) *MockConn {
	return &MockConn{
		username: username,
		in:       make(chan *OutMessage, 16),
		done:     make(chan struct{}),
		hub:      hub,
	}
}

func (c *MockConn) pass() chan<- *OutMessage {
	return c.in
}

func (c *MockConn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

func (c *MockConn) Username() string {
	return c.username
}

func (c *MockConn) readLoop() {
	<-c.done
}

func (c *MockConn) writeLoop() {
	for {
		select {
		case msg := <-c.in:
			c.mu.Lock()
			c.received = append(c.received, msg)
			c.mu.Unlock()
		case <-c.done:
			return
		}
	}
}

// Received returns the messages delivered to this connection so far.
func (c *MockConn) Received() []*OutMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*OutMessage, len(c.received))
	copy(out, c.received)
	return out
}

// Closed reports whether the hub has closed this connection.
func (c *MockConn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// send injects an inbound frame as if it had been read off the wire.
func (c *MockConn) send(roomID, text string) {
	c.hub.pass(&InMessage{
		origin: c,
		Sender: c.username,
		RoomID: roomID,
		Text:   text,
	})
}

type MockConnFactory struct {
	shouldFail bool
}

func (f *MockConnFactory) NewConn(w http.ResponseWriter, r *http.Request,
	hub Hub, username string) (Conn, bool) {
	if f.shouldFail {
		return nil, false
	}
	return NewMockConn(username, hub), true
}

type MockAuthenticator struct {
	username   string
	shouldFail bool
}

func (a *MockAuthenticator) Authenticate(w http.ResponseWriter, req *http.Request) (string, bool) {
	if a.shouldFail {
		w.WriteHeader(http.StatusUnauthorized)
		return "", false
	}
	return a.username, true
}

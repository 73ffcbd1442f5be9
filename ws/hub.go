package ws

import (
	"log/slog"
	"net/http"
	"os"
	"slices"
	"sync"
	"time"
)

type HubState int

const (
	StateClosed HubState = iota
	StateClosing
	StateRunning
)

// ConnHub maintains the set of admitted connections, keyed by username.
// Connection admission is gated by the Authenticator: a request that
// fails authentication is refused before the upgrade and never enters
// the connection set. Inbound messages are dispatched to the OnMessage
// handler from a single goroutine, so messages keep the order the hub
// received them in.
type ConnHub struct {
	conns map[string][]Conn

	connectChan chan Conn

	disconnectChan chan Conn
	// in is used to send inbound messages to the hub goroutine
	in chan *InMessage
	// exit is used to signal that the hub should stop accepting new
	// connections and exit
	exit chan struct{}

	logger *slog.Logger

	onConnect func(HubActions, Conn)

	onDisconnect func(HubActions, Conn)

	onMessage func(HubActions, *InMessage)

	wg sync.WaitGroup

	connFactory ConnFactory

	authenticator Authenticator

	closeTimeout time.Duration

	state HubState
	// mu guards conns and state
	mu sync.RWMutex
}

func New(cf ConnFactory, a Authenticator, opts ...HubOption) *ConnHub {
	hub := &ConnHub{
		conns:          make(map[string][]Conn),
		connectChan:    make(chan Conn),
		disconnectChan: make(chan Conn),
		in:             make(chan *InMessage),
		exit:           make(chan struct{}),
		logger: slog.New(slog.NewTextHandler(os.Stdout,
			&slog.HandlerOptions{Level: slog.LevelInfo})),
		closeTimeout:  time.Second * 10,
		authenticator: a,
		connFactory:   cf,
		state:         StateClosed,
	}

	for _, opt := range opts {
		opt(hub)
	}

	return hub
}

type HubOption func(*ConnHub)

func WithLogger(logger *slog.Logger) HubOption {
	return func(h *ConnHub) {
		h.logger = logger
	}
}

func WithCloseTimeout(d time.Duration) HubOption {
	return func(h *ConnHub) {
		h.closeTimeout = d
	}
}

func (hub *ConnHub) Start() {
	hub.wg.Add(1)
	go func() {
		defer func() {
			hub.wg.Done()
			hub.logger.Info("hub stopped")
		}()
		hub.start()
	}()
	hub.logger.Info("hub started")
}

func (hub *ConnHub) start() {
	hub.mu.Lock()
	hub.state = StateRunning
	hub.mu.Unlock()
	defer func() {
		hub.mu.Lock()
		hub.state = StateClosed
		hub.mu.Unlock()
	}()
	for {

		select {
		case <-hub.exit:
			return
		case newC := <-hub.connectChan:
			hub.connect(newC)
		case c := <-hub.disconnectChan:
			hub.disconnect(c)
		case msg := <-hub.in:
			if hub.onMessage != nil {
				hub.dispatch(msg)
			}
		}

	}
}

// dispatch runs the message handler. A panicking handler must not take
// the hub down with it; failures are isolated per message.
func (hub *ConnHub) dispatch(msg *InMessage) {
	defer func() {
		if r := recover(); r != nil {
			hub.logger.Error("message handler panicked",
				slog.String("sender", msg.Sender), slog.Any("panic", r))
		}
	}()
	hub.onMessage(hub, msg)
}

func (hub *ConnHub) OnMessage(f func(HubActions, *InMessage)) {
	hub.onMessage = f
}

func (hub *ConnHub) OnConnect(f func(HubActions, Conn)) {
	hub.onConnect = f
}

func (hub *ConnHub) OnDisconnect(f func(HubActions, Conn)) {
	hub.onDisconnect = f
}

// Close starts closing the hub. The closing sequence is as follows:
//  1. Deregister each connection from the hub, then signal its handler
//     goroutines to close the connection and exit.
//  2. Signal the hub main goroutine to exit.
//  3. Wait for the clean up to complete or until the close timeout.
func (hub *ConnHub) Close() {
	hub.mu.Lock()
	if hub.state != StateRunning {
		hub.mu.Unlock()
		return
	}
	hub.state = StateClosing
	hub.mu.Unlock()

	hub.logger.Info("closing connections...")
	for _, c := range hub.snapshotConns() {
		hub.disconnect(c)
	}

	hub.logger.Info("exiting hub...")
	close(hub.exit)
	timer := time.NewTimer(hub.closeTimeout)
	defer timer.Stop()
	done := make(chan struct{})
	go func() {
		hub.wg.Wait()
		close(done)
	}()

	select {
	case <-timer.C:
		hub.logger.Info("hub closed with timeout")
	case <-done:
		hub.logger.Info("hub closed gracefully")
	}
}

func (hub *ConnHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username, ok := hub.authenticator.Authenticate(w, r)
	if !ok {
		hub.logger.Info("connection refused", slog.String("remote", r.RemoteAddr))
		return
	}
	conn, ok := hub.connFactory.NewConn(w, r, hub, username)
	if !ok {
		return
	}
	hub.Connect(conn)
}

func (hub *ConnHub) startConn(conn Conn) {
	hub.wg.Add(1)
	go func() {
		defer hub.wg.Done()
		conn.readLoop()
	}()

	hub.wg.Add(1)
	go func() {
		defer hub.wg.Done()
		conn.writeLoop()
	}()
}

// sendOrDisconnect sends a message to a connection. If the send channel
// of the connection is blocked, it disconnects the connection.
func (hub *ConnHub) sendOrDisconnect(c Conn, msg *OutMessage) {
	select {
	case c.pass() <- msg:
	default:
		hub.disconnect(c)
	}
}

func (hub *ConnHub) Connect(c Conn) {
	hub.connectChan <- c
}

func (hub *ConnHub) Disconnect(c Conn) {
	hub.disconnectChan <- c
}

func (hub *ConnHub) pass(msg *InMessage) {
	hub.in <- msg
}

// snapshotConns returns all connections currently on the hub.
func (hub *ConnHub) snapshotConns() []Conn {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	var out []Conn
	for _, conns := range hub.conns {
		out = append(out, conns...)
	}
	return out
}

func (hub *ConnHub) connect(c Conn) {
	hub.startConn(c)
	hub.mu.Lock()
	hub.addConn(c)
	hub.mu.Unlock()
	hub.logger.Info("new connection", slog.String("username", c.Username()))
	if hub.onConnect != nil {
		hub.onConnect(hub, c)
	}
}

func (hub *ConnHub) disconnect(c Conn) {
	hub.mu.Lock()
	ok := hub.removeConn(c)
	hub.mu.Unlock()
	if !ok {
		return
	}
	c.close()
	if hub.onDisconnect != nil {
		hub.onDisconnect(hub, c)
	}
}

// removeConn must be called with mu held.
func (hub *ConnHub) removeConn(c Conn) bool {
	conns, ok := hub.conns[c.Username()]
	if !ok {
		return false
	}

	idx := slices.Index(conns, c)
	if idx == -1 {
		return false
	}
	conns = slices.Delete(conns, idx, idx+1)
	if len(conns) == 0 {
		delete(hub.conns, c.Username())
	} else {
		hub.conns[c.Username()] = conns
	}
	return true
}

// addConn must be called with mu held.
func (hub *ConnHub) addConn(c Conn) {
	conns := hub.conns[c.Username()]
	conns = append(conns, c)
	hub.conns[c.Username()] = conns
}

package ws

import (
	"net/http"
)

type Hub interface {
	Connect(Conn)
	Disconnect(Conn)
	Start()
	// Close closes the hub and releases any resources with a time out.
	// It should wait for the clean up to complete or until the time out.
	Close()
	// ServeHTTP handles the HTTP request and upgrades the connection to a
	// websocket connection, then adds the connection to the hub.
	ServeHTTP(w http.ResponseWriter, r *http.Request)
	// pass passes an inbound message to the hub.
	pass(*InMessage)

	OnMessage(func(HubActions, *InMessage))

	OnConnect(func(HubActions, Conn))

	OnDisconnect(func(HubActions, Conn))
}

// HubActions is the subset of hub operations a message handler may
// perform. Handlers run on the hub goroutine and must not call back into
// Connect, Disconnect or Close.
type HubActions interface {
	// Broadcast sends the message to every connection on the hub.
	Broadcast(msg *OutMessage)
	// BroadcastExcept sends the message to every connection on the hub
	// except the given one.
	BroadcastExcept(msg *OutMessage, except Conn)
}

type ConnFactory interface {
	// NewConn creates a new connection from the request and response.
	// If the connection is created successfully, it returns the
	// connection and true. Otherwise it returns nil and false.
	NewConn(w http.ResponseWriter, r *http.Request, hub Hub, username string) (Conn, bool)
}

type Conn interface {
	// pass returns a write-only channel that the hub can use to send
	// messages to the peer.
	pass() chan<- *OutMessage
	// close initiates the closing of the connection. It must be
	// non-blocking.
	close()
	// Username returns the authenticated identity the connection is bound
	// to. The binding is immutable for the lifetime of the connection; a
	// user can have multiple connections.
	Username() string
	readLoop()
	writeLoop()
}

type Authenticator interface {
	// Authenticate authenticates the upgrade request and returns the
	// username it is bound to. On failure it writes the refusal to the
	// response and returns false. Authenticate must be safe to be called
	// concurrently.
	Authenticate(w http.ResponseWriter, req *http.Request) (string, bool)
}

type AuthenticateFunc func(w http.ResponseWriter, req *http.Request) (string, bool)

func (f AuthenticateFunc) Authenticate(w http.ResponseWriter, req *http.Request) (string, bool) {
	return f(w, req)
}

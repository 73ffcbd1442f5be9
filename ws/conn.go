package ws

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

type WSConn struct {
	conn     *websocket.Conn
	username string
	in       chan *OutMessage
	hub      Hub
	ticker   *time.Ticker
	logger   *slog.Logger
}

func (c *WSConn) pass() chan<- *OutMessage {
	return c.in
}

func (c *WSConn) close() {
	close(c.in)
}

func (c *WSConn) Username() string {
	return c.username
}

func (c *WSConn) readLoop() {
	defer func() {
		c.hub.Disconnect(c)
		c.conn.Close()
		c.logger.Debug("exited read loop", slog.String("username", c.username))
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		mt, r, err := c.conn.NextReader()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug(fmt.Sprintf("expected close: %v", err))
				return
			}
			if websocket.IsUnexpectedCloseError(err) {
				c.logger.Error(fmt.Sprintf("unexpected close: %v", err))
				return
			}
			c.logger.Error(fmt.Sprintf("NextReader: %v", err))
			return
		}

		msg, err := decodeInMessage(mt, r)
		if err != nil {
			// malformed payload: drop the message, keep the connection
			c.logger.Error(fmt.Sprintf("decodeInMessage: %v", err))
			continue
		}
		// the payload's username is never trusted
		msg.Sender = c.username
		msg.origin = c

		c.hub.pass(msg)
	}
}

func (c *WSConn) writeLoop() {
	var err error
	defer func() {
		c.ticker.Stop()
		if err != nil {
			c.conn.Close()
		}
		c.logger.Debug("exited write loop", slog.String("username", c.username))
	}()

	for {
		select {
		case msg, ok := <-c.in:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			err = encodeOutMessage(c.conn.NextWriter, msg)
			if err != nil {
				c.logger.Error(fmt.Sprintf("encodeOutMessage: %v", err))
			}
		case <-c.ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err = c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error(fmt.Sprintf("WritePing: %v", err))
				return
			}

		}
	}
}

type WSConnFactory struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewWSConnFactory(opts ...WSConnFactoryOpt) *WSConnFactory {
	cf := &WSConnFactory{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
			return true
		}},
		logger: slog.New(slog.NewTextHandler(os.Stdout,
			&slog.HandlerOptions{Level: slog.LevelInfo})),
	}

	for _, opt := range opts {
		opt(cf)
	}

	return cf
}

type WSConnFactoryOpt func(*WSConnFactory)

func WithUpgrader(upgrader *websocket.Upgrader) WSConnFactoryOpt {
	return func(wf *WSConnFactory) {
		wf.upgrader = *upgrader
	}
}

func WithConnLogger(logger *slog.Logger) WSConnFactoryOpt {
	return func(wf *WSConnFactory) {
		wf.logger = logger
	}
}

func (f *WSConnFactory) NewConn(w http.ResponseWriter, r *http.Request, hub Hub, username string) (Conn, bool) {
	_conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, false
	}
	conn := &WSConn{
		conn:     _conn,
		username: username,
		in:       make(chan *OutMessage, 8),
		hub:      hub,
		ticker:   time.NewTicker(pingPeriod),
		logger:   f.logger,
	}
	return conn, true
}

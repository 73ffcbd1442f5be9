package ws

// Broadcast sends the message to every connection on the hub. Delivery
// is best-effort: a connection whose send channel is blocked is
// disconnected and skipped.
func (hub *ConnHub) Broadcast(msg *OutMessage) {
	for _, c := range hub.snapshotConns() {
		hub.sendOrDisconnect(c, msg)
	}
}

// BroadcastExcept sends the message to every connection on the hub
// except the given one. It is used to fan a chat message out to peers
// without echoing it back to the originating connection.
func (hub *ConnHub) BroadcastExcept(msg *OutMessage, except Conn) {
	for _, c := range hub.snapshotConns() {
		if c == except {
			continue
		}
		hub.sendOrDisconnect(c, msg)
	}
}

package identifiers

// ClientID identifies a single logical connection to the server. For
// transports with a remote address it is usually "host:port"; WebSocket
// connections take it from the request path or generate one.
type ClientID string

// RoomID is the name of a room. The name doubles as the room's key in the
// room manager.
type RoomID string

func (c ClientID) String() string {
	return string(c)
}

func (r RoomID) String() string {
	return string(r)
}

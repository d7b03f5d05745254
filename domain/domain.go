package domain

import (
	"errors"
	"strings"
)

// DefaultUsername labels connections that did not supply a username.
const DefaultUsername = "Unknown User"

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// CloseStatus is the reason a connection is being closed by the server.
type CloseStatus int

const (
	CloseNormal CloseStatus = iota
	CloseServerError
)

func (s CloseStatus) String() string {
	switch s {
	case CloseNormal:
		return "normal"
	case CloseServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// Connection is the handle the core holds for one live client session.
type Connection interface {
	ID() string
	Username() string
	IsOpen() bool
	Send(data []byte) error
	Close(status CloseStatus) error
}

type Broadcaster interface {
	Register(conn Connection)
	Unregister(conn Connection) bool
	Broadcast(data []byte, exclude Connection)
	Snapshot() []Connection
	Count() int
}

// Label returns the identity label for a username, falling back to DefaultUsername.
func Label(username string) string {
	username = strings.TrimSpace(username)
	if username == "" {
		return DefaultUsername
	}
	return username
}

func JoinedMessage(label string) []byte {
	return []byte("User " + label + " has joined the room.")
}

func LeftMessage(label string) []byte {
	return []byte("User " + label + " has left the room.")
}

func LeftWithErrorMessage(label string) []byte {
	return []byte("User " + label + " has left the room due to an error.")
}

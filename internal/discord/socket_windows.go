package discord

import "net"

// Discord uses a named pipe on Windows; this daemon only supports the unix
// socket transport.
func dialSocket() (net.Conn, error) {
	return nil, ErrNoSocket
}

// Package discord implements the client side of Discord's local IPC socket,
// enough to publish and clear a rich-presence activity.
package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrNoSocket is returned when no Discord IPC socket could be found,
	// usually because the Discord client is not running.
	ErrNoSocket = errors.New("discord ipc socket not found")

	// ErrNotConnected is returned when a command is sent before Connect.
	ErrNotConnected = errors.New("not connected to discord")
)

// CommandError is an error response from the Discord client.
type CommandError struct {
	CommandCode int
	Message     string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("discord error %d: %s", e.CommandCode, e.Message)
}

// Client talks to the local Discord client over its IPC socket.
type Client struct {
	clientID string

	mu   sync.Mutex
	conn net.Conn
}

// NewClient creates a client for the given Discord application ID.
func NewClient(clientID string) *Client {
	return &Client{clientID: clientID}
}

type handshake struct {
	V        int    `json:"v"`
	ClientID string `json:"client_id"`
}

type command struct {
	Cmd   string      `json:"cmd"`
	Args  commandArgs `json:"args"`
	Nonce string      `json:"nonce"`
}

type commandArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity"`
}

type response struct {
	Cmd  string `json:"cmd"`
	Evt  string `json:"evt"`
	Data struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"data"`
}

// Connect finds the IPC socket, dials it and performs the handshake.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	conn, err := dialSocket()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(handshake{V: 1, ClientID: c.clientID})
	if err != nil {
		conn.Close()
		return fmt.Errorf("marshal handshake: %w", err)
	}

	if err := writeFrame(conn, opHandshake, payload); err != nil {
		conn.Close()
		return fmt.Errorf("send handshake: %w", err)
	}

	// The client answers the handshake with a READY dispatch.
	if _, err := awaitResponse(conn); err != nil {
		conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}

	c.conn = conn
	return nil
}

// Connected reports whether the client currently holds a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close tells Discord we are going away and closes the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	_ = writeFrame(c.conn, opClose, []byte("{}"))
	err := c.conn.Close()
	c.conn = nil
	return err
}

// SetActivity publishes the given activity as the current presence.
func (c *Client) SetActivity(activity *Activity) error {
	return c.sendActivity(activity)
}

// ClearActivity removes the presence entirely.
func (c *Client) ClearActivity() error {
	return c.sendActivity(nil)
}

func (c *Client) sendActivity(activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}

	cmd := command{
		Cmd: "SET_ACTIVITY",
		Args: commandArgs{
			PID:      os.Getpid(),
			Activity: activity,
		},
		Nonce: uuid.NewString(),
	}

	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}

	if err := writeFrame(c.conn, opFrame, payload); err != nil {
		c.dropLocked()
		return fmt.Errorf("send activity: %w", err)
	}

	if _, err := awaitResponse(c.conn); err != nil {
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) {
			// Transport failure; the socket is no longer trustworthy.
			c.dropLocked()
		}
		return fmt.Errorf("set activity: %w", err)
	}

	return nil
}

// dropLocked discards the connection after a transport error so the caller
// can reconnect. Callers must hold c.mu.
func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// awaitResponse reads frames until a command response arrives, answering
// pings along the way. Error events become CommandError values.
func awaitResponse(conn net.Conn) (*response, error) {
	for {
		op, payload, err := readFrame(conn)
		if err != nil {
			return nil, err
		}

		switch op {
		case opPing:
			if err := writeFrame(conn, opPong, payload); err != nil {
				return nil, err
			}
		case opClose:
			return nil, fmt.Errorf("discord closed the connection: %s", string(payload))
		case opFrame:
			var resp response
			if err := json.Unmarshal(payload, &resp); err != nil {
				return nil, fmt.Errorf("decode response: %w", err)
			}
			if resp.Evt == "ERROR" {
				return nil, &CommandError{CommandCode: resp.Data.Code, Message: resp.Data.Message}
			}
			return &resp, nil
		default:
			// Pong or unknown frame; keep reading.
		}
	}
}

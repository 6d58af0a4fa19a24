//go:build !windows

package discord

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	payload := []byte(`{"cmd":"SET_ACTIVITY"}`)
	require.NoError(t, writeFrame(&buf, opFrame, payload))

	op, got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, opFrame, op)
	assert.Equal(t, payload, got)
}

func TestReadFrame_TruncatedHeader(t *testing.T) {
	_, _, err := readFrame(bytes.NewReader([]byte{0x01, 0x00}))
	require.Error(t, err)
}

func TestReadFrame_TruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, opFrame, []byte(`{"v":1}`)))

	truncated := buf.Bytes()[:buf.Len()-3]
	_, _, err := readFrame(bytes.NewReader(truncated))
	require.Error(t, err)
}

func TestReadFrame_RejectsOversizedLength(t *testing.T) {
	header := make([]byte, 8)
	header[0] = byte(opFrame)
	// length field: 2 MiB, over the cap
	header[4] = 0x00
	header[5] = 0x00
	header[6] = 0x20
	_, _, err := readFrame(bytes.NewReader(header))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame too large")
}

// fakeDiscord runs a minimal IPC endpoint on a unix socket: it answers the
// handshake with READY and every frame with a success response.
func fakeDiscord(t *testing.T) (dir string, received *[][]byte) {
	t.Helper()

	dir = t.TempDir()
	sockPath := filepath.Join(dir, "discord-ipc-0")

	ln, err := net.Listen("unix", sockPath)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	frames := &[][]byte{}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake
		op, payload, err := readFrame(conn)
		if err != nil || op != opHandshake {
			return
		}
		*frames = append(*frames, payload)
		ready := []byte(`{"cmd":"DISPATCH","evt":"READY","data":{"v":1}}`)
		if err := writeFrame(conn, opFrame, ready); err != nil {
			return
		}

		// Commands
		for {
			op, payload, err := readFrame(conn)
			if err != nil {
				return
			}
			if op != opFrame {
				continue
			}
			*frames = append(*frames, payload)
			ok := []byte(`{"cmd":"SET_ACTIVITY","evt":null,"data":null}`)
			if err := writeFrame(conn, opFrame, ok); err != nil {
				return
			}
		}
	}()

	return dir, frames
}

func TestClientConnectAndSetActivity(t *testing.T) {
	dir, frames := fakeDiscord(t)
	t.Setenv("XDG_RUNTIME_DIR", dir)

	c := NewClient("1234567890")
	require.NoError(t, c.Connect())
	assert.True(t, c.Connected())

	activity := &Activity{
		Type:    ActivityListening,
		Details: "Paranoid Android",
		State:   "by Radiohead",
		Assets: &Assets{
			LargeImage: "https://img.example/300x300.jpg",
			LargeText:  "on OK Computer",
			SmallImage: "lastfm",
			SmallText:  "Last.fm",
		},
		Timestamps: &Timestamps{Start: 1700000000000},
		Buttons: []Button{
			{Label: "Listen on Last.fm", URL: "https://www.last.fm/music/Radiohead/_/Paranoid+Android"},
		},
	}
	require.NoError(t, c.SetActivity(activity))
	require.NoError(t, c.ClearActivity())
	require.NoError(t, c.Close())

	require.Len(t, *frames, 3)

	var hs handshake
	require.NoError(t, json.Unmarshal((*frames)[0], &hs))
	assert.Equal(t, 1, hs.V)
	assert.Equal(t, "1234567890", hs.ClientID)

	var set map[string]any
	require.NoError(t, json.Unmarshal((*frames)[1], &set))
	assert.Equal(t, "SET_ACTIVITY", set["cmd"])
	assert.NotEmpty(t, set["nonce"])

	args, ok := set["args"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, os.Getpid(), args["pid"])

	act, ok := args["activity"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, ActivityListening, act["type"])
	assert.Equal(t, "Paranoid Android", act["details"])
	assert.Equal(t, "by Radiohead", act["state"])

	// Clearing sends a null activity so the client drops the presence.
	var clear map[string]any
	require.NoError(t, json.Unmarshal((*frames)[2], &clear))
	clearArgs, ok := clear["args"].(map[string]any)
	require.True(t, ok)
	assert.Nil(t, clearArgs["activity"])
}

func TestClientSetActivityNotConnected(t *testing.T) {
	c := NewClient("1234567890")
	err := c.SetActivity(&Activity{Type: ActivityListening})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClientConnectNoSocket(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	t.Setenv("TMPDIR", t.TempDir())

	c := NewClient("1234567890")
	err := c.Connect()
	assert.ErrorIs(t, err, ErrNoSocket)
}

func TestClientCommandError(t *testing.T) {
	dir := t.TempDir()
	ln, err := net.Listen("unix", filepath.Join(dir, "discord-ipc-0"))
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		if _, _, err := readFrame(conn); err != nil {
			return
		}
		_ = writeFrame(conn, opFrame, []byte(`{"cmd":"DISPATCH","evt":"READY"}`))

		if _, _, err := readFrame(conn); err != nil {
			return
		}
		_ = writeFrame(conn, opFrame, []byte(`{"cmd":"SET_ACTIVITY","evt":"ERROR","data":{"code":4000,"message":"Invalid activity"}}`))
	}()

	t.Setenv("XDG_RUNTIME_DIR", dir)

	c := NewClient("1234567890")
	require.NoError(t, c.Connect())

	err = c.SetActivity(&Activity{Type: ActivityListening})
	require.Error(t, err)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 4000, cmdErr.CommandCode)

	// A command-level error does not invalidate the connection.
	assert.True(t, c.Connected())
}

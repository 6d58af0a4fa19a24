//go:build !windows

package discord

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

const dialTimeout = time.Second

// socketDirs returns the directories that may hold the Discord IPC socket.
// Sandboxed installs (flatpak, snap) nest it under the runtime dir.
func socketDirs() []string {
	base := ""
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(env); v != "" {
			base = v
			break
		}
	}
	if base == "" {
		base = "/tmp"
	}

	return []string{
		base,
		filepath.Join(base, "app", "com.discordapp.Discord"),
		filepath.Join(base, "snap.discord"),
	}
}

// dialSocket probes discord-ipc-0 through discord-ipc-9 in each candidate
// directory and returns the first connection that succeeds.
func dialSocket() (net.Conn, error) {
	for _, dir := range socketDirs() {
		for i := 0; i < 10; i++ {
			path := filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i))
			if _, err := os.Stat(path); err != nil {
				continue
			}
			conn, err := net.DialTimeout("unix", path, dialTimeout)
			if err == nil {
				return conn, nil
			}
		}
	}
	return nil, ErrNoSocket
}

// Package systemd installs and manages the lastfm-rp user service.
package systemd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// UnitName is the systemd user unit managed by this package.
const UnitName = "lastfm-rp.service"

const unitTemplate = `[Unit]
Description=Last.fm Discord rich presence
After=network-online.target

[Service]
Type=notify
ExecStart=%s run
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`

// UnitPath returns where the user unit file is installed.
func UnitPath() string {
	return filepath.Join(xdg.ConfigHome, "systemd", "user", UnitName)
}

// RenderUnit renders the unit file for the given binary path.
func RenderUnit(execPath string) string {
	return fmt.Sprintf(unitTemplate, execPath)
}

// WriteUnit writes the unit file for the given binary path and returns the
// path it was written to.
func WriteUnit(execPath string) (string, error) {
	path := UnitPath()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating unit directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(RenderUnit(execPath)), 0o644); err != nil {
		return "", fmt.Errorf("writing unit file: %w", err)
	}
	return path, nil
}

// RemoveUnit deletes the installed unit file. Missing files are not an error.
func RemoveUnit() error {
	if err := os.Remove(UnitPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing unit file: %w", err)
	}
	return nil
}

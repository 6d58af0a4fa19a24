package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/strlkr/lastfm-rp/internal/log"
)

// Manager drives the user systemd instance over D-Bus.
type Manager struct {
	log log.Logger
}

// NewManager creates a Manager.
func NewManager(logger log.Logger) *Manager {
	if logger == nil {
		logger = log.GetLogger()
	}
	return &Manager{log: logger}
}

func (m *Manager) connect(ctx context.Context) (*dbus.Conn, error) {
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to user systemd: %w", err)
	}
	return conn, nil
}

// Install writes the unit file for execPath, reloads the daemon, enables the
// unit and starts it. The sequence stops at the first failure so a broken
// install never ends half-started.
func (m *Manager) Install(ctx context.Context, execPath string) error {
	path, err := WriteUnit(execPath)
	if err != nil {
		return err
	}
	m.log.Info("wrote unit file", "path", path)

	conn, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("reloading systemd: %w", err)
	}

	if _, _, err := conn.EnableUnitFilesContext(ctx, []string{UnitName}, false, true); err != nil {
		return fmt.Errorf("enabling %s: %w", UnitName, err)
	}
	m.log.Info("enabled unit", "unit", UnitName)

	return m.startUnit(ctx, conn)
}

// Uninstall stops and disables the unit, removes the unit file and reloads
// the daemon. A unit that is already stopped or absent is not an error.
func (m *Manager) Uninstall(ctx context.Context) error {
	conn, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch := make(chan string)
	if _, err := conn.StopUnitContext(ctx, UnitName, "replace", ch); err != nil {
		m.log.Debug("stop skipped", "unit", UnitName, "error", err)
	} else if result := <-ch; result != "done" {
		m.log.Warn("unit stop finished abnormally", "unit", UnitName, "result", result)
	}

	if _, err := conn.DisableUnitFilesContext(ctx, []string{UnitName}, false); err != nil {
		m.log.Debug("disable skipped", "unit", UnitName, "error", err)
	}

	if err := RemoveUnit(); err != nil {
		return err
	}

	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("reloading systemd: %w", err)
	}

	m.log.Info("uninstalled unit", "unit", UnitName)
	return nil
}

// Restart restarts the unit and waits for the job to finish.
func (m *Manager) Restart(ctx context.Context) error {
	conn, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch := make(chan string)
	if _, err := conn.RestartUnitContext(ctx, UnitName, "replace", ch); err != nil {
		return fmt.Errorf("restarting %s: %w", UnitName, err)
	}
	if result := <-ch; result != "done" {
		return fmt.Errorf("unit restart failed: %s", result)
	}

	m.log.Info("restarted unit", "unit", UnitName)
	return nil
}

// Status returns the unit's load, active and sub states.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	conn, err := m.connect(ctx)
	if err != nil {
		return Status{}, err
	}
	defer conn.Close()

	var st Status
	for _, p := range []struct {
		name string
		dst  *string
	}{
		{"LoadState", &st.LoadState},
		{"ActiveState", &st.ActiveState},
		{"SubState", &st.SubState},
	} {
		prop, err := conn.GetUnitPropertyContext(ctx, UnitName, p.name)
		if err != nil {
			return Status{}, fmt.Errorf("getting %s of %s: %w", p.name, UnitName, err)
		}
		if s, ok := prop.Value.Value().(string); ok {
			*p.dst = s
		}
	}
	return st, nil
}

// Status describes the unit as systemd sees it.
type Status struct {
	LoadState   string
	ActiveState string
	SubState    string
}

func (s Status) String() string {
	return fmt.Sprintf("%s: %s (%s, %s)", UnitName, s.ActiveState, s.SubState, s.LoadState)
}

func (m *Manager) startUnit(ctx context.Context, conn *dbus.Conn) error {
	ch := make(chan string)
	if _, err := conn.StartUnitContext(ctx, UnitName, "replace", ch); err != nil {
		return fmt.Errorf("starting %s: %w", UnitName, err)
	}
	if result := <-ch; result != "done" {
		return fmt.Errorf("unit start failed: %s", result)
	}

	m.log.Info("started unit", "unit", UnitName)
	return nil
}

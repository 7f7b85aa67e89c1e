// Package dbussink publishes RDE task-completion signals and PLDM event
// notifications onto the system D-Bus, the way OpenBMC's other daemons
// surface state to phosphor-dbus-interfaces clients (webui, bmcweb,
// redfish-tool).
package dbussink

import (
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"
)

// Sink publishes signals over a connected system-bus session. It
// implements the narrow Sink interface internal/rde's operation
// workflow depends on.
type Sink struct {
	conn *dbus.Conn
}

// Connect opens a connection to the system bus.
func Connect() (*Sink, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("dbussink: connecting to system bus: %w", err)
	}
	return &Sink{conn: conn}, nil
}

// New wraps an already-connected *dbus.Conn, letting a caller share one
// connection across multiple sinks/daemons.
func New(conn *dbus.Conn) *Sink {
	return &Sink{conn: conn}
}

// Close releases the underlying bus connection.
func (s *Sink) Close() error {
	return s.conn.Close()
}

// EmitSignal emits a signal on path under iface, named name, carrying
// args as its body. D-Bus signal bodies are positional, not keyed, so
// args are flattened in sorted-key order for determinism; a receiver
// must know the schema the names imply (this matches how
// phosphor-dbus-interfaces signal schemas are consumed: by position, per
// a fixed interface contract, not by introspecting names at runtime).
func (s *Sink) EmitSignal(path, iface, name string, args map[string]any) error {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]any, len(keys))
	for i, k := range keys {
		values[i] = args[k]
	}
	return s.conn.Emit(dbus.ObjectPath(path), iface+"."+name, values...)
}

// UpdateProperty announces a single property change on path/iface the
// standard way: an org.freedesktop.DBus.Properties.PropertiesChanged
// signal, the mechanism bmcweb and other phosphor-dbus-interfaces
// clients already watch for property updates rather than a bespoke
// signal per property.
func (s *Sink) UpdateProperty(path, iface, prop string, value any) error {
	changed := map[string]dbus.Variant{prop: dbus.MakeVariant(value)}
	return s.conn.Emit(dbus.ObjectPath(path), "org.freedesktop.DBus.Properties.PropertiesChanged", iface, changed, []string{})
}

package cal

import "fmt"

// Factory constructs a Plugin by name. The vgpu subpackage registers
// itself under "vgpu" via init(); this mirrors the teacher's
// CapturerFactory/EncoderFactory indirection (richinsley-bunghole,
// internal/server/server.go) rather than a dlopen'd shared object, per
// the spec's redesign note on the plugin ABI.
type Factory func() Plugin

var registry = map[string]Factory{}

// Register makes a named backend available to LoadPlugin. Called from
// backend package init() functions.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// LoadPlugin resolves name to a Plugin instance. It is the Go-native
// stand-in for the original dlopen(pluginPath)+dlsym("calPlugin") step:
// the "path" is now a registered backend name instead of a shared-object
// path on disk.
func LoadPlugin(name string) (Plugin, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("cal: no plugin registered under %q", name)
	}
	return factory(), nil
}

// UnloadPlugin has no resources to release on its own — the Plugin's own
// Shutdown handles that — but is kept as a named step to mirror the
// LoadPlugin/UnloadPlugin pairing in the plugin lifecycle (spec §3).
func UnloadPlugin(Plugin) {}

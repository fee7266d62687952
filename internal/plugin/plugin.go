// Package plugin provides the arithmetic plugin interface, the built-in
// plugins, and the static registry that lists and creates them by ID.
package plugin

// idSuffix is the naming convention every registry ID must follow.
const idSuffix = "Plugin"

// descriptionPrefix is shared by every plugin description.
const descriptionPrefix = "Plugin Description : "

// iconResource names the decorative icon bundled with every plugin.
const iconResource = "plugin.png"

// Plugin is the interface that all catalog plugins must implement.
type Plugin interface {
	// ID returns the registry identifier (e.g., "AddPlugin").
	ID() string

	// Name returns a human-readable name.
	Name() string

	// Version returns the plugin version string. Versions are opaque.
	Version() string

	// Description returns what the plugin does.
	Description() string

	// Image returns the icon resource name. Decorative only.
	Image() string

	// Run applies the plugin's operation to two operands.
	Run(a, b int32) (int32, error)
}

// Descriptor holds the identity metadata of a plugin.
type Descriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

// Describe returns the descriptor for a plugin instance.
func Describe(p Plugin) Descriptor {
	return Descriptor{
		ID:          p.ID(),
		Name:        p.Name(),
		Version:     p.Version(),
		Description: p.Description(),
	}
}

func describe(text string) string {
	return descriptionPrefix + text
}

// meta implements the identity half of Plugin for embedding in built-ins.
type meta struct {
	id      string
	name    string
	version string
	text    string
}

func (m meta) ID() string { return m.id }

func (m meta) Name() string {
	if m.name == "" {
		return m.id
	}
	return m.name
}

func (m meta) Version() string     { return m.version }
func (m meta) Description() string { return describe(m.text) }
func (m meta) Image() string       { return iconResource }

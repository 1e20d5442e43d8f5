// Package preset stores named capture presets in a TOML file under the
// vidcap home directory.
package preset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/babelcloud/vidcap/config"
)

// Common error messages
const (
	ErrPresetNotFound      = "preset '%s' not found"
	ErrCannotRemoveCurrent = "cannot remove the preset currently in use, switch presets first"
)

// Config represents the complete preset file contents.
type Config struct {
	Current string            `toml:"current,omitempty"`
	Presets map[string]Preset `toml:"presets"`
}

// Preset is a named bundle of capture overrides. Zero fields mean "use the
// configured default".
type Preset struct {
	Crop          string  `toml:"crop,omitempty"`
	FrameBudget   int     `toml:"frame_budget,omitempty"`
	BoxSize       int     `toml:"box_size,omitempty"`
	Quality       float64 `toml:"quality,omitempty"`
	Bitrate       int     `toml:"bitrate,omitempty"`
	UpscaleTarget float64 `toml:"upscale_target,omitempty"`
}

// Manager reads and writes the preset file.
type Manager struct {
	config Config
	path   string
}

// Default is the package-level Manager used by the commands.
var Default = func() *Manager {
	m := NewManager()
	if err := m.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load presets: %v\n", err)
	}
	return m
}()

// NewManager creates a Manager over the configured preset path.
func NewManager() *Manager {
	return NewManagerAt(config.GetPresetPath())
}

// NewManagerAt creates a Manager over an explicit file path.
func NewManagerAt(path string) *Manager {
	return &Manager{
		config: Config{Presets: make(map[string]Preset)},
		path:   path,
	}
}

// Load reads the preset file, creating it when missing.
func (m *Manager) Load() error {
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		return m.Save()
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read preset file: %v", err)
	}
	if len(data) == 0 {
		m.config = Config{Presets: make(map[string]Preset)}
		return nil
	}
	if err := toml.Unmarshal(data, &m.config); err != nil {
		return fmt.Errorf("failed to parse preset file: %v", err)
	}
	if m.config.Presets == nil {
		m.config.Presets = make(map[string]Preset)
	}
	return nil
}

// Save writes the preset file.
func (m *Manager) Save() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preset directory: %v", err)
	}
	data, err := toml.Marshal(m.config)
	if err != nil {
		return fmt.Errorf("failed to serialize presets: %v", err)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preset file: %v", err)
	}
	return nil
}

// Names returns all preset names in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.config.Presets))
	for name := range m.config.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named preset.
func (m *Manager) Get(name string) (Preset, bool) {
	p, ok := m.config.Presets[name]
	return p, ok
}

// Current returns the name of the preset in use, or "".
func (m *Manager) Current() string { return m.config.Current }

// Add creates or replaces a preset and saves the file.
func (m *Manager) Add(name string, p Preset) error {
	if name == "" {
		return errors.New("preset name cannot be empty")
	}
	m.config.Presets[name] = p
	return m.Save()
}

// Remove deletes a preset. The preset currently in use cannot be removed.
func (m *Manager) Remove(name string) error {
	if _, ok := m.config.Presets[name]; !ok {
		return fmt.Errorf(ErrPresetNotFound, name)
	}
	if name == m.config.Current {
		return errors.New(ErrCannotRemoveCurrent)
	}
	delete(m.config.Presets, name)
	return m.Save()
}

// Use marks a preset as the current default and saves the file.
func (m *Manager) Use(name string) error {
	if _, ok := m.config.Presets[name]; !ok {
		return fmt.Errorf(ErrPresetNotFound, name)
	}
	m.config.Current = name
	return m.Save()
}

// Resolve returns the preset to apply for a run: the named one when name
// is given, the current one otherwise, or an empty preset when neither is
// set.
func (m *Manager) Resolve(name string) (Preset, error) {
	if name != "" {
		p, ok := m.config.Presets[name]
		if !ok {
			return Preset{}, fmt.Errorf(ErrPresetNotFound, name)
		}
		return p, nil
	}
	if m.config.Current != "" {
		if p, ok := m.config.Presets[m.config.Current]; ok {
			return p, nil
		}
	}
	return Preset{}, nil
}

package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManagerAt(filepath.Join(t.TempDir(), "presets.toml"))
}

func TestManager_LoadCreatesMissingFile(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Load())

	_, err := os.Stat(m.path)
	assert.NoError(t, err, "load creates the preset file")
	assert.Empty(t, m.Names())
	assert.Empty(t, m.Current())
}

func TestManager_AddRoundTrip(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Load())

	p := Preset{
		Crop:        "100,50,512x288",
		FrameBudget: 30,
		Quality:     0.8,
		Bitrate:     4_000_000,
	}
	require.NoError(t, m.Add("roi", p))

	reloaded := NewManagerAt(m.path)
	require.NoError(t, reloaded.Load())

	got, ok := reloaded.Get("roi")
	require.True(t, ok)
	assert.Equal(t, p, got)
	assert.Equal(t, []string{"roi"}, reloaded.Names())
}

func TestManager_UseAndResolve(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Load())
	require.NoError(t, m.Add("wide", Preset{BoxSize: 1024}))
	require.NoError(t, m.Add("tight", Preset{BoxSize: 256}))

	require.NoError(t, m.Use("tight"))
	assert.Equal(t, "tight", m.Current())

	p, err := m.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, 256, p.BoxSize, "empty name resolves the current preset")

	p, err = m.Resolve("wide")
	require.NoError(t, err)
	assert.Equal(t, 1024, p.BoxSize)

	_, err = m.Resolve("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	reloaded := NewManagerAt(m.path)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, "tight", reloaded.Current(), "current survives reload")
}

func TestManager_ResolveWithoutPresets(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Load())

	p, err := m.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, Preset{}, p, "no preset configured means defaults")
}

func TestManager_RemoveGuards(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Load())
	require.NoError(t, m.Add("a", Preset{}))
	require.NoError(t, m.Add("b", Preset{}))
	require.NoError(t, m.Use("a"))

	err := m.Remove("a")
	require.Error(t, err, "the preset in use cannot be removed")

	require.NoError(t, m.Remove("b"))
	assert.Equal(t, []string{"a"}, m.Names())

	err = m.Remove("missing")
	require.Error(t, err)

	require.NoError(t, m.Use("a"))
}

func TestManager_UseUnknownFails(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Load())

	err := m.Use("ghost")
	require.Error(t, err)
	assert.Empty(t, m.Current())
}

package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kubeframe/internal/frame"
)

func noEnv(string) string { return "" }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kube.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	engine := cfg.Engine()
	assert.Equal(t, 2, engine.FramesInFlight)
	assert.Equal(t, frame.PresentModeMailbox, engine.Preferences.PresentMode)
	assert.Equal(t, frame.FormatB8G8R8A8Srgb, engine.Preferences.Format.Format)
	assert.Equal(t, [4]float32{0.05, 0.05, 0.08, 1}, engine.Clear.Color)
	assert.Equal(t, float32(1), engine.Clear.Depth)
}

func TestLoadConfigFileThenFlags(t *testing.T) {
	path := writeConfig(t, `
width = 1024
height = 768
frames_in_flight = 3
present_mode = "fifo"
clear_color = [0.1, 0.2, 0.3, 1.0]
watch_shaders = true
msaa_samples = 8
`)
	cfg, err := loadConfig([]string{"-config", path, "-height", "720", "-present", "immediate"}, noEnv)
	require.NoError(t, err)

	assert.Equal(t, 1024, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
	assert.Equal(t, 3, cfg.FramesInFlight)
	assert.Equal(t, "immediate", cfg.PresentMode)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1}, cfg.ClearColor)
	assert.True(t, cfg.WatchShaders)
	assert.Equal(t, 8, cfg.MSAASamples)
}

func TestLoadConfigFlagTypes(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := loadConfig([]string{"-config", path, "-move-speed", "0.25", "-clear", "1, 0, 0, 1", "-frames", "1", "-msaa", "1"}, noEnv)
	require.NoError(t, err)
	assert.Equal(t, float32(0.25), cfg.MoveSpeed)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, cfg.ClearColor)
	assert.Equal(t, 1, cfg.Engine().FramesInFlight)
	assert.Equal(t, 1, cfg.MSAASamples)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := loadConfig([]string{"-config", filepath.Join(t.TempDir(), "absent.toml")}, noEnv)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfigBadFile(t *testing.T) {
	path := writeConfig(t, "width = \"wide\"")
	_, err := loadConfig([]string{"-config", path}, noEnv)
	assert.ErrorContains(t, err, "parse")
}

func TestLoadConfigHelp(t *testing.T) {
	_, err := loadConfig([]string{"-h"}, noEnv)
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestValidationEnvOverride(t *testing.T) {
	path := writeConfig(t, "validation = true")
	for _, tc := range []struct {
		env  string
		want bool
	}{
		{"", true},
		{"0", false},
		{"false", false},
		{"1", true},
		{"yes", true},
	} {
		t.Run(tc.env, func(t *testing.T) {
			cfg, err := loadConfig([]string{"-config", path}, func(key string) string {
				if key == "VK_VALIDATION" {
					return tc.env
				}
				return ""
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, cfg.Validation)
		})
	}
}

func TestValidateRejects(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"zero frames":     func(c *Config) { c.FramesInFlight = 0 },
		"negative frames": func(c *Config) { c.FramesInFlight = -1 },
		"present mode":    func(c *Config) { c.PresentMode = "vsync" },
		"format":          func(c *Config) { c.Format = "rgb565" },
		"width":           func(c *Config) { c.Width = 0 },
		"height":          func(c *Config) { c.Height = -5 },
		"speed":           func(c *Config) { c.LookSpeed = 0 },
		"zero msaa":       func(c *Config) { c.MSAASamples = 0 },
		"odd msaa":        func(c *Config) { c.MSAASamples = 3 },
		"huge msaa":       func(c *Config) { c.MSAASamples = 128 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigInvalidFlag(t *testing.T) {
	path := writeConfig(t, "")
	_, err := loadConfig([]string{"-config", path, "-frames", "0"}, noEnv)
	assert.ErrorContains(t, err, "frames in flight")
}

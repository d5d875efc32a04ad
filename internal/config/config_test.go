package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/testscan/internal/model"
)

func TestConstants(t *testing.T) {
	assert.Equal(t, ".testscan.yaml", FileName)
	assert.Equal(t, "TESTSCAN", EnvPrefix)
	assert.Equal(t, "target.module", KeyTargetMod)
	assert.Equal(t, "log.max_backups", KeyLogMaxBackups)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Mode, cfg.Mode)
	assert.Equal(t, d.Namespace, cfg.Namespace)
	assert.Equal(t, d.MaxDepth, cfg.MaxDepth)
	assert.Equal(t, d.MaxFileSize, cfg.MaxFileSize)
	assert.Equal(t, d.Format, cfg.Format)
	assert.Equal(t, d.Log, cfg.Log)
	assert.Empty(t, cfg.SearchPath)
	assert.Empty(t, cfg.Filter.Tags)
	assert.Equal(t, model.Target{Module: "avocado", Class: "Test"}, cfg.ModelTarget())
	assert.False(t, cfg.Structural())
}

func TestStructuralDefaultTarget(t *testing.T) {
	v := New()
	v.Set(KeyMode, ModeStructural)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.True(t, cfg.Structural())
	assert.Equal(t, model.Target{Module: "unittest", Class: "TestCase"}, cfg.ModelTarget())

	// an explicit target wins in either mode
	cfg.Target = Target{Module: "framework", Class: "Case"}
	assert.Equal(t, model.Target{Module: "framework", Class: "Case"}, cfg.ModelTarget())
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	content := `mode: structural
target:
  module: unittest
  class: TestCase
search_path:
  - /opt/lib
  - /srv/lib
format: json
filter:
  tags: ["fast,-net", "slow"]
  max_files: 5
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := New()
	require.NoError(t, ReadFile(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.True(t, cfg.Structural())
	assert.Equal(t, model.Target{Module: "unittest", Class: "TestCase"}, cfg.ModelTarget())
	assert.Equal(t, []string{"/opt/lib", "/srv/lib"}, cfg.SearchPath)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.Equal(t, []string{"fast,-net", "slow"}, cfg.Filter.Tags)
	assert.Equal(t, 5, cfg.Filter.MaxFiles)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched keys keep their defaults
	assert.Equal(t, "avocado", cfg.Namespace)
	assert.Equal(t, 64, cfg.MaxDepth)
	assert.Equal(t, 3, cfg.Log.MaxBackups)
}

func TestReadFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	assert.NoError(t, ReadFile(New(), ""), "a missing default file is not an error")
	assert.Error(t, ReadFile(New(), "nope.yaml"), "a missing explicit file is an error")
}

func TestReadFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: [unclosed\n"), 0o644))

	assert.Error(t, ReadFile(New(), path))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TESTSCAN_NAMESPACE", "custom")
	t.Setenv("TESTSCAN_TARGET_MODULE", "lib.base")
	t.Setenv("TESTSCAN_TARGET_CLASS", "Base")
	t.Setenv("TESTSCAN_MAX_DEPTH", "8")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "custom", cfg.Namespace)
	assert.Equal(t, model.Target{Module: "lib.base", Class: "Base"}, cfg.ModelTarget())
	assert.Equal(t, 8, cfg.MaxDepth)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad mode", func(c *Config) { c.Mode = "magic" }},
		{"bad format", func(c *Config) { c.Format = "xml" }},
		{"module without class", func(c *Config) { c.Target.Module = "unittest" }},
		{"class without module", func(c *Config) { c.Target.Class = "TestCase" }},
		{"no namespace", func(c *Config) { c.Namespace = "" }},
		{"zero depth", func(c *Config) { c.MaxDepth = 0 }},
		{"negative max files", func(c *Config) { c.Filter.MaxFiles = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("structural mode needs no namespace", func(t *testing.T) {
		cfg := Default()
		cfg.Mode = ModeStructural
		cfg.Namespace = ""
		assert.NoError(t, cfg.Validate())
	})
}

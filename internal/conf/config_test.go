package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func validTestSettings() *Settings {
	return &Settings{
		Main: MainSettings{Name: "faultline-test"},
		Search: SearchSettings{
			ConnectionSettings: ConnectionSettings{Host: "http://localhost:9200"},
			Scope:              "faultline",
			Timeout:            30,
		},
		Migration: MigrationSettings{
			RetentionDays: 90,
			Collections:   []string{"organization", "project"},
		},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Run("valid settings pass", func(t *testing.T) {
		assert.NoError(t, ValidateSettings(validTestSettings()))
	})

	t.Run("missing migration source is allowed", func(t *testing.T) {
		// Source presence is enforced by the migration job, not at load time
		s := validTestSettings()
		s.Migration.Source = ConnectionSettings{}
		assert.NoError(t, ValidateSettings(s))
	})

	t.Run("empty node name", func(t *testing.T) {
		s := validTestSettings()
		s.Main.Name = ""
		err := ValidateSettings(s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "main.name")
	})

	t.Run("invalid rotation type", func(t *testing.T) {
		s := validTestSettings()
		s.Main.Log.Rotation = "hourly"
		err := ValidateSettings(s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "main.log.rotation")
	})

	t.Run("invalid search host", func(t *testing.T) {
		s := validTestSettings()
		s.Search.Host = "not a url"
		assert.Error(t, ValidateSettings(s))
	})

	t.Run("empty scope", func(t *testing.T) {
		s := validTestSettings()
		s.Search.Scope = ""
		err := ValidateSettings(s)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "search.scope")
	})

	t.Run("negative retention", func(t *testing.T) {
		s := validTestSettings()
		s.Migration.RetentionDays = -1
		assert.Error(t, ValidateSettings(s))
	})

	t.Run("errors accumulate", func(t *testing.T) {
		s := validTestSettings()
		s.Main.Name = ""
		s.Search.Scope = ""
		var ve ValidationError
		require.ErrorAs(t, ValidateSettings(s), &ve)
		assert.Len(t, ve.Errors, 2)
	})
}

func TestMigrationCutoffTime(t *testing.T) {
	now := time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC)

	t.Run("defaults to the retention window start", func(t *testing.T) {
		m := MigrationSettings{RetentionDays: 90}
		cutoff, err := m.CutoffTime(now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 5, 28, 0, 0, 0, 0, time.UTC), cutoff)
	})

	t.Run("explicit date wins", func(t *testing.T) {
		m := MigrationSettings{RetentionDays: 90, CutoffDate: "2026-01-15"}
		cutoff, err := m.CutoffTime(now)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), cutoff)
	})

	t.Run("malformed date is rejected", func(t *testing.T) {
		m := MigrationSettings{CutoffDate: "15/01/2026"}
		_, err := m.CutoffTime(now)
		assert.Error(t, err)
	})
}

func TestSaveYAMLConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	settings := validTestSettings()
	settings.Migration.CutoffDate = "2026-06-01"

	require.NoError(t, SaveYAMLConfig(configPath, settings))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var loaded Settings
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, "faultline", loaded.Search.Scope)
	assert.Equal(t, "http://localhost:9200", loaded.Search.Host)
	assert.Equal(t, "2026-06-01", loaded.Migration.CutoffDate)
	assert.Equal(t, settings.Migration.Collections, loaded.Migration.Collections)

	// The write replaces atomically, no temp files left behind
	entries, err := os.ReadDir(filepath.Dir(configPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHasMigrationSource(t *testing.T) {
	m := MigrationSettings{}
	assert.False(t, m.HasMigrationSource())

	m.Source.Host = "http://old-cluster:9200"
	assert.True(t, m.HasMigrationSource())
}

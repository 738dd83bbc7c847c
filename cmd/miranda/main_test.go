// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/miranda/pkg/types"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	viper.SetEnvPrefix("MIRANDA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(types.Defaults())
	t.Cleanup(viper.Reset)
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)
	c, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, types.Defaults(), c)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("MIRANDA_SERVER_ADDR", ":9999")
	t.Setenv("MIRANDA_AI_PROVIDER", "anthropic")
	t.Setenv("MIRANDA_AI_TIMEOUT", "5s")
	t.Setenv("MIRANDA_INDEX_TOP_K", "3")

	c, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9999", c.Server.Addr)
	assert.Equal(t, types.ProviderAnthropic, c.AI.Provider)
	assert.Equal(t, 5*time.Second, c.AI.Timeout)
	assert.Equal(t, 3, c.Index.TopK)
}

func TestLoadConfig_File(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "miranda.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  durable: false\nindex:\n  default_mode: local\n"), 0o644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	c, err := loadConfig()
	require.NoError(t, err)
	assert.False(t, c.Storage.Durable)
	assert.Equal(t, types.ModeLocal, c.Index.DefaultMode)
	assert.Equal(t, "data", c.Storage.DataDir)
}

func TestLoadConfig_RejectsUnknownValues(t *testing.T) {
	resetViper(t)
	t.Setenv("MIRANDA_AI_PROVIDER", "cohere")
	_, err := loadConfig()
	assert.ErrorContains(t, err, "ai.provider")

	resetViper(t)
	t.Setenv("MIRANDA_INDEX_DEFAULT_MODE", "global")
	_, err = loadConfig()
	assert.ErrorContains(t, err, "index.default_mode")
}

func TestConfigFlagNamesSearchedFile(t *testing.T) {
	usage := rootCmd.PersistentFlags().Lookup("config").Usage
	assert.Contains(t, usage, "./miranda.yaml")
	assert.Contains(t, usage, "~/.config/miranda/miranda.yaml")
	assert.NotContains(t, usage, "config.yaml")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

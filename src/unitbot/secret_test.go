package unitbot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecret(t *testing.T, content string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "secret.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(envSecretConfigPath, path)
}

func TestLoadSecrets(t *testing.T) {
	writeSecret(t, "discord:\n  token: \" s3cret \"\n  app_id: \"1234\"\n  unrelated: x\n")

	v := viper.New()
	v.Set("discord.guild_id", "42")

	require.NoError(t, LoadSecrets(v))
	assert.Equal(t, "s3cret", v.GetString("discord.token"))
	assert.Equal(t, "1234", v.GetString("discord.app_id"))
	assert.Equal(t, "42", v.GetString("discord.guild_id"), "absent keys keep the config value")
	assert.False(t, v.IsSet("discord.unrelated"))
}

func TestLoadSecretsMissingToken(t *testing.T) {
	writeSecret(t, "discord:\n  guild_id: \"42\"\n")

	v := viper.New()
	err := LoadSecrets(v)
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.False(t, v.IsSet("discord.guild_id"))
}

func TestLoadSecretsNotConfigured(t *testing.T) {
	t.Setenv(envSecretConfigPath, "")

	err := LoadSecrets(viper.New())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestLoadSecretsMissingFile(t *testing.T) {
	t.Setenv(envSecretConfigPath, filepath.Join(t.TempDir(), "nope.yaml"))

	err := LoadSecrets(viper.New())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

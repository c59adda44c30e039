package unitbot

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const envSecretConfigPath = "UNITBOT_SECRET"

const keyDiscordToken = "discord.token"

// optional credentials a secret file may carry next to the token
var secretKeys = []string{"discord.app_id", "discord.guild_id"}

var (
	ErrNotConfigured = errors.New("not configured")
	ErrMissingToken  = errors.New("secret file has no " + keyDiscordToken)
)

// LoadSecrets reads the yaml file named by UNITBOT_SECRET and sets the discord
// credentials it holds on v. A secret file without a token is an error, the bot
// cannot log in without one.
func LoadSecrets(v *viper.Viper) error {
	path := os.Getenv(envSecretConfigPath)
	if path == "" {
		return ErrNotConfigured
	}

	secret := viper.New()
	secret.SetConfigFile(path)
	secret.SetConfigType("yaml")

	if err := secret.ReadInConfig(); err != nil {
		return fmt.Errorf("unitbot read secret %v: %w", path, err)
	}

	token := strings.TrimSpace(secret.GetString(keyDiscordToken))
	if token == "" {
		return fmt.Errorf("%w: %v", ErrMissingToken, path)
	}
	v.Set(keyDiscordToken, token)

	for _, key := range secretKeys {
		if secret.IsSet(key) {
			v.Set(key, secret.GetString(key))
		}
	}

	return nil
}

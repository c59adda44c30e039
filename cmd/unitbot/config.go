package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/desain-gratis/unitbot/internal/src/discord"
	"github.com/desain-gratis/unitbot/internal/src/dispatcher"
	"github.com/desain-gratis/unitbot/internal/src/systemd"
	"github.com/desain-gratis/unitbot/src/entity"
)

var (
	config = &appConfig{viper.New()}
)

type appConfig struct {
	*viper.Viper
}

func init() {
	config.SetDefault("http.enabled", false)
	config.SetDefault("http.address", "127.0.0.1:9480")
	config.SetDefault("http.origin_patterns", []string{"localhost:*", "127.0.0.1:*"})

	config.SetDefault("watch.enabled", true)
	config.SetDefault("watch.interval", 2*time.Second)
	config.SetDefault("watch.retry_delay", 5*time.Second)

	config.SetDefault("poll.attempts", 3)
	config.SetDefault("poll.initial_delay", 1*time.Second)
	config.SetDefault("poll.multiplier", 2.0)
	config.SetDefault("poll.max_delay", 4*time.Second)

	config.SetDefault("reload.gate", false)
	config.SetDefault("units.default_suffix", ".service")
	config.SetDefault("errors.merge", false)

	config.SetDefault("bus.timeout", 30*time.Second)
	config.SetDefault("bus.probe_attempts", 3)

	config.SetDefault("journal.path", "journalctl")
	config.SetDefault("journal.lines", systemd.DefaultLogLines)
	config.SetDefault("journal.timeout", 10*time.Second)
}

// initConfig reads the yaml file at path, or at $CONFIG when path is empty.
// Without any file the defaults and UNITBOT_* env vars are used.
func initConfig(path string) {
	config.SetConfigType("yaml")

	config.SetEnvPrefix("UNITBOT")
	config.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	config.AutomaticEnv()

	if path == "" {
		path = os.Getenv("CONFIG")
	}
	if path == "" {
		log.Info().Msgf("no config file, using defaults and environment")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		log.Fatal().Msgf("%v", err)
	}
	defer f.Close()

	err = config.ReadConfig(f)
	if err != nil {
		log.Fatal().Msgf("%v", err)
	}
}

func (a *appConfig) manager() *systemd.Manager {
	journal := systemd.NewJournal(
		systemd.WithJournalPath(a.GetString("journal.path")),
		systemd.WithJournalLines(a.GetInt("journal.lines")),
		systemd.WithJournalTimeout(a.GetDuration("journal.timeout")),
	)

	return systemd.NewManager(
		systemd.WithJournal(journal),
		systemd.WithTimeout(a.GetDuration("bus.timeout")),
	)
}

func (a *appConfig) dispatcherConfig(audit io.Writer) dispatcher.Config {
	return dispatcher.Config{
		Poll: dispatcher.Poller{
			Attempts:     a.GetInt("poll.attempts"),
			InitialDelay: a.GetDuration("poll.initial_delay"),
			Multiplier:   a.GetFloat64("poll.multiplier"),
			MaxDelay:     a.GetDuration("poll.max_delay"),
		},
		Reload: dispatcher.HostGate{
			Enabled: a.GetBool("reload.gate"),
			Aliases: a.GetStringMapString("reload.hosts"),
		},
		DefaultUnitSuffix: a.GetString("units.default_suffix"),
		MergeFailures:     a.GetBool("errors.merge"),
		AuditOutput:       audit,
	}
}

func (a *appConfig) discordConfig() discord.Config {
	emoji := a.GetStringMapString("discord.emoji")

	return discord.Config{
		Token:   a.GetString("discord.token"),
		AppID:   a.GetString("discord.app_id"),
		GuildID: a.GetString("discord.guild_id"),
		Renderer: discord.Renderer{
			Emoji: map[entity.Severity]string{
				entity.SeverityOK:      emoji["ok"],
				entity.SeverityPending: emoji["pending"],
				entity.SeverityWarning: emoji["warning"],
				entity.SeverityError:   emoji["error"],
			},
		},
	}
}

func retry(fn func() error, times int) error {
	var attempt int

	var err error
	for {
		attempt++
		err = fn()
		if err == nil || attempt >= times {
			break
		}
		log.Warn().Msgf("attempt %v failed: %v", attempt, err)
		time.Sleep(1 * time.Second)
	}

	return err
}

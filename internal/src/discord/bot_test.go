package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/desain-gratis/unitbot/internal/src/dispatcher"
)

func TestApplicationCommands(t *testing.T) {
	d := dispatcher.New(nil, dispatcher.Config{Reload: dispatcher.HostGate{Enabled: true}})

	cmds := ApplicationCommands(d.Commands())
	require.Len(t, cmds, 10)

	byName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range cmds {
		byName[cmd.Name] = cmd
	}

	assert.Empty(t, byName["ping"].Options)

	require.Len(t, byName["status"].Options, 1)
	status := byName["status"].Options[0]
	assert.Equal(t, "service", status.Name)
	assert.Equal(t, discordgo.ApplicationCommandOptionString, status.Type)
	assert.True(t, status.Required)

	require.Len(t, byName["reload"].Options, 1)
	assert.Equal(t, "hostname", byName["reload"].Options[0].Name)
	assert.True(t, byName["reload"].Options[0].Required)
}

func TestToCommand(t *testing.T) {
	i := &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "status",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{
				Name:  "service",
				Type:  discordgo.ApplicationCommandOptionString,
				Value: "sshd",
			}},
		},
		Member: &discordgo.Member{User: &discordgo.User{Username: "alice"}},
	}}

	cmd := toCommand(&discordgo.Session{}, i)

	assert.Equal(t, "status", cmd.Name)
	assert.Equal(t, "sshd", cmd.Arg)
	assert.Equal(t, "alice", cmd.Actor)

	i.Member = nil
	i.User = &discordgo.User{Username: "bob"}
	i.Data = discordgo.ApplicationCommandInteractionData{Name: "ping"}

	cmd = toCommand(&discordgo.Session{}, i)
	assert.Equal(t, "ping", cmd.Name)
	assert.Empty(t, cmd.Arg)
	assert.Equal(t, "bob", cmd.Actor)
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

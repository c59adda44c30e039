package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/desain-gratis/unitbot/internal/src/dispatcher"
	"github.com/desain-gratis/unitbot/src/entity"
)

// Bot serves the dispatcher's command table as discord slash commands.
type Bot struct {
	session    *discordgo.Session
	dispatcher *dispatcher.Dispatcher
	renderer   Renderer

	appID   string
	guildID string

	ctx context.Context
}

type Config struct {
	Token string

	// AppID defaults to the bot user id once connected.
	AppID string

	// GuildID scopes the commands to one guild, they show up instantly there.
	// Empty registers them globally.
	GuildID string

	Renderer Renderer
}

func New(cfg Config, d *dispatcher.Dispatcher) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("discord: empty bot token")
	}

	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	return &Bot{
		session:    session,
		dispatcher: d,
		renderer:   cfg.Renderer,
		appID:      cfg.AppID,
		guildID:    cfg.GuildID,
	}, nil
}

// Start connects and syncs the slash commands. Commands run with ctx.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx

	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.Info().Msgf("Logged in as %v", r.User.String())
	})
	b.session.AddHandler(b.onInteraction)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}

	appID := b.appID
	if appID == "" {
		appID = b.session.State.User.ID
	}

	_, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, ApplicationCommands(b.dispatcher.Commands()))
	if err != nil {
		return fmt.Errorf("discord: sync commands: %w", err)
	}
	log.Info().Msgf("Slash commands synced.")

	return nil
}

func (b *Bot) Close() error {
	return b.session.Close()
}

// ApplicationCommands converts the command table to slash command definitions.
func ApplicationCommands(defs []dispatcher.Definition) []*discordgo.ApplicationCommand {
	cmds := make([]*discordgo.ApplicationCommand, 0, len(defs))
	for _, def := range defs {
		cmd := &discordgo.ApplicationCommand{
			Name:        def.Name,
			Description: def.Description,
		}
		if def.ArgName != "" {
			cmd.Options = []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        def.ArgName,
				Description: def.ArgDescription,
				Required:    def.ArgRequired,
			}}
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

// toCommand reads the command name and its single string option.
func toCommand(s *discordgo.Session, i *discordgo.InteractionCreate) entity.Command {
	data := i.ApplicationCommandData()

	cmd := entity.Command{
		Name:    data.Name,
		Latency: s.HeartbeatLatency(),
	}

	for _, opt := range data.Options {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			cmd.Arg = opt.StringValue()
			break
		}
	}

	switch {
	case i.Member != nil && i.Member.User != nil:
		cmd.Actor = i.Member.User.Username
	case i.User != nil:
		cmd.Actor = i.User.Username
	}

	return cmd
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	cmd := toCommand(s, i)

	// another host answers this one
	if !b.dispatcher.Accepts(cmd) {
		return
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		log.Err(err).Msgf("failed to defer response to /%v", cmd.Name)
		return
	}

	ctx := b.ctx
	if ctx == nil {
		ctx = context.Background()
	}

	result, reply := b.dispatcher.Dispatch(ctx, cmd)
	if !reply {
		if err := s.InteractionResponseDelete(i.Interaction); err != nil {
			log.Err(err).Msgf("failed to drop deferred response to /%v", cmd.Name)
		}
		return
	}

	_, err = s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{b.renderer.Embed(result)},
	})
	if err != nil {
		log.Err(err).Msgf("failed to send reply to /%v", cmd.Name)
	}
}

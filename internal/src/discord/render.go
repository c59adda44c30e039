package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/desain-gratis/unitbot/src/entity"
)

// embed limits from the discord API docs
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFooter      = 2048
)

const (
	colorDarkGreen = 0x1f8b4c
	colorDarkGray  = 0x607d8b
	colorLightGray = 0x979c9f
	colorRed       = 0xe74c3c
)

// Renderer turns a command result into an embed. Emoji are appended to the
// description per severity, custom guild emoji like <:yes:123> work too.
type Renderer struct {
	Emoji map[entity.Severity]string
}

func (r Renderer) Embed(result entity.CommandResult) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: truncate(result.Headline, maxTitle),
		Color: color(result.Severity),
	}

	if result.Verbatim {
		// keep the tail, newest log lines are last
		const fence = "```"
		text := tail(escapeFence(result.Detail), maxDescription-2*len(fence)-2)
		embed.Description = fence + "\n" + text + "\n" + fence
	} else {
		desc := result.Detail
		if emoji := r.Emoji[result.Severity]; emoji != "" {
			desc += " " + emoji
		}
		embed.Description = truncate(desc, maxDescription)
	}

	if result.Hint != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: truncate(result.Hint, maxFooter)}
	}

	return embed
}

func color(s entity.Severity) int {
	switch s {
	case entity.SeverityOK:
		return colorDarkGreen
	case entity.SeverityPending:
		return colorDarkGray
	case entity.SeverityWarning:
		return colorLightGray
	}
	return colorRed
}

// escapeFence keeps backticks in log lines from closing the code block by putting
// a zero width space after each of them.
func escapeFence(s string) string {
	return strings.ReplaceAll(s, "`", "`\u200b")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// tail drops whole leading lines until s fits in n runes.
func tail(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}

	lines := strings.Split(s, "\n")
	for len(lines) > 1 && len([]rune(strings.Join(lines, "\n"))) > n {
		lines = lines[1:]
	}

	out := strings.Join(lines, "\n")
	if r := []rune(out); len(r) > n {
		out = string(r[len(r)-n:])
	}
	return out
}

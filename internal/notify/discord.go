package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// DiscordNotifier delivers DMs through an open discordgo session. The
// identity reference is the Discord user ID.
type DiscordNotifier struct {
	session *discordgo.Session
}

// NewDiscordNotifier wraps a session. The session must be opened by the caller.
func NewDiscordNotifier(session *discordgo.Session) *DiscordNotifier {
	return &DiscordNotifier{session: session}
}

func (n *DiscordNotifier) SendDM(_ context.Context, identity, content string) error {
	channel, err := n.session.UserChannelCreate(identity)
	if err != nil {
		return fmt.Errorf("failed to open DM channel: %w", err)
	}
	if _, err := n.session.ChannelMessageSend(channel.ID, content); err != nil {
		return fmt.Errorf("failed to send DM: %w", err)
	}
	return nil
}

package bot

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
	"github.com/violet-hub/keygate/internal/issuer"
	"github.com/violet-hub/keygate/internal/notify"
	"github.com/violet-hub/keygate/utils"
)

const publicKeyButtonID = "public_key_button"

// Bot is the thin Discord shell around the issuance service: two slash
// commands and one public button, all funnelling into IssueOrGet.
type Bot struct {
	session *discordgo.Session
	issuer  *issuer.Service
	guildID string
}

// New creates the bot with a closed session.
func New(token, guildID string, issuerSvc *issuer.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	return &Bot{
		session: session,
		issuer:  issuerSvc,
		guildID: guildID,
	}, nil
}

// Start opens the gateway connection and registers the slash commands.
func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteraction)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	commands := []*discordgo.ApplicationCommand{
		{
			Name:        "getkey",
			Description: "Get your unique key (sent privately)",
		},
		{
			Name:        "keymaker",
			Description: "Post a public button for users to get keys",
		},
	}
	for _, cmd := range commands {
		if _, err := b.session.ApplicationCommandCreate(b.session.State.User.ID, b.guildID, cmd); err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
	}

	log.Println("[Bot] Slash commands registered")
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

// Notifier returns a DM notifier backed by this bot's session.
func (b *Bot) Notifier() notify.Notifier {
	return notify.NewDiscordNotifier(b.session)
}

func (b *Bot) onReady(_ *discordgo.Session, r *discordgo.Ready) {
	log.Printf("[Bot] Logged in as %s", r.User.Username)
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		switch i.ApplicationCommandData().Name {
		case "getkey":
			b.handleGetKey(s, i)
		case "keymaker":
			b.handleKeymaker(s, i)
		}
	case discordgo.InteractionMessageComponent:
		if i.MessageComponentData().CustomID == publicKeyButtonID {
			b.handleKeyButton(s, i)
		}
	}
}

// handleGetKey replies with the caller's key in an ephemeral embed.
func (b *Bot) handleGetKey(s *discordgo.Session, i *discordgo.InteractionCreate) {
	identity := interactionUserID(i)

	key, err := b.issuer.IssueOrGet(context.Background(), identity)
	if err != nil {
		log.Printf("[Bot] Failed to issue key for %s: %v", utils.SanitizeLogIdentity(identity), err)
		respondEphemeral(s, i, "❌ Could not issue a key right now. Try again later.")
		return
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Your Key",
		Description: "Here is your key for the client:",
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Key", Value: fmt.Sprintf("`%s`", key)},
		},
	}
	err = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("[Bot] Failed to respond to getkey: %v", err)
	}
}

// handleKeymaker posts the public key-generator prompt.
func (b *Bot) handleKeymaker(s *discordgo.Session, i *discordgo.InteractionCreate) {
	embed := &discordgo.MessageEmbed{
		Title:       "Key Generator",
		Description: "Click the button below to receive your unique key. The key will be sent **privately** to you.",
	}
	button := discordgo.Button{
		Label:    "Click to get a key!",
		Style:    discordgo.SuccessButton,
		CustomID: publicKeyButtonID,
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{button},
				},
			},
		},
	})
	if err != nil {
		log.Printf("[Bot] Failed to respond to keymaker: %v", err)
	}
}

// handleKeyButton issues the clicker's key and DMs it to them.
func (b *Bot) handleKeyButton(s *discordgo.Session, i *discordgo.InteractionCreate) {
	identity := interactionUserID(i)

	key, err := b.issuer.IssueOrGet(context.Background(), identity)
	if err != nil {
		log.Printf("[Bot] Failed to issue key for %s: %v", utils.SanitizeLogIdentity(identity), err)
		respondEphemeral(s, i, "❌ Could not issue a key right now. Try again later.")
		return
	}

	channel, err := s.UserChannelCreate(identity)
	if err == nil {
		_, err = s.ChannelMessageSend(channel.ID, fmt.Sprintf("✅ Here is your key:\n`%s`", key))
	}
	if err != nil {
		log.Printf("[Bot] Failed to DM %s: %v", utils.SanitizeLogIdentity(identity), err)
		respondEphemeral(s, i, "❌ Could not send DM. Please make sure DMs are enabled.")
		return
	}

	respondEphemeral(s, i, "✅ Check your DMs for the key!")
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("[Bot] Failed to send interaction response: %v", err)
	}
}

// interactionUserID resolves the acting user for guild and DM interactions.
func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

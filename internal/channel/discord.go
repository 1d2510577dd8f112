package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/LordJunedGanteng/saweriabotjuned/internal/bus"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/domain"
	"github.com/LordJunedGanteng/saweriabotjuned/internal/metrics"
)

// DiscordName is the bus name of the Discord channel.
const DiscordName = "discord"

const discordIntents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsMessageContent

// reactor is the part of *discordgo.Session used for acknowledgments.
type reactor interface {
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
}

// Discord implements domain.Channel for a single Discord text channel that
// receives donation notifications.
type Discord struct {
	token          string
	channelID      string
	guildID        string
	requireWebhook bool
	events         *bus.EventBus
	logger         *slog.Logger

	mu      sync.RWMutex
	session *discordgo.Session
	reactor reactor
	botTag  string
}

// DiscordConfig configures the Discord channel.
type DiscordConfig struct {
	Token          string
	ChannelID      string // only messages from this channel are handled
	GuildID        string // optional extra filter
	RequireWebhook bool   // drop messages not posted by a webhook
	Events         *bus.EventBus
	Logger         *slog.Logger
}

// NewDiscord creates a new Discord channel handler.
func NewDiscord(cfg DiscordConfig) *Discord {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Discord{
		token:          cfg.Token,
		channelID:      cfg.ChannelID,
		guildID:        cfg.GuildID,
		requireWebhook: cfg.RequireWebhook,
		events:         cfg.Events,
		logger:         cfg.Logger,
	}
}

func (d *Discord) Name() string { return DiscordName }

// BotTag returns the connected bot's user tag, or "" before the gateway is ready.
func (d *Discord) BotTag() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.botTag
}

// Start connects to Discord and blocks until ctx is cancelled.
func (d *Discord) Start(ctx context.Context, b domain.MessageBus) error {
	session, err := discordgo.New("Bot " + d.token)
	if err != nil {
		return fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordIntents

	d.mu.Lock()
	d.session = session
	d.reactor = session
	d.mu.Unlock()

	b.OnOutbound(DiscordName, d.acknowledge)

	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		d.setBotTag(r.User.String())
		d.logger.Info("discord bot ready", "user", r.User.String(), "channel_id", d.channelID)
	})

	session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		selfID := ""
		if s.State != nil && s.State.User != nil {
			selfID = s.State.User.ID
		}
		if !d.accept(selfID, m.Message) {
			return
		}

		d.logger.Debug("discord notification received",
			"message_id", m.ID,
			"channel_id", m.ChannelID,
			"webhook_id", m.WebhookID,
			"embeds", len(m.Embeds),
		)
		b.Publish(ToInbound(m.Message))
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord connect: %w", err)
	}
	if session.State != nil && session.State.User != nil {
		d.setBotTag(session.State.User.String())
	}
	d.logger.Info("discord bot connected", "user", d.BotTag())

	<-ctx.Done()
	d.logger.Info("discord bot disconnecting")
	return d.Stop()
}

// Stop closes the gateway session.
func (d *Discord) Stop() error {
	d.mu.Lock()
	session := d.session
	d.session = nil
	d.botTag = ""
	d.mu.Unlock()
	if session == nil {
		return nil
	}
	return session.Close()
}

func (d *Discord) setBotTag(tag string) {
	d.mu.Lock()
	d.botTag = tag
	d.mu.Unlock()
}

// accept reports whether m is a donation notification this bot should handle.
func (d *Discord) accept(selfID string, m *discordgo.Message) bool {
	if m == nil {
		return false
	}
	if m.Author != nil && selfID != "" && m.Author.ID == selfID {
		return false
	}
	if m.ChannelID != d.channelID {
		return false
	}
	if d.guildID != "" && m.GuildID != d.guildID {
		return false
	}
	if d.requireWebhook && m.WebhookID == "" {
		return false
	}
	return true
}

// acknowledge adds the success reaction to the original message. Errors are
// logged and counted; the donation was already accepted downstream.
func (d *Discord) acknowledge(msg domain.OutboundMessage) {
	if msg.Reaction == "" || msg.MessageID == "" {
		return
	}
	d.mu.RLock()
	r := d.reactor
	d.mu.RUnlock()
	if r == nil {
		d.logger.Warn("discord reaction skipped: not connected", "message_id", msg.MessageID)
		return
	}

	chatID := msg.ChatID
	if chatID == "" {
		chatID = d.channelID
	}
	if err := r.MessageReactionAdd(chatID, msg.MessageID, msg.Reaction); err != nil {
		metrics.AcksFailed.Inc()
		d.logger.Error("discord reaction failed", "message_id", msg.MessageID, "channel_id", chatID, "error", err)
		if d.events != nil {
			d.events.Emit(bus.Event{
				Type:    bus.EventAckFailed,
				Source:  DiscordName,
				Payload: map[string]any{"message_id": msg.MessageID, "error": err.Error()},
			})
		}
	}
}

// ToInbound converts a Discord message into the pipeline's message shape.
// Embed titles are kept absent when Discord sends them empty.
func ToInbound(m *discordgo.Message) domain.InboundMessage {
	msg := domain.InboundMessage{
		Channel:   DiscordName,
		ID:        m.ID,
		Content:   m.Content,
		CreatedAt: m.Timestamp,
		Origin: domain.Origin{
			ChannelID: m.ChannelID,
			GuildID:   m.GuildID,
			WebhookID: m.WebhookID,
		},
	}
	if m.Author != nil {
		msg.Origin.AuthorID = m.Author.ID
		msg.Origin.AuthorBot = m.Author.Bot
	}

	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		att := domain.Attachment{}
		if e.Title != "" {
			att.Title = domain.StringPtr(e.Title)
		}
		for _, f := range e.Fields {
			if f == nil {
				continue
			}
			att.Fields = append(att.Fields, domain.Field{Name: f.Name, Value: f.Value})
		}
		msg.Attachments = append(msg.Attachments, att)
	}
	return msg
}

// Package bot connects the moderation workflows to the Discord gateway.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	disgoGateway "github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/robalyx/gatekeeper/internal/bot/ban"
	"github.com/robalyx/gatekeeper/internal/bot/commands"
	"github.com/robalyx/gatekeeper/internal/bot/gateway"
	"github.com/robalyx/gatekeeper/internal/bot/scheduler"
	"github.com/robalyx/gatekeeper/internal/bot/verification"
	"github.com/robalyx/gatekeeper/internal/setup/config"
	"github.com/robalyx/gatekeeper/internal/storage"
)

const (
	connectRetryInterval = 30 * time.Second
	handlerTimeout       = 30 * time.Second
	internalErrorMessage = "❌ 内部エラーが発生しました。管理者に連絡してください。"
)

// Bot routes gateway events to the ban workflow, the verification workflow and the slash
// commands. Every event is handled in its own goroutine.
type Bot struct {
	client       bot.Client
	guildID      snowflake.ID
	banEngine    *ban.Engine
	verification *verification.Engine
	commands     *commands.Handler
	scheduler    *scheduler.Scheduler
	logger       *zap.Logger
}

// New creates the Discord client and the workflow engines.
func New(cfg *config.Config, store storage.PointerStore, logger *zap.Logger) (*Bot, error) {
	b := &Bot{
		guildID:   cfg.GuildID(),
		scheduler: scheduler.New(logger),
		logger:    logger.Named("bot"),
	}

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			disgoGateway.WithIntents(
				disgoGateway.IntentGuilds,
				disgoGateway.IntentGuildMembers,
				disgoGateway.IntentGuildModeration,
				disgoGateway.IntentGuildMessages,
				disgoGateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnReady:                         b.handleReady,
			OnGuildMessageCreate:            b.handleGuildMessage,
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
			OnComponentInteraction:          b.handleComponentInteraction,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord client: %w", err)
	}
	b.client = client

	gw := gateway.New(client.Rest(), b.guildID, client.ID())
	b.banEngine = ban.NewEngine(gw, store, b.scheduler, cfg.BanConfig(), logger)
	b.verification = verification.NewEngine(gw, cfg.VerificationConfig(), logger)
	b.commands = commands.New(gw, commands.NewSearcher(nil, ""), cfg.VerificationChannelID(), logger)

	return b, nil
}

// Run registers the guild commands, connects to the gateway and blocks until ctx is done.
// Connection attempts are retried at a fixed interval.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Registering commands", zap.Uint64("guildID", uint64(b.guildID)))

	registerCommands(b.logger, func() error {
		_, err := b.client.Rest().SetGuildCommands(
			b.client.ApplicationID(), b.guildID, commands.Definitions(),
		)
		return err
	})

	b.logger.Info("Starting bot")

	retry := backoff.WithContext(backoff.NewConstantBackOff(connectRetryInterval), ctx)
	err := backoff.RetryNotify(func() error {
		return b.client.OpenGateway(ctx)
	}, retry, func(err error, next time.Duration) {
		b.logger.Error("Failed to connect to gateway", zap.Error(err), zap.Duration("retryIn", next))
	})
	if err != nil {
		b.Close()
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	<-ctx.Done()
	b.Close()

	return nil
}

// registerCommands installs the guild commands. A failure is logged and startup continues.
func registerCommands(logger *zap.Logger, register func() error) bool {
	if err := register(); err != nil {
		logger.Error("Failed to register commands", zap.Error(err))
		return false
	}
	return true
}

// Ready reports whether the gateway session is established.
func (b *Bot) Ready() bool {
	if b.client == nil {
		return false
	}
	gw := b.client.Gateway()
	return gw != nil && gw.Status() == disgoGateway.StatusReady
}

// Close disconnects from the gateway and drops pending message deletions.
func (b *Bot) Close() {
	b.logger.Info("Closing bot")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b.client.Close(ctx)
	b.scheduler.Close()
}

// handleReady synchronizes the ban list once the session is ready.
func (b *Bot) handleReady(event *events.Ready) {
	b.logger.Info("Gateway ready", zap.String("user", event.User.Username))

	if !b.banEngine.Enabled() {
		return
	}

	go b.guard("ready", func(ctx context.Context) {
		if err := b.banEngine.RefreshList(ctx); err != nil {
			b.logger.Error("Failed to initialize ban list", zap.Error(err))
		}
	}, nil)
}

func (b *Bot) handleGuildMessage(event *events.GuildMessageCreate) {
	if event.GuildID != b.guildID {
		return
	}

	msg := ban.Message{
		ID:        event.Message.ID,
		ChannelID: event.ChannelID,
		Author:    event.Message.Author,
		Content:   event.Message.Content,
	}

	go b.guard("guild message", func(ctx context.Context) {
		b.banEngine.HandleMessage(ctx, msg)
	}, nil)
}

func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go b.guard("application command", func(ctx context.Context) {
		b.commands.Handle(ctx, event)
	}, func() {
		b.respondWithError(event.CreateMessage)
	})
}

func (b *Bot) handleComponentInteraction(event *events.ComponentInteractionCreate) {
	customID := event.Data.CustomID()

	action := verification.ParseAction(customID)
	if action.Kind == verification.ActionUnknown {
		b.logger.Warn("Ignoring unknown component interaction", zap.String("customID", customID))
		return
	}

	go b.guard("component interaction", func(ctx context.Context) {
		start := time.Now()
		in := verification.Interaction{
			Actor:  event.User(),
			Embeds: event.Message.Embeds,
		}

		err := b.verification.Handle(ctx, action, in, &interactionResponder{event: event})
		b.logger.Debug("Component interaction handled",
			zap.String("customID", customID),
			zap.String("action", action.Kind.String()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	}, func() {
		b.respondWithError(event.CreateMessage)
	})
}

// guard runs fn with a bounded context and recovers panics. onPanic answers the
// interaction, if any.
func (b *Bot) guard(name string, fn func(ctx context.Context), onPanic func()) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Panic in event handler", zap.String("handler", name), zap.Any("panic", r))
			if onPanic != nil {
				onPanic()
			}
		}
	}()

	fn(ctx)
}

func (b *Bot) respondWithError(create func(discord.MessageCreate, ...rest.RequestOpt) error) {
	if err := create(discord.MessageCreate{
		Content: internalErrorMessage,
		Flags:   discord.MessageFlagEphemeral,
	}); err != nil {
		b.logger.Error("Failed to send error response", zap.Error(err))
	}
}

// interactionResponder acknowledges a component interaction.
type interactionResponder struct {
	event *events.ComponentInteractionCreate
}

func (r *interactionResponder) Reply(content string) error {
	return r.event.CreateMessage(discord.MessageCreate{
		Content: content,
		Flags:   discord.MessageFlagEphemeral,
	})
}

func (r *interactionResponder) Update(doc verification.Document) error {
	return r.event.UpdateMessage(doc.MessageUpdate())
}

// Package ban implements the plain-text moderation protocol of the ban channel and keeps the
// ban list message in sync with the guild's ban set.
package ban

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/gatekeeper/internal/bot/constants"
	"github.com/robalyx/gatekeeper/internal/bot/gateway"
	"github.com/robalyx/gatekeeper/internal/bot/utils"
	"github.com/robalyx/gatekeeper/internal/storage"
	"go.uber.org/zap"
)

// Delayer runs tasks after a delay without blocking the caller.
type Delayer interface {
	After(delay time.Duration, task func(ctx context.Context))
}

// Config holds the identifiers the ban workflow needs.
type Config struct {
	ChannelID   snowflake.ID
	AdminRoleID snowflake.ID
}

// Missing lists the settings that are not configured.
func (c Config) Missing() []string {
	var missing []string
	if c.ChannelID == 0 {
		missing = append(missing, "BAN_CHANNEL_ID")
	}
	if c.AdminRoleID == 0 {
		missing = append(missing, "ADMIN_ROLE_ID")
	}
	return missing
}

// Message is a message observed in a guild channel.
type Message struct {
	ID        snowflake.ID
	ChannelID snowflake.ID
	Author    discord.User
	Content   string
}

// Engine processes ban channel messages.
type Engine struct {
	gateway   gateway.Gateway
	store     storage.PointerStore
	delayer   Delayer
	config    Config
	logger    *zap.Logger
	now       func() time.Time
	refreshMu sync.Mutex
	warnOnce  sync.Once
}

// NewEngine creates a ban workflow engine.
func NewEngine(
	gw gateway.Gateway, store storage.PointerStore, delayer Delayer, config Config, logger *zap.Logger,
) *Engine {
	return &Engine{
		gateway: gw,
		store:   store,
		delayer: delayer,
		config:  config,
		logger:  logger.Named("ban"),
		now:     time.Now,
	}
}

// Enabled reports whether every required setting is present.
func (e *Engine) Enabled() bool {
	return len(e.config.Missing()) == 0
}

// HandleMessage runs a single message through the workflow. Every failure is converted
// into a reply or a log entry; nothing is returned to the caller.
func (e *Engine) HandleMessage(ctx context.Context, msg Message) {
	// Ignore the bot itself and other bots
	if msg.Author.ID == e.gateway.SelfID() || msg.Author.Bot {
		return
	}

	if !e.Enabled() {
		e.warnOnce.Do(func() {
			e.logger.Error("Ban system is disabled",
				zap.Error(ErrNotConfigured),
				zap.Strings("missing", e.config.Missing()))
		})
		return
	}

	if msg.ChannelID != e.config.ChannelID {
		return
	}

	if !e.isAdmin(ctx, msg.Author.ID) {
		reply := e.reply(ctx, msg, discord.MessageCreate{Content: noPermissionMessage})
		e.scheduleCleanup(constants.DenyDeleteDelay, msg, reply)
		return
	}

	cmd := Parse(msg.Content)
	switch cmd.Kind {
	case KindHelp:
		reply := e.reply(ctx, msg, discord.MessageCreate{Embeds: []discord.Embed{HelpEmbed(e.now())}})
		e.scheduleCleanup(constants.HelpDeleteDelay, msg, reply)

	case KindUnban:
		user, err := e.unban(ctx, msg.Author, cmd.UserID)
		reply := e.reply(ctx, msg, discord.MessageCreate{Content: unbanOutcome(user, cmd, err)})
		e.scheduleCleanup(constants.ActionDeleteDelay, msg, reply)
		if err == nil {
			e.refreshAfterAction(ctx)
		}

	case KindBan:
		user, err := e.ban(ctx, msg.Author, cmd.UserID, cmd.Reason)
		reply := e.reply(ctx, msg, discord.MessageCreate{Content: banOutcome(user, cmd, err)})
		e.scheduleCleanup(constants.ActionDeleteDelay, msg, reply)
		if err == nil {
			e.refreshAfterAction(ctx)
		}

	case KindUnknown:
		reply := e.reply(ctx, msg, discord.MessageCreate{Content: invalidCommandMessage})
		e.scheduleCleanup(constants.UnknownDeleteDelay, msg, reply)
	}
}

// isAdmin checks the author's live role set. A failed lookup denies access.
func (e *Engine) isAdmin(ctx context.Context, userID snowflake.ID) bool {
	member, err := e.gateway.GetMember(ctx, userID)
	if err != nil {
		e.logger.Warn("Failed to fetch message author",
			zap.Uint64("userID", uint64(userID)),
			zap.Error(err))
		return false
	}
	return slices.Contains(member.RoleIDs, e.config.AdminRoleID)
}

func (e *Engine) ban(ctx context.Context, executor discord.User, userID snowflake.ID, reason string) (discord.User, error) {
	user, err := e.gateway.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return discord.User{}, ErrUserNotFound
		}
		return discord.User{}, fmt.Errorf("failed to fetch user: %w", err)
	}

	_, err = e.gateway.GetBan(ctx, userID)
	switch {
	case err == nil:
		return *user, ErrAlreadyBanned
	case !errors.Is(err, gateway.ErrNotFound):
		return *user, fmt.Errorf("failed to check existing ban: %w", err)
	}

	if err := e.gateway.Ban(ctx, userID, banAuditReason(reason, executor)); err != nil {
		e.logger.Error("Failed to ban user",
			zap.Uint64("userID", uint64(userID)),
			zap.Error(err))
		return *user, fmt.Errorf("failed to ban user: %w", err)
	}

	e.logger.Info("Banned user",
		zap.Uint64("userID", uint64(userID)),
		zap.String("tag", utils.UserTag(*user)),
		zap.String("reason", reason),
		zap.Uint64("executorID", uint64(executor.ID)))

	return *user, nil
}

func (e *Engine) unban(ctx context.Context, executor discord.User, userID snowflake.ID) (discord.User, error) {
	existing, err := e.gateway.GetBan(ctx, userID)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return discord.User{}, ErrNotBanned
		}
		return discord.User{}, fmt.Errorf("failed to check existing ban: %w", err)
	}

	if err := e.gateway.Unban(ctx, userID, unbanAuditReason(executor)); err != nil {
		if errors.Is(err, gateway.ErrNotFound) {
			return existing.User, ErrNotBanned
		}
		e.logger.Error("Failed to unban user",
			zap.Uint64("userID", uint64(userID)),
			zap.Error(err))
		return existing.User, fmt.Errorf("failed to unban user: %w", err)
	}

	e.logger.Info("Unbanned user",
		zap.Uint64("userID", uint64(userID)),
		zap.String("tag", utils.UserTag(existing.User)),
		zap.Uint64("executorID", uint64(executor.ID)))

	return existing.User, nil
}

// reply answers msg in its channel. It returns 0 if the reply could not be sent.
func (e *Engine) reply(ctx context.Context, msg Message, message discord.MessageCreate) snowflake.ID {
	message.MessageReference = &discord.MessageReference{MessageID: &msg.ID}

	sent, err := e.gateway.SendMessage(ctx, msg.ChannelID, message)
	if err != nil {
		e.logger.Warn("Failed to send reply",
			zap.Uint64("messageID", uint64(msg.ID)),
			zap.Error(err))
		return 0
	}
	return sent.ID
}

// scheduleCleanup deletes the original message and its reply once delay has passed.
// Failed deletions are ignored.
func (e *Engine) scheduleCleanup(delay time.Duration, msg Message, replyID snowflake.ID) {
	channelID := msg.ChannelID
	ids := []snowflake.ID{msg.ID}
	if replyID != 0 {
		ids = append(ids, replyID)
	}

	e.delayer.After(delay, func(ctx context.Context) {
		for _, id := range ids {
			if err := e.gateway.DeleteMessage(ctx, channelID, id); err != nil {
				e.logger.Debug("Scheduled deletion skipped",
					zap.Uint64("messageID", uint64(id)),
					zap.Error(err))
			}
		}
	})
}

// refreshAfterAction refreshes the list once a mutation has completed. Its failure never
// changes the outcome already reported to the moderator.
func (e *Engine) refreshAfterAction(ctx context.Context) {
	if err := e.RefreshList(ctx); err != nil {
		e.logger.Error("Failed to refresh ban list", zap.Error(err))
	}
}

// RefreshList re-reads the guild's ban set and renders it into the ban list message,
// editing the stored message when it still exists and creating a new one otherwise.
func (e *Engine) RefreshList(ctx context.Context) error {
	if !e.Enabled() {
		return fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(e.config.Missing(), ", "))
	}

	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	bans, err := e.gateway.GetBans(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch bans: %w", err)
	}

	guildName, err := e.gateway.GuildName(ctx)
	if err != nil {
		e.logger.Warn("Failed to fetch guild name", zap.Error(err))
	}

	doc := RenderList(RecordsFromBans(bans), guildName)
	embeds := []discord.Embed{doc.Embed(e.now())}

	messageID, err := e.store.BanListMessageID(ctx)
	if err != nil {
		e.logger.Warn("Failed to read ban list pointer, creating a new message", zap.Error(err))
		messageID = 0
	}

	if messageID != 0 {
		err := e.editList(ctx, messageID, embeds)
		if err == nil {
			e.logger.Info("Updated ban list message",
				zap.Uint64("messageID", uint64(messageID)),
				zap.Int("bans", len(bans)))
			return nil
		}
		// Only a deleted message is replaced. Other edit failures keep the stored pointer
		// so a later refresh retries the same message.
		if !errors.Is(err, gateway.ErrNotFound) {
			return err
		}
		e.logger.Warn("Ban list message is gone, creating a new one",
			zap.Uint64("messageID", uint64(messageID)))
	}

	sent, err := e.gateway.SendMessage(ctx, e.config.ChannelID, discord.MessageCreate{Embeds: embeds})
	if err != nil {
		return fmt.Errorf("failed to send ban list message: %w", err)
	}

	if err := e.store.SetBanListMessageID(ctx, sent.ID); err != nil {
		return fmt.Errorf("failed to save ban list pointer: %w", err)
	}

	e.logger.Info("Created ban list message",
		zap.Uint64("messageID", uint64(sent.ID)),
		zap.Int("bans", len(bans)))

	return nil
}

func (e *Engine) editList(ctx context.Context, messageID snowflake.ID, embeds []discord.Embed) error {
	if _, err := e.gateway.GetMessage(ctx, e.config.ChannelID, messageID); err != nil {
		return fmt.Errorf("failed to fetch ban list message: %w", err)
	}

	if _, err := e.gateway.EditMessage(ctx, e.config.ChannelID, messageID, discord.MessageUpdate{
		Embeds: &embeds,
	}); err != nil {
		return fmt.Errorf("failed to edit ban list message: %w", err)
	}

	return nil
}

// Package commands implements the guild slash commands: ping, stats, search and setup-verify.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/gatekeeper/internal/bot/constants"
	"github.com/robalyx/gatekeeper/internal/bot/gateway"
	"go.uber.org/zap"
)

const (
	unknownCommandMessage = "エラー: このコマンドは存在しません。"
	commandFailedMessage  = "❌ コマンドの実行中にエラーが発生しました。"
)

// SearchProvider fetches web results for the search command.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// Handler routes slash commands to their implementations.
type Handler struct {
	gateway               gateway.Gateway
	searcher              SearchProvider
	verificationChannelID snowflake.ID
	started               time.Time
	logger                *zap.Logger
}

// New creates a command handler.
func New(
	gw gateway.Gateway, searcher SearchProvider, verificationChannelID snowflake.ID, logger *zap.Logger,
) *Handler {
	return &Handler{
		gateway:               gw,
		searcher:              searcher,
		verificationChannelID: verificationChannelID,
		started:               time.Now(),
		logger:                logger.Named("commands"),
	}
}

// Definitions returns the guild commands to register.
func Definitions() []discord.ApplicationCommandCreate {
	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        constants.PingCommandName,
			Description: "ボットのレイテンシを確認します",
		},
		discord.SlashCommandCreate{
			Name:        constants.StatsCommandName,
			Description: "ボットの統計情報を表示します",
		},
		discord.SlashCommandCreate{
			Name:        constants.SearchCommandName,
			Description: "ウェブ検索を行います",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        constants.SearchQueryOption,
					Description: "検索キーワード",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.SetupVerifyCommandName,
			Description: "認証ボードを設置します (管理者専用)",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionChannel{
					Name:         constants.SetupChannelOption,
					Description:  "認証ボードを設置するチャンネル",
					Required:     true,
					ChannelTypes: []discord.ChannelType{discord.ChannelTypeGuildText},
				},
			},
		},
	}
}

// Handle processes a slash command interaction.
func (h *Handler) Handle(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	name := data.CommandName()

	start := time.Now()
	defer func() {
		h.logger.Debug("Application command handled",
			zap.String("command", name),
			zap.Uint64("userID", uint64(event.User().ID)),
			zap.Duration("duration", time.Since(start)))
	}()

	var err error
	switch name {
	case constants.PingCommandName:
		err = h.ping(event)
	case constants.StatsCommandName:
		err = h.stats(event)
	case constants.SearchCommandName:
		err = h.search(ctx, event)
	case constants.SetupVerifyCommandName:
		err = h.setupVerify(ctx, event)
	default:
		h.logger.Warn("Unknown command", zap.String("command", name))
		err = h.replyEphemeral(event, unknownCommandMessage)
	}

	if err != nil {
		h.logger.Error("Failed to handle command",
			zap.String("command", name),
			zap.String("reason", gateway.Message(err)),
			zap.Error(err))
		h.respondWithError(event)
	}
}

func (h *Handler) search(ctx context.Context, event *events.ApplicationCommandInteractionCreate) error {
	query := event.SlashCommandInteractionData().String(constants.SearchQueryOption)

	if err := event.DeferCreateMessage(false); err != nil {
		return fmt.Errorf("failed to defer search reply: %w", err)
	}

	update := discord.NewMessageUpdateBuilder()
	results, err := h.searcher.Search(ctx, query, constants.SearchResultLimit)
	switch {
	case err != nil:
		h.logger.Warn("Search failed", zap.String("query", query), zap.Error(err))
		update.SetContent("❌ 検索中にエラーが発生しました。しばらくしてから再度お試しください。")
	case len(results) == 0:
		update.SetContent(fmt.Sprintf("🔍 「%s」の検索結果が見つかりませんでした。", query))
	default:
		update.SetEmbeds(SearchEmbed(query, results, time.Now()))
	}

	if _, err := event.Client().Rest().UpdateInteractionResponse(
		event.ApplicationID(), event.Token(), update.Build(),
	); err != nil {
		return fmt.Errorf("failed to update search reply: %w", err)
	}

	return nil
}

func (h *Handler) replyEphemeral(event *events.ApplicationCommandInteractionCreate, content string) error {
	return event.CreateMessage(discord.MessageCreate{
		Content: content,
		Flags:   discord.MessageFlagEphemeral,
	})
}

// respondWithError answers the interaction, or follows up when it was already answered.
func (h *Handler) respondWithError(event *events.ApplicationCommandInteractionCreate) {
	err := h.replyEphemeral(event, commandFailedMessage)
	if err == nil {
		return
	}

	if _, err := event.Client().Rest().CreateFollowupMessage(event.ApplicationID(), event.Token(), discord.MessageCreate{
		Content: commandFailedMessage,
		Flags:   discord.MessageFlagEphemeral,
	}); err != nil {
		h.logger.Error("Failed to send error followup", zap.Error(err))
	}
}

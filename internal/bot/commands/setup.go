package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/gatekeeper/internal/bot/constants"
	"github.com/robalyx/gatekeeper/internal/bot/utils"
	"github.com/robalyx/gatekeeper/internal/bot/verification"
	"go.uber.org/zap"
)

// PostBoard posts the verification board into channelID and returns the reply for the
// invoking administrator. The board may only go into the configured verification channel.
func (h *Handler) PostBoard(ctx context.Context, channelID snowflake.ID, executor discord.User) string {
	if h.verificationChannelID == 0 {
		return "❌ エラー: `VERIFICATION_CHANNEL_ID` が環境変数に設定されていません。`.env` を確認してください。"
	}

	if channelID != h.verificationChannelID {
		return fmt.Sprintf("❌ 指定したチャンネルが認証チャンネルと異なります。\n認証チャンネル: %s を指定してください。",
			utils.ChannelMention(h.verificationChannelID))
	}

	guildName, err := h.gateway.GuildName(ctx)
	if err != nil {
		h.logger.Warn("Failed to fetch guild name", zap.Error(err))
	}

	if _, err := h.gateway.SendMessage(ctx, channelID, verification.BoardMessage(guildName, time.Now())); err != nil {
		h.logger.Error("Failed to post verification board",
			zap.Uint64("channelID", uint64(channelID)),
			zap.Error(err))
		return "❌ エラー: 認証ボードの設置に失敗しました。ボットに「メッセージを送信」権限があるか確認してください。"
	}

	h.logger.Info("Posted verification board",
		zap.Uint64("channelID", uint64(channelID)),
		zap.String("executor", utils.UserTag(executor)))

	return fmt.Sprintf("✅ %s に認証ボードを設置しました。", utils.ChannelMention(channelID))
}

func (h *Handler) setupVerify(ctx context.Context, event *events.ApplicationCommandInteractionCreate) error {
	member := event.Member()
	if member == nil || !member.Permissions.Has(discord.PermissionAdministrator) {
		return h.replyEphemeral(event, "❌ この操作を行う権限がありません。")
	}

	channelID := event.SlashCommandInteractionData().Snowflake(constants.SetupChannelOption)
	return h.replyEphemeral(event, h.PostBoard(ctx, channelID, event.User()))
}

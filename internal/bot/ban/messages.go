package ban

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/gatekeeper/internal/bot/constants"
	"github.com/robalyx/gatekeeper/internal/bot/gateway"
	"github.com/robalyx/gatekeeper/internal/bot/utils"
)

const (
	noPermissionMessage   = "❌ この操作を行う権限がありません。"
	invalidCommandMessage = "❓ 無効なコマンドです。`!help` でヘルプを表示します。"
)

// banAuditReason is the reason stored in the platform's audit log for a ban.
func banAuditReason(reason string, executor discord.User) string {
	return reason + " | 実行者: " + utils.UserTag(executor)
}

// unbanAuditReason is the reason stored in the platform's audit log for an unban.
func unbanAuditReason(executor discord.User) string {
	return "BAN解除 | 実行者: " + utils.UserTag(executor)
}

func identity(user discord.User, id snowflake.ID) string {
	return fmt.Sprintf("**%s** (%s)", utils.UserTag(user), utils.UserMention(id))
}

// banOutcome converts the result of a ban into the moderator-facing reply.
func banOutcome(user discord.User, cmd Command, err error) string {
	switch {
	case err == nil:
		return fmt.Sprintf("✅ %s をBANしました。\n📝 理由: %s", identity(user, cmd.UserID), cmd.Reason)
	case errors.Is(err, ErrUserNotFound):
		return "❌ ユーザーが見つかりませんでした。IDを確認してください。"
	case errors.Is(err, ErrAlreadyBanned):
		return fmt.Sprintf("❌ %s は既にBANされています。", identity(user, cmd.UserID))
	case errors.Is(err, gateway.ErrPermissionDenied):
		return "❌ ボットに「メンバーをBAN」権限がありません。"
	default:
		return "❌ BANに失敗しました: " + gateway.Message(err)
	}
}

// unbanOutcome converts the result of an unban into the moderator-facing reply.
func unbanOutcome(user discord.User, cmd Command, err error) string {
	switch {
	case err == nil:
		return fmt.Sprintf("✅ %s のBANを解除しました。", identity(user, cmd.UserID))
	case errors.Is(err, ErrNotBanned):
		return "❌ このユーザーはBANされていません。"
	case errors.Is(err, gateway.ErrPermissionDenied):
		return "❌ ボットに「メンバーのBAN解除」権限がありません。"
	default:
		return "❌ BAN解除に失敗しました: " + gateway.Message(err)
	}
}

// HelpEmbed describes the plain-text moderation commands.
func HelpEmbed(now time.Time) discord.Embed {
	tips := strings.Join([]string{
		"• ユーザーIDは右クリック →「IDをコピー」で取得できます",
		"• 理由は任意ですが記録のため入力を推奨します",
		"• メッセージは5秒後に自動削除されます",
		"• ヘルプは15秒後に自動削除されます",
	}, "\n")

	return discord.NewEmbedBuilder().
		SetTitle("📋 BANシステム ヘルプ").
		SetDescription("このチャンネルでユーザーのBAN・BAN解除を行えます。").
		AddField("🔨 BANする", "```\nユーザーID\n```\n```\nユーザーID 理由\n```\n例: `123456789012345678 荒らし行為`", false).
		AddField("✅ BAN解除する", "```\n!unban ユーザーID\n```\n```\nunban ユーザーID\n```\n例: `!unban 123456789012345678`", false).
		AddField("💡 ヒント", tips, false).
		SetColor(constants.InfoEmbedColor).
		SetFooter("BAN管理システム", "").
		SetTimestamp(now).
		Build()
}

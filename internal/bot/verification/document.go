package verification

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/gatekeeper/internal/bot/constants"
	"github.com/robalyx/gatekeeper/internal/bot/utils"
)

// State is the lifecycle position of a rendered verification request. Only StateOpen
// accepts further clicks; every other state is terminal.
type State int

const (
	StateOpen State = iota
	StateApproved
	StateDenied
	StateTargetMissing
)

// String returns the name of the state for logging.
func (s State) String() string {
	switch s {
	case StateApproved:
		return "approved"
	case StateDenied:
		return "denied"
	case StateTargetMissing:
		return "target_missing"
	case StateOpen:
	}
	return "open"
}

// Document is a verification request as displayed in the moderation channel.
type Document struct {
	State    State
	TargetID snowflake.ID
	Embed    discord.Embed
	Content  string
}

// Disabled reports whether the approve and deny buttons are inactive.
func (d Document) Disabled() bool {
	return d.State != StateOpen
}

// MessageCreate renders the document as a new message.
func (d Document) MessageCreate() discord.MessageCreate {
	approve, deny := d.buttons()
	return discord.NewMessageCreateBuilder().
		SetContent(d.Content).
		SetEmbeds(d.Embed).
		AddActionRow(approve, deny).
		Build()
}

// MessageUpdate renders the document as a replacement for the message it lives in.
func (d Document) MessageUpdate() discord.MessageUpdate {
	approve, deny := d.buttons()
	return discord.NewMessageUpdateBuilder().
		SetContent(d.Content).
		SetEmbeds(d.Embed).
		AddActionRow(approve, deny).
		Build()
}

// buttons are rebuilt from the target ID so a terminal document never depends on the
// components of the message it replaces.
func (d Document) buttons() (discord.ButtonComponent, discord.ButtonComponent) {
	approve := discord.NewSuccessButton("承認", ApproveCustomID(d.TargetID)).
		WithEmoji(discord.ComponentEmoji{Name: "✅"}).
		WithDisabled(d.Disabled())
	deny := discord.NewDangerButton("拒否", DenyCustomID(d.TargetID)).
		WithEmoji(discord.ComponentEmoji{Name: "❌"}).
		WithDisabled(d.Disabled())
	return approve, deny
}

// RequestDocument renders a fresh request for member.
func RequestDocument(member discord.Member, now time.Time) Document {
	user := member.User
	tag := utils.UserTag(user)

	embed := discord.NewEmbedBuilder().
		SetTitle("📝 認証申請").
		SetDescription(fmt.Sprintf("%s (%s) が認証を申請しました。", utils.UserMention(user.ID), tag)).
		SetThumbnail(user.EffectiveAvatarURL(discord.WithSize(256))).
		AddField("ユーザー名", tag, true).
		AddField("ユーザーID", user.ID.String(), true).
		AddField(constants.InvisibleFieldName, constants.InvisibleFieldName, true).
		AddField("アカウント作成日", utils.RelativeTimestamp(user.ID.Time()), true).
		AddField("サーバー参加日", utils.RelativeTimestamp(member.JoinedAt), true).
		SetColor(constants.PendingEmbedColor).
		SetFooter("認証申請システム", "").
		SetTimestamp(now).
		Build()

	return Document{State: StateOpen, TargetID: user.ID, Embed: embed}
}

// withFooter copies embed with a new color and footer text.
func withFooter(embed discord.Embed, color int, footer string) discord.Embed {
	embed.Color = color
	embed.Footer = &discord.EmbedFooter{Text: footer}
	return embed
}

func approvedEmbed(embed discord.Embed, approver discord.User, at string) discord.Embed {
	return withFooter(embed, constants.SuccessEmbedColor,
		fmt.Sprintf("承認者: %s | %s", utils.UserTag(approver), at))
}

func alreadyVerifiedEmbed(embed discord.Embed, checker discord.User, at string) discord.Embed {
	return withFooter(embed, constants.SuccessEmbedColor,
		fmt.Sprintf("既に認証済み (確認者: %s) | %s", utils.UserTag(checker), at))
}

func deniedEmbed(embed discord.Embed, denier discord.User, at string) discord.Embed {
	return withFooter(embed, constants.ErrorEmbedColor,
		fmt.Sprintf("拒否者: %s | %s", utils.UserTag(denier), at))
}

// approvalNotice is sent to the user once their request was approved.
func approvalNotice(guildName string, now time.Time) discord.MessageCreate {
	embed := discord.NewEmbedBuilder().
		SetTitle("✅ 認証完了").
		SetDescription(fmt.Sprintf(
			"**%s** での認証が承認されました！\n\nサーバーの全チャンネルにアクセスできるようになりました。", guildName)).
		SetColor(constants.SuccessEmbedColor).
		SetFooter(guildName, "").
		SetTimestamp(now).
		Build()
	return discord.MessageCreate{Embeds: []discord.Embed{embed}}
}

// denialNotice is sent to the user once their request was denied.
func denialNotice(guildName string, now time.Time) discord.MessageCreate {
	embed := discord.NewEmbedBuilder().
		SetTitle("❌ 認証拒否").
		SetDescription(fmt.Sprintf(
			"**%s** での認証申請が拒否されました。\n\nご不明な点がある場合は、サーバーの管理者にお問い合わせください。", guildName)).
		SetColor(constants.ErrorEmbedColor).
		SetFooter(guildName, "").
		SetTimestamp(now).
		Build()
	return discord.MessageCreate{Embeds: []discord.Embed{embed}}
}

// BoardMessage is the verification board posted by the setup command.
func BoardMessage(guildName string, now time.Time) discord.MessageCreate {
	embed := discord.NewEmbedBuilder().
		SetTitle("🔐 サーバー認証").
		SetDescription("下のボタンを押してサーバーメンバーとして認証してください。\n\n" +
			"認証が完了すると、管理者による承認後にサーバーの全チャンネルにアクセスできるようになります。").
		SetColor(constants.InfoEmbedColor).
		SetFooter(guildName+" 認証システム", "").
		SetTimestamp(now).
		Build()

	return discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		AddActionRow(
			discord.NewSuccessButton("✓ 認証する", constants.VerifyButtonCustomID).
				WithEmoji(discord.ComponentEmoji{Name: "🔓"}),
		).
		Build()
}

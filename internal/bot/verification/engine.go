// Package verification implements the button-driven verification workflow: members request
// verification, administrators approve or deny it and the request message follows along.
package verification

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/gatekeeper/internal/bot/gateway"
	"github.com/robalyx/gatekeeper/internal/bot/utils"
	"go.uber.org/zap"
)

var (
	// ErrConfig indicates a required channel or role is not configured or does not exist.
	ErrConfig = errors.New("verification is not configured")
	// ErrNotAuthorized indicates the actor lacks the administrator role.
	ErrNotAuthorized = errors.New("actor is not an administrator")
	// ErrHierarchy indicates the bot's highest role is not above the verified role.
	ErrHierarchy = errors.New("bot role is not above the verified role")
	// ErrChannelUnreachable indicates the moderation channel cannot be fetched.
	ErrChannelUnreachable = errors.New("moderation channel is unreachable")
	// ErrTargetMissing indicates the user being reviewed is no longer in the guild.
	ErrTargetMissing = errors.New("target is no longer a member")
)

const (
	incompleteConfigMessage = "❌ エラー: 認証システムの設定が不完全です。"
	noPermissionMessage     = "❌ この操作を行う権限がありません。"
	genericErrorMessage     = "❌ エラーが発生しました。管理者に連絡してください。"
	targetMissingContent    = "⚠ 対象ユーザーがサーバーに存在しません。"
)

// Config holds the identifiers and presentation settings of the workflow.
type Config struct {
	ModerationChannelID snowflake.ID
	AdminRoleID         snowflake.ID
	VerifiedRoleID      snowflake.ID
	// Location is used for footer timestamps. Nil means UTC.
	Location *time.Location
	// Clock returns the current time. Nil means time.Now.
	Clock func() time.Time
}

// Interaction is a button click as seen by the engine.
type Interaction struct {
	Actor discord.User
	// Embeds are the embeds of the message carrying the clicked button.
	Embeds []discord.Embed
}

// Responder acknowledges an interaction. Each entry point uses it exactly once.
type Responder interface {
	// Reply answers with a message only the actor can see.
	Reply(content string) error
	// Update replaces the message carrying the clicked button.
	Update(doc Document) error
}

// Engine runs the verification workflow against the guild.
type Engine struct {
	gateway gateway.Gateway
	config  Config
	logger  *zap.Logger
}

// NewEngine creates a verification engine.
func NewEngine(gw gateway.Gateway, config Config, logger *zap.Logger) *Engine {
	if config.Clock == nil {
		config.Clock = time.Now
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Engine{
		gateway: gw,
		config:  config,
		logger:  logger.Named("verification"),
	}
}

// Handle dispatches a decoded action to its entry point.
func (e *Engine) Handle(ctx context.Context, action Action, in Interaction, r Responder) error {
	switch action.Kind {
	case ActionRequest:
		return e.Request(ctx, in, r)
	case ActionApprove:
		return e.Approve(ctx, in, action.TargetID, r)
	case ActionDeny:
		return e.Deny(ctx, in, action.TargetID, r)
	case ActionUnknown:
	}
	return nil
}

// Request posts a verification request for the actor to the moderation channel.
func (e *Engine) Request(ctx context.Context, in Interaction, r Responder) error {
	if e.config.ModerationChannelID == 0 || e.config.VerifiedRoleID == 0 {
		e.reply(r, "❌ エラー: 認証システムの設定が不完全です。管理者に連絡してください。")
		return fmt.Errorf("%w: moderation channel or verified role missing", ErrConfig)
	}

	member, err := e.gateway.GetMember(ctx, in.Actor.ID)
	if err != nil {
		e.reply(r, genericErrorMessage)
		return fmt.Errorf("failed to fetch requesting member: %w", err)
	}

	if slices.Contains(member.RoleIDs, e.config.VerifiedRoleID) {
		e.reply(r, "✅ あなたはすでに認証済みです。")
		return nil
	}

	if err := e.gateway.GetChannel(ctx, e.config.ModerationChannelID); err != nil {
		e.logger.Error("Moderation channel is unreachable",
			zap.Uint64("channelID", uint64(e.config.ModerationChannelID)),
			zap.Error(err))
		e.reply(r, genericErrorMessage)
		return fmt.Errorf("%w: %w", ErrChannelUnreachable, err)
	}

	doc := RequestDocument(*member, e.config.Clock())
	if _, err := e.gateway.SendMessage(ctx, e.config.ModerationChannelID, doc.MessageCreate()); err != nil {
		e.logger.Error("Failed to post verification request", zap.Error(err))
		e.reply(r, "❌ エラー: 認証申請の送信に失敗しました。管理者に連絡してください。")
		return fmt.Errorf("failed to post verification request: %w", err)
	}

	e.logger.Info("Verification requested",
		zap.Uint64("userID", uint64(member.User.ID)),
		zap.String("tag", utils.UserTag(member.User)))

	e.reply(r, "✅ 認証申請を送信しました。管理者の承認をお待ちください。")
	return nil
}

// Approve grants the verified role to the target. Every precondition is checked before the
// grant; repeated approvals of an already verified target only re-render the document.
func (e *Engine) Approve(ctx context.Context, in Interaction, targetID snowflake.ID, r Responder) error {
	if e.config.AdminRoleID == 0 || e.config.VerifiedRoleID == 0 {
		e.reply(r, incompleteConfigMessage)
		return fmt.Errorf("%w: admin or verified role missing", ErrConfig)
	}

	if !e.isAdmin(ctx, in.Actor.ID) {
		e.reply(r, noPermissionMessage)
		return ErrNotAuthorized
	}

	target, err := e.gateway.GetMember(ctx, targetID)
	if err != nil {
		if !errors.Is(err, gateway.ErrNotFound) {
			e.reply(r, genericErrorMessage)
			return fmt.Errorf("failed to fetch target member: %w", err)
		}

		doc := Document{
			State:    StateTargetMissing,
			TargetID: targetID,
			Embed:    requestEmbed(in),
			Content:  targetMissingContent,
		}
		e.update(r, doc)
		return ErrTargetMissing
	}

	if err := e.checkGrantable(ctx, r); err != nil {
		return err
	}

	at := utils.FormatFooterTime(e.config.Clock(), e.config.Location)

	if slices.Contains(target.RoleIDs, e.config.VerifiedRoleID) {
		e.update(r, Document{
			State:    StateApproved,
			TargetID: targetID,
			Embed:    alreadyVerifiedEmbed(requestEmbed(in), in.Actor, at),
		})
		return nil
	}

	reason := "承認者: " + utils.UserTag(in.Actor)
	if err := e.gateway.AddRole(ctx, targetID, e.config.VerifiedRoleID, reason); err != nil {
		e.logger.Error("Failed to grant verified role",
			zap.Uint64("userID", uint64(targetID)),
			zap.Error(err))
		if errors.Is(err, gateway.ErrPermissionDenied) {
			e.reply(r, "❌ ボットに必要な権限がありません。「ロールの管理」権限とロール階層を確認してください。")
		} else {
			e.reply(r, "❌ ロールの付与に失敗しました。")
		}
		return fmt.Errorf("failed to grant verified role: %w", err)
	}

	e.update(r, Document{
		State:    StateApproved,
		TargetID: targetID,
		Embed:    approvedEmbed(requestEmbed(in), in.Actor, at),
	})

	e.logger.Info("Verification approved",
		zap.Uint64("userID", uint64(targetID)),
		zap.String("tag", utils.UserTag(target.User)),
		zap.Uint64("approverID", uint64(in.Actor.ID)))

	e.notify(ctx, targetID, approvalNotice(e.guildName(ctx), e.config.Clock()))
	return nil
}

// Deny closes the request without granting anything. The target may have left the guild.
func (e *Engine) Deny(ctx context.Context, in Interaction, targetID snowflake.ID, r Responder) error {
	if e.config.AdminRoleID == 0 {
		e.reply(r, incompleteConfigMessage)
		return fmt.Errorf("%w: admin role missing", ErrConfig)
	}

	if !e.isAdmin(ctx, in.Actor.ID) {
		e.reply(r, noPermissionMessage)
		return ErrNotAuthorized
	}

	present := true
	if _, err := e.gateway.GetMember(ctx, targetID); err != nil {
		present = false
		if !errors.Is(err, gateway.ErrNotFound) {
			e.logger.Warn("Failed to fetch denied member", zap.Error(err))
		}
	}

	at := utils.FormatFooterTime(e.config.Clock(), e.config.Location)
	e.update(r, Document{
		State:    StateDenied,
		TargetID: targetID,
		Embed:    deniedEmbed(requestEmbed(in), in.Actor, at),
	})

	e.logger.Info("Verification denied",
		zap.Uint64("userID", uint64(targetID)),
		zap.Bool("present", present),
		zap.Uint64("denierID", uint64(in.Actor.ID)))

	if present {
		e.notify(ctx, targetID, denialNotice(e.guildName(ctx), e.config.Clock()))
	}
	return nil
}

// isAdmin checks the actor's live role set. A failed lookup denies access.
func (e *Engine) isAdmin(ctx context.Context, userID snowflake.ID) bool {
	member, err := e.gateway.GetMember(ctx, userID)
	if err != nil {
		e.logger.Warn("Failed to fetch acting member",
			zap.Uint64("userID", uint64(userID)),
			zap.Error(err))
		return false
	}
	return slices.Contains(member.RoleIDs, e.config.AdminRoleID)
}

// checkGrantable verifies the bot can manage roles, the verified role exists and the bot's
// highest role sits strictly above it. It replies to the actor on failure.
func (e *Engine) checkGrantable(ctx context.Context, r Responder) error {
	self, err := e.gateway.GetMember(ctx, e.gateway.SelfID())
	if err != nil {
		e.reply(r, genericErrorMessage)
		return fmt.Errorf("failed to fetch bot member: %w", err)
	}

	roles, err := e.gateway.GetRoles(ctx)
	if err != nil {
		e.reply(r, genericErrorMessage)
		return fmt.Errorf("failed to fetch roles: %w", err)
	}

	var (
		permissions discord.Permissions
		highest     int
		verified    *discord.Role
	)
	for i, role := range roles {
		held := slices.Contains(self.RoleIDs, role.ID)
		// The @everyone role shares the guild's ID and applies to every member
		if held || role.ID == e.gateway.GuildID() {
			permissions |= role.Permissions
		}
		if held && role.Position > highest {
			highest = role.Position
		}
		if role.ID == e.config.VerifiedRoleID {
			verified = &roles[i]
		}
	}

	if !permissions.Has(discord.PermissionManageRoles) && !permissions.Has(discord.PermissionAdministrator) {
		e.reply(r, "❌ ボットに「ロールの管理」権限がありません。サーバー設定を確認してください。")
		return fmt.Errorf("%w: manage roles", gateway.ErrPermissionDenied)
	}

	if verified == nil {
		e.reply(r, "❌ 認証ロールが見つかりません。VERIFIED_ROLE_ID の設定を確認してください。")
		return fmt.Errorf("%w: verified role %s does not exist", ErrConfig, e.config.VerifiedRoleID)
	}

	if highest <= verified.Position {
		e.reply(r, fmt.Sprintf("❌ ボットのロールが認証ロール「%s」より下位にあるため、ロールを付与できません。\n"+
			"Discordサーバー設定でボットのロールを認証ロールより上位に移動してください。", verified.Name))
		return fmt.Errorf("%w: bot position %d, verified role position %d", ErrHierarchy, highest, verified.Position)
	}

	return nil
}

// notify sends a direct message to the user. Failures are logged and never surface.
func (e *Engine) notify(ctx context.Context, userID snowflake.ID, message discord.MessageCreate) {
	if err := e.gateway.SendDirectMessage(ctx, userID, message); err != nil {
		e.logger.Info("Could not send direct message",
			zap.Uint64("userID", uint64(userID)),
			zap.Error(err))
	}
}

func (e *Engine) guildName(ctx context.Context) string {
	name, err := e.gateway.GuildName(ctx)
	if err != nil {
		e.logger.Warn("Failed to fetch guild name", zap.Error(err))
	}
	return name
}

func (e *Engine) reply(r Responder, content string) {
	if err := r.Reply(content); err != nil {
		e.logger.Error("Failed to reply to interaction", zap.Error(err))
	}
}

func (e *Engine) update(r Responder, doc Document) {
	if err := r.Update(doc); err != nil {
		e.logger.Error("Failed to update verification request",
			zap.Uint64("targetID", uint64(doc.TargetID)),
			zap.Stringer("state", doc.State),
			zap.Error(err))
	}
}

// requestEmbed returns the embed of the clicked request, or a bare one if the message
// had none.
func requestEmbed(in Interaction) discord.Embed {
	if len(in.Embeds) > 0 {
		return in.Embeds[0]
	}
	return discord.Embed{Title: "📝 認証申請"}
}

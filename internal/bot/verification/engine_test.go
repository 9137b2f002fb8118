package verification_test

import (
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/gatekeeper/internal/bot/constants"
	"github.com/robalyx/gatekeeper/internal/bot/gateway"
	"github.com/robalyx/gatekeeper/internal/bot/gateway/gatewaytest"
	"github.com/robalyx/gatekeeper/internal/bot/verification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	guildID             snowflake.ID = 1
	selfID              snowflake.ID = 2
	moderationChannelID snowflake.ID = 500
	adminRoleID         snowflake.ID = 200
	verifiedRoleID      snowflake.ID = 210
	botRoleID           snowflake.ID = 220
	adminID             snowflake.ID = 300
	memberID            snowflake.ID = 301
	applicantID         snowflake.ID = 400
)

var (
	adminUser     = discord.User{ID: adminID, Username: "admin", Discriminator: "0"}
	memberUser    = discord.User{ID: memberID, Username: "member", Discriminator: "0"}
	applicantUser = discord.User{ID: applicantID, Username: "newcomer", Discriminator: "0"}
	fixedNow      = time.Date(2024, time.March, 5, 1, 2, 3, 0, time.UTC)
)

// recordingResponder captures how the engine acknowledged an interaction.
type recordingResponder struct {
	replies []string
	updates []verification.Document
	failAll error
}

func (r *recordingResponder) Reply(content string) error {
	r.replies = append(r.replies, content)
	return r.failAll
}

func (r *recordingResponder) Update(doc verification.Document) error {
	r.updates = append(r.updates, doc)
	return r.failAll
}

// acknowledgements counts every response sent.
func (r *recordingResponder) acknowledgements() int {
	return len(r.replies) + len(r.updates)
}

type fixture struct {
	engine  *verification.Engine
	gateway *gatewaytest.Gateway
}

func setup(t *testing.T) *fixture {
	t.Helper()

	gw := gatewaytest.New(guildID, selfID)
	gw.Name = "Test Guild"
	gw.Roles = []discord.Role{
		{ID: guildID, Name: "@everyone", Position: 0},
		{ID: verifiedRoleID, Name: "Verified", Position: 2},
		{ID: adminRoleID, Name: "Admin", Position: 4},
		{ID: botRoleID, Name: "Gatekeeper", Position: 5, Permissions: discord.PermissionManageRoles},
	}
	gw.Channels[moderationChannelID] = true
	gw.AddMember(discord.Member{User: discord.User{ID: selfID, Username: "gatekeeper", Bot: true}, RoleIDs: []snowflake.ID{botRoleID}})
	gw.AddMember(discord.Member{User: adminUser, RoleIDs: []snowflake.ID{adminRoleID}})
	gw.AddMember(discord.Member{User: memberUser})
	gw.AddMember(discord.Member{User: applicantUser})

	engine := verification.NewEngine(gw, verification.Config{
		ModerationChannelID: moderationChannelID,
		AdminRoleID:         adminRoleID,
		VerifiedRoleID:      verifiedRoleID,
		Location:            time.FixedZone("JST", 9*60*60),
		Clock:               func() time.Time { return fixedNow },
	}, zap.NewNop())

	return &fixture{engine: engine, gateway: gw}
}

// request submits a verification request for the applicant and returns the posted message.
func (f *fixture) request(t *testing.T) *gatewaytest.Message {
	t.Helper()
	r := &recordingResponder{}
	require.NoError(t, f.engine.Request(t.Context(), verification.Interaction{Actor: applicantUser}, r))

	messages := f.gateway.ChannelMessages(moderationChannelID)
	require.Len(t, messages, 1)
	return messages[0]
}

func (f *fixture) setRole(t *testing.T, userID, roleID snowflake.ID) {
	t.Helper()
	member := f.gateway.Members[userID]
	member.RoleIDs = append(member.RoleIDs, roleID)
	f.gateway.AddMember(member)
}

func (f *fixture) hasRole(userID, roleID snowflake.ID) bool {
	member, ok := f.gateway.Members[userID]
	return ok && slices.Contains(member.RoleIDs, roleID)
}

func TestVerificationScenario(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := t.Context()

	// The applicant asks for verification
	r := &recordingResponder{}
	require.NoError(t, f.engine.Request(ctx, verification.Interaction{Actor: applicantUser}, r))
	assert.Equal(t, []string{"✅ 認証申請を送信しました。管理者の承認をお待ちください。"}, r.replies)

	messages := f.gateway.ChannelMessages(moderationChannelID)
	require.Len(t, messages, 1)
	request := messages[0]
	require.Len(t, request.Create.Embeds, 1)
	embed := request.Create.Embeds[0]
	assert.Equal(t, "📝 認証申請", embed.Title)
	assert.Contains(t, embed.Description, "<@400> (newcomer)")
	assert.Equal(t, constants.PendingEmbedColor, embed.Color)
	assert.NotEmpty(t, request.Create.Components)

	// An administrator approves it
	r = &recordingResponder{}
	err := f.engine.Approve(ctx, verification.Interaction{Actor: adminUser, Embeds: request.Create.Embeds}, applicantID, r)
	require.NoError(t, err)

	assert.True(t, f.hasRole(applicantID, verifiedRoleID))
	assert.Empty(t, r.replies)
	require.Len(t, r.updates, 1)

	doc := r.updates[0]
	assert.Equal(t, verification.StateApproved, doc.State)
	assert.True(t, doc.Disabled())
	assert.Equal(t, applicantID, doc.TargetID)
	assert.Equal(t, constants.SuccessEmbedColor, doc.Embed.Color)
	assert.Equal(t, "📝 認証申請", doc.Embed.Title)
	require.NotNil(t, doc.Embed.Footer)
	assert.Equal(t, "承認者: admin | 2024/3/5 10:02:03", doc.Embed.Footer.Text)

	// The applicant is told about it
	dms := f.gateway.DirectMessages()
	require.Len(t, dms, 1)
	assert.Equal(t, applicantID, dms[0].UserID)
	assert.Equal(t, "✅ 認証完了", dms[0].Message.Embeds[0].Title)

	calls := f.gateway.Calls()
	addAt := slices.IndexFunc(calls, func(c gatewaytest.Call) bool { return c.Op == gatewaytest.OpAddRole })
	require.NotEqual(t, -1, addAt)
	assert.Equal(t, "承認者: admin", calls[addAt].Reason)
}

func TestApproveIgnoresDirectMessageFailure(t *testing.T) {
	t.Parallel()
	f := setup(t)
	request := f.request(t)
	f.gateway.Fail(gatewaytest.OpSendDirectMessage, errors.New("cannot send messages to this user"))

	r := &recordingResponder{}
	err := f.engine.Approve(t.Context(), verification.Interaction{Actor: adminUser, Embeds: request.Create.Embeds}, applicantID, r)

	require.NoError(t, err)
	assert.True(t, f.hasRole(applicantID, verifiedRoleID))
	require.Len(t, r.updates, 1)
	assert.Equal(t, verification.StateApproved, r.updates[0].State)
	assert.Empty(t, r.replies)
}

func TestApproveAlreadyVerifiedIsIdempotent(t *testing.T) {
	t.Parallel()
	f := setup(t)
	request := f.request(t)
	f.setRole(t, applicantID, verifiedRoleID)

	in := verification.Interaction{Actor: adminUser, Embeds: request.Create.Embeds}
	first, second := &recordingResponder{}, &recordingResponder{}

	require.NoError(t, f.engine.Approve(t.Context(), in, applicantID, first))
	require.NoError(t, f.engine.Approve(t.Context(), in, applicantID, second))

	require.Len(t, first.updates, 1)
	require.Len(t, second.updates, 1)
	assert.Equal(t, first.updates[0], second.updates[0])
	assert.Equal(t, verification.StateApproved, first.updates[0].State)
	assert.Equal(t, "既に認証済み (確認者: admin) | 2024/3/5 10:02:03", first.updates[0].Embed.Footer.Text)

	assert.Zero(t, f.gateway.CallCount(gatewaytest.OpAddRole))
	assert.Empty(t, f.gateway.DirectMessages())
}

func TestApproveTwiceGrantsOnce(t *testing.T) {
	t.Parallel()
	f := setup(t)
	request := f.request(t)
	in := verification.Interaction{Actor: adminUser, Embeds: request.Create.Embeds}

	require.NoError(t, f.engine.Approve(t.Context(), in, applicantID, &recordingResponder{}))
	r := &recordingResponder{}
	require.NoError(t, f.engine.Approve(t.Context(), in, applicantID, r))

	assert.Equal(t, 1, f.gateway.CallCount(gatewaytest.OpAddRole))
	require.Len(t, r.updates, 1)
	assert.Equal(t, verification.StateApproved, r.updates[0].State)
}

func TestApproveTargetMissing(t *testing.T) {
	t.Parallel()
	f := setup(t)
	request := f.request(t)
	delete(f.gateway.Members, applicantID)

	r := &recordingResponder{}
	err := f.engine.Approve(t.Context(), verification.Interaction{Actor: adminUser, Embeds: request.Create.Embeds}, applicantID, r)

	require.ErrorIs(t, err, verification.ErrTargetMissing)
	require.Len(t, r.updates, 1)
	doc := r.updates[0]
	assert.Equal(t, verification.StateTargetMissing, doc.State)
	assert.True(t, doc.Disabled())
	assert.Equal(t, "⚠ 対象ユーザーがサーバーに存在しません。", doc.Content)
	assert.Equal(t, request.Create.Embeds[0], doc.Embed)
	assert.Zero(t, f.gateway.CallCount(gatewaytest.OpAddRole))
}

func TestApprovePreconditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		prepare func(f *fixture)
		actor   discord.User
		wantErr error
		reply   string
	}{
		{
			name:    "actor is not an administrator",
			actor:   memberUser,
			wantErr: verification.ErrNotAuthorized,
			reply:   "❌ この操作を行う権限がありません。",
		},
		{
			name: "bot cannot manage roles",
			prepare: func(f *fixture) {
				f.gateway.Roles[3].Permissions = 0
			},
			actor:   adminUser,
			wantErr: gateway.ErrPermissionDenied,
			reply:   "❌ ボットに「ロールの管理」権限がありません。サーバー設定を確認してください。",
		},
		{
			name: "verified role does not exist",
			prepare: func(f *fixture) {
				f.gateway.Roles = slices.DeleteFunc(f.gateway.Roles, func(r discord.Role) bool {
					return r.ID == verifiedRoleID
				})
			},
			actor:   adminUser,
			wantErr: verification.ErrConfig,
			reply:   "❌ 認証ロールが見つかりません。VERIFIED_ROLE_ID の設定を確認してください。",
		},
		{
			name: "bot role below verified role",
			prepare: func(f *fixture) {
				f.gateway.Roles[3].Position = 1
			},
			actor:   adminUser,
			wantErr: verification.ErrHierarchy,
			reply: "❌ ボットのロールが認証ロール「Verified」より下位にあるため、ロールを付与できません。\n" +
				"Discordサーバー設定でボットのロールを認証ロールより上位に移動してください。",
		},
		{
			name: "bot role level with verified role",
			prepare: func(f *fixture) {
				f.gateway.Roles[3].Position = 2
			},
			actor:   adminUser,
			wantErr: verification.ErrHierarchy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := setup(t)
			request := f.request(t)
			if tt.prepare != nil {
				tt.prepare(f)
			}

			r := &recordingResponder{}
			err := f.engine.Approve(t.Context(), verification.Interaction{Actor: tt.actor, Embeds: request.Create.Embeds}, applicantID, r)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, r.updates)
			require.Len(t, r.replies, 1)
			if tt.reply != "" {
				assert.Equal(t, tt.reply, r.replies[0])
			}
			assert.Zero(t, f.gateway.CallCount(gatewaytest.OpAddRole))
			assert.False(t, f.hasRole(applicantID, verifiedRoleID))
		})
	}
}

func TestApproveWithAdministratorPermission(t *testing.T) {
	t.Parallel()
	f := setup(t)
	request := f.request(t)
	f.gateway.Roles[3].Permissions = discord.PermissionAdministrator

	err := f.engine.Approve(t.Context(), verification.Interaction{Actor: adminUser, Embeds: request.Create.Embeds}, applicantID, &recordingResponder{})

	require.NoError(t, err)
	assert.True(t, f.hasRole(applicantID, verifiedRoleID))
}

func TestApproveGrantFailure(t *testing.T) {
	t.Parallel()
	f := setup(t)
	request := f.request(t)
	f.gateway.Fail(gatewaytest.OpAddRole, fmt.Errorf("%w: Missing Permissions", gateway.ErrPermissionDenied))

	r := &recordingResponder{}
	err := f.engine.Approve(t.Context(), verification.Interaction{Actor: adminUser, Embeds: request.Create.Embeds}, applicantID, r)

	require.ErrorIs(t, err, gateway.ErrPermissionDenied)
	assert.Empty(t, r.updates)
	assert.Equal(t, []string{"❌ ボットに必要な権限がありません。「ロールの管理」権限とロール階層を確認してください。"}, r.replies)
	assert.Empty(t, f.gateway.DirectMessages())
}

func TestDeny(t *testing.T) {
	t.Parallel()
	f := setup(t)
	request := f.request(t)

	r := &recordingResponder{}
	err := f.engine.Deny(t.Context(), verification.Interaction{Actor: adminUser, Embeds: request.Create.Embeds}, applicantID, r)

	require.NoError(t, err)
	require.Len(t, r.updates, 1)
	doc := r.updates[0]
	assert.Equal(t, verification.StateDenied, doc.State)
	assert.True(t, doc.Disabled())
	assert.Equal(t, constants.ErrorEmbedColor, doc.Embed.Color)
	assert.Equal(t, "拒否者: admin | 2024/3/5 10:02:03", doc.Embed.Footer.Text)
	assert.False(t, f.hasRole(applicantID, verifiedRoleID))

	dms := f.gateway.DirectMessages()
	require.Len(t, dms, 1)
	assert.Equal(t, "❌ 認証拒否", dms[0].Message.Embeds[0].Title)
}

func TestDenyTargetGone(t *testing.T) {
	t.Parallel()
	f := setup(t)
	request := f.request(t)
	delete(f.gateway.Members, applicantID)

	r := &recordingResponder{}
	err := f.engine.Deny(t.Context(), verification.Interaction{Actor: adminUser, Embeds: request.Create.Embeds}, applicantID, r)

	require.NoError(t, err)
	require.Len(t, r.updates, 1)
	assert.Equal(t, verification.StateDenied, r.updates[0].State)
	assert.Zero(t, f.gateway.CallCount(gatewaytest.OpSendDirectMessage))
}

func TestDenyIgnoresDirectMessageFailure(t *testing.T) {
	t.Parallel()
	f := setup(t)
	request := f.request(t)
	f.gateway.Fail(gatewaytest.OpSendDirectMessage, gateway.ErrPermissionDenied)

	r := &recordingResponder{}
	err := f.engine.Deny(t.Context(), verification.Interaction{Actor: adminUser, Embeds: request.Create.Embeds}, applicantID, r)

	require.NoError(t, err)
	require.Len(t, r.updates, 1)
	assert.Equal(t, verification.StateDenied, r.updates[0].State)
}

func TestDenyRequiresAdministrator(t *testing.T) {
	t.Parallel()
	f := setup(t)
	request := f.request(t)

	r := &recordingResponder{}
	err := f.engine.Deny(t.Context(), verification.Interaction{Actor: memberUser, Embeds: request.Create.Embeds}, applicantID, r)

	require.ErrorIs(t, err, verification.ErrNotAuthorized)
	assert.Empty(t, r.updates)
	assert.Equal(t, []string{"❌ この操作を行う権限がありません。"}, r.replies)
	assert.Empty(t, f.gateway.DirectMessages())
}

func TestRequestAlreadyVerified(t *testing.T) {
	t.Parallel()
	f := setup(t)
	f.setRole(t, applicantID, verifiedRoleID)

	r := &recordingResponder{}
	require.NoError(t, f.engine.Request(t.Context(), verification.Interaction{Actor: applicantUser}, r))

	assert.Equal(t, []string{"✅ あなたはすでに認証済みです。"}, r.replies)
	assert.Empty(t, f.gateway.ChannelMessages(moderationChannelID))
}

func TestRequestModerationChannelUnreachable(t *testing.T) {
	t.Parallel()
	f := setup(t)
	delete(f.gateway.Channels, moderationChannelID)

	r := &recordingResponder{}
	err := f.engine.Request(t.Context(), verification.Interaction{Actor: applicantUser}, r)

	require.ErrorIs(t, err, verification.ErrChannelUnreachable)
	assert.Equal(t, []string{"❌ エラーが発生しました。管理者に連絡してください。"}, r.replies)
	assert.Zero(t, f.gateway.CallCount(gatewaytest.OpSendMessage))
}

func TestRequestSendFailure(t *testing.T) {
	t.Parallel()
	f := setup(t)
	f.gateway.Fail(gatewaytest.OpSendMessage, gateway.ErrPermissionDenied)

	r := &recordingResponder{}
	err := f.engine.Request(t.Context(), verification.Interaction{Actor: applicantUser}, r)

	require.ErrorIs(t, err, gateway.ErrPermissionDenied)
	assert.Equal(t, []string{"❌ エラー: 認証申請の送信に失敗しました。管理者に連絡してください。"}, r.replies)
}

func TestMissingConfiguration(t *testing.T) {
	t.Parallel()

	gw := gatewaytest.New(guildID, selfID)
	gw.AddMember(discord.Member{User: adminUser, RoleIDs: []snowflake.ID{adminRoleID}})
	engine := verification.NewEngine(gw, verification.Config{AdminRoleID: adminRoleID}, zap.NewNop())
	ctx := t.Context()

	r := &recordingResponder{}
	require.ErrorIs(t, engine.Request(ctx, verification.Interaction{Actor: adminUser}, r), verification.ErrConfig)
	assert.Len(t, r.replies, 1)

	r = &recordingResponder{}
	require.ErrorIs(t, engine.Approve(ctx, verification.Interaction{Actor: adminUser}, applicantID, r), verification.ErrConfig)
	assert.Equal(t, []string{"❌ エラー: 認証システムの設定が不完全です。"}, r.replies)

	// Denial needs only the administrator role
	r = &recordingResponder{}
	require.NoError(t, engine.Deny(ctx, verification.Interaction{Actor: adminUser}, applicantID, r))
	require.Len(t, r.updates, 1)

	assert.Zero(t, gw.CallCount(gatewaytest.OpAddRole))
	assert.Zero(t, gw.CallCount(gatewaytest.OpSendMessage))
}

func TestEveryEntryPointAcknowledgesOnce(t *testing.T) {
	t.Parallel()

	actions := []verification.Action{
		{Kind: verification.ActionRequest},
		{Kind: verification.ActionApprove, TargetID: applicantID},
		{Kind: verification.ActionDeny, TargetID: applicantID},
	}

	for _, action := range actions {
		for _, actor := range []discord.User{adminUser, memberUser, applicantUser} {
			f := setup(t)
			request := f.request(t)

			r := &recordingResponder{}
			_ = f.engine.Handle(t.Context(), action, verification.Interaction{Actor: actor, Embeds: request.Create.Embeds}, r)
			assert.Equal(t, 1, r.acknowledgements(), "action %d by %s", action.Kind, actor.Username)
		}
	}
}

func TestHandleUnknownAction(t *testing.T) {
	t.Parallel()
	f := setup(t)

	r := &recordingResponder{}
	require.NoError(t, f.engine.Handle(t.Context(), verification.Action{}, verification.Interaction{Actor: adminUser}, r))
	assert.Zero(t, r.acknowledgements())
	assert.Empty(t, f.gateway.Calls())
}

func TestResponderFailureIsContained(t *testing.T) {
	t.Parallel()
	f := setup(t)
	request := f.request(t)

	r := &recordingResponder{failAll: errors.New("interaction expired")}
	err := f.engine.Approve(t.Context(), verification.Interaction{Actor: adminUser, Embeds: request.Create.Embeds}, applicantID, r)

	require.NoError(t, err)
	assert.True(t, f.hasRole(applicantID, verifiedRoleID))
}

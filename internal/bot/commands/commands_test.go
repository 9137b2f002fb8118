package commands_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/gatekeeper/internal/bot/commands"
	"github.com/robalyx/gatekeeper/internal/bot/constants"
	"github.com/robalyx/gatekeeper/internal/bot/gateway"
	"github.com/robalyx/gatekeeper/internal/bot/gateway/gatewaytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	guildID               snowflake.ID = 1
	selfID                snowflake.ID = 2
	verificationChannelID snowflake.ID = 700
)

var executor = discord.User{ID: 300, Username: "admin", Discriminator: "0"}

func TestDefinitions(t *testing.T) {
	t.Parallel()

	defs := commands.Definitions()
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.CommandName())
	}

	assert.Equal(t, []string{
		constants.PingCommandName,
		constants.StatsCommandName,
		constants.SearchCommandName,
		constants.SetupVerifyCommandName,
	}, names)
}

func TestLatencyColor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		latency time.Duration
		want    int
	}{
		{latency: 0, want: constants.SuccessEmbedColor},
		{latency: 199 * time.Millisecond, want: constants.SuccessEmbedColor},
		{latency: 200 * time.Millisecond, want: constants.PendingEmbedColor},
		{latency: 499 * time.Millisecond, want: constants.PendingEmbedColor},
		{latency: 500 * time.Millisecond, want: constants.ErrorEmbedColor},
		{latency: 3 * time.Second, want: constants.ErrorEmbedColor},
	}

	for _, tt := range tests {
		t.Run(tt.latency.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, commands.LatencyColor(tt.latency))
		})
	}
}

func TestPingEmbed(t *testing.T) {
	t.Parallel()

	embed := commands.PingEmbed(120*time.Millisecond, 45*time.Millisecond, time.Now())

	assert.Equal(t, "🏓 Pong!", embed.Title)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "`120ms`", embed.Fields[0].Value)
	assert.Equal(t, "`45ms`", embed.Fields[1].Value)
	assert.Equal(t, constants.SuccessEmbedColor, embed.Color)
}

func TestStatsEmbed(t *testing.T) {
	t.Parallel()

	embed := commands.StatsEmbed(commands.Stats{
		Uptime:       26*time.Hour + 3*time.Minute + 4*time.Second,
		HeapInUse:    5 * 1024 * 1024,
		GoVersion:    "go1.24.1",
		DisgoVersion: "v0.18.15",
		Platform:     "linux amd64",
		Goroutines:   12,
	}, time.Now())

	assert.Equal(t, "📊 ボット統計情報", embed.Title)
	require.Len(t, embed.Fields, 6)
	assert.Equal(t, "`1日 2時間 3分 4秒`", embed.Fields[0].Value)
	assert.Equal(t, "`5.00 MB`", embed.Fields[1].Value)
	assert.Equal(t, "`v0.18.15`", embed.Fields[2].Value)
	assert.Equal(t, "`go1.24.1`", embed.Fields[3].Value)
	assert.Equal(t, "`linux amd64`", embed.Fields[4].Value)
	assert.Equal(t, "`12`", embed.Fields[5].Value)
}

func TestCollectStats(t *testing.T) {
	t.Parallel()

	stats := commands.CollectStats(time.Now().Add(-time.Minute))
	assert.GreaterOrEqual(t, stats.Uptime, time.Minute)
	assert.Positive(t, stats.Goroutines)
	assert.NotEmpty(t, stats.GoVersion)
	assert.NotEmpty(t, stats.Platform)
}

func TestPostBoard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		configured    snowflake.ID
		target        snowflake.ID
		sendErr       error
		wantContains  string
		wantPublished bool
	}{
		{
			name:          "posts into verification channel",
			configured:    verificationChannelID,
			target:        verificationChannelID,
			wantContains:  "✅",
			wantPublished: true,
		},
		{
			name:         "rejects another channel",
			configured:   verificationChannelID,
			target:       701,
			wantContains: "<#700>",
		},
		{
			name:         "verification channel not configured",
			target:       verificationChannelID,
			wantContains: "VERIFICATION_CHANNEL_ID",
		},
		{
			name:         "send failure",
			configured:   verificationChannelID,
			target:       verificationChannelID,
			sendErr:      gateway.ErrPermissionDenied,
			wantContains: "失敗",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gw := gatewaytest.New(guildID, selfID)
			if tt.sendErr != nil {
				gw.Fail(gatewaytest.OpSendMessage, tt.sendErr)
			}
			handler := commands.New(gw, nil, tt.configured, zap.NewNop())

			reply := handler.PostBoard(context.Background(), tt.target, executor)
			assert.Contains(t, reply, tt.wantContains)

			posted := gw.ChannelMessages(tt.target)
			if !tt.wantPublished {
				assert.Empty(t, posted)
				return
			}

			require.Len(t, posted, 1)
			board := posted[0].Create
			require.Len(t, board.Embeds, 1)
			assert.Equal(t, "🔐 サーバー認証", board.Embeds[0].Title)
			require.Len(t, board.Components, 1)
		})
	}
}

func TestPostBoardToleratesGuildNameFailure(t *testing.T) {
	t.Parallel()

	gw := gatewaytest.New(guildID, selfID)
	gw.Fail(gatewaytest.OpGuildName, errors.New("boom"))
	handler := commands.New(gw, nil, verificationChannelID, zap.NewNop())

	reply := handler.PostBoard(context.Background(), verificationChannelID, executor)
	assert.Contains(t, reply, "✅")
	assert.Len(t, gw.ChannelMessages(verificationChannelID), 1)
}

package utils_test

import (
	"testing"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/gatekeeper/internal/bot/utils"
	"github.com/stretchr/testify/assert"
)

func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		maxLength int
		want      string
	}{
		{
			name:      "short string",
			input:     "hello",
			maxLength: 10,
			want:      "hello",
		},
		{
			name:      "long string",
			input:     "hello world this is a long string",
			maxLength: 10,
			want:      "hello w...",
		},
		{
			name:      "exact length",
			input:     "hello",
			maxLength: 5,
			want:      "hello",
		},
		{
			name:      "multi-byte text",
			input:     "荒らし行為を繰り返したため",
			maxLength: 6,
			want:      "荒らし...",
		},
		{
			name:      "tiny limit",
			input:     "abcdef",
			maxLength: 2,
			want:      "ab",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, utils.TruncateString(tt.input, tt.maxLength))
		})
	}
}

func TestUserTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		user discord.User
		want string
	}{
		{
			name: "migrated username",
			user: discord.User{Username: "alice", Discriminator: "0"},
			want: "alice",
		},
		{
			name: "legacy discriminator",
			user: discord.User{Username: "bob", Discriminator: "1234"},
			want: "bob#1234",
		},
		{
			name: "missing discriminator",
			user: discord.User{Username: "carol"},
			want: "carol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, utils.UserTag(tt.user))
		})
	}
}

func TestMentions(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "<@123456789012345678>", utils.UserMention(123456789012345678))
	assert.Equal(t, "<#42>", utils.ChannelMention(42))
}

func TestNormalizeString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "a b c", utils.NormalizeString("a\nb `c`"))
}

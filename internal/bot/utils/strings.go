package utils

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

// TruncateString shortens s to at most maxLength characters, marking the cut with "...".
// Lengths are counted in runes so multi-byte text is never split mid-character.
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-3]) + "..."
}

// UserTag returns the display tag of a user. Accounts on the new username system have
// the discriminator "0" and are shown by username alone.
func UserTag(user discord.User) string {
	if user.Discriminator == "" || user.Discriminator == "0" {
		return user.Username
	}
	return user.Username + "#" + user.Discriminator
}

// UserMention formats a user mention.
func UserMention(id snowflake.ID) string {
	return fmt.Sprintf("<@%s>", id)
}

// ChannelMention formats a channel mention.
func ChannelMention(id snowflake.ID) string {
	return fmt.Sprintf("<#%s>", id)
}

// NormalizeString replaces newlines with spaces and removes backticks to prevent
// markdown formatting issues inside inline code.
func NormalizeString(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "`", "")
}

package ban

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/gatekeeper/internal/bot/constants"
	"github.com/robalyx/gatekeeper/internal/bot/utils"
)

// Record is a single banned identity as shown in the list.
type Record struct {
	UserID snowflake.ID
	Tag    string
	Reason string
}

// RecordsFromBans converts gateway bans into records, keeping their order.
func RecordsFromBans(bans []discord.Ban) []Record {
	records := make([]Record, 0, len(bans))
	for _, b := range bans {
		reason := DefaultReason
		if b.Reason != nil && strings.TrimSpace(*b.Reason) != "" {
			reason = *b.Reason
		}
		records = append(records, Record{
			UserID: b.User.ID,
			Tag:    utils.UserTag(b.User),
			Reason: reason,
		})
	}
	return records
}

// ListDocument is the rendered ban list.
type ListDocument struct {
	Title   string
	Summary string
	Chunks  []string
	Footer  string
}

// RenderList builds the ban list document from records in the order given.
func RenderList(records []Record, guildName string) ListDocument {
	doc := ListDocument{
		Title:  "🚫 BANユーザーリスト",
		Footer: strings.TrimSpace(guildName + " BAN管理システム"),
	}

	if len(records) == 0 {
		doc.Summary = "BANされているユーザーはいません。"
		return doc
	}
	doc.Summary = fmt.Sprintf("現在 **%d人** がBANされています。", len(records))

	shown := records
	if len(shown) > constants.BanListMaxDisplay {
		shown = shown[:constants.BanListMaxDisplay]
	}

	items := make([]string, 0, len(shown)+1)
	for i, r := range shown {
		items = append(items, formatRecord(i+1, r))
	}
	if hidden := len(records) - len(shown); hidden > 0 {
		items = append(items, fmt.Sprintf("\n... および **%d件** のユーザー", hidden))
	}

	doc.Chunks = packChunks(items, constants.BanListChunkCeiling)
	return doc
}

// Embed converts the document into a platform embed.
func (d ListDocument) Embed(now time.Time) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle(d.Title).
		SetDescription(d.Summary).
		SetColor(constants.ErrorEmbedColor).
		SetFooter(d.Footer, "").
		SetTimestamp(now)

	for i, chunk := range d.Chunks {
		name := constants.InvisibleFieldName
		if i == 0 {
			name = "📋 ユーザー一覧"
		}
		builder.AddField(name, chunk, false)
	}

	return builder.Build()
}

// formatRecord renders a three-line block. The reason is flattened to one line.
func formatRecord(index int, r Record) string {
	return fmt.Sprintf("%d. **%s** (%s)\n   └ ID: `%s`\n   └ 理由: %s",
		index,
		r.Tag,
		utils.UserMention(r.UserID),
		r.UserID,
		utils.TruncateString(utils.NormalizeString(r.Reason), constants.BanListMaxReasonSize),
	)
}

// packChunks greedily groups items into chunks shorter than ceiling runes. An item is never
// split; a single item larger than the ceiling gets a chunk of its own.
func packChunks(items []string, ceiling int) []string {
	var (
		chunks  []string
		current strings.Builder
	)

	flush := func() {
		if chunk := strings.TrimSpace(current.String()); chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, item := range items {
		block := item + "\n\n"
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(block) > ceiling {
			flush()
		}
		current.WriteString(block)
	}
	flush()

	return chunks
}

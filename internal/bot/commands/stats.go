package commands

import (
	"fmt"
	"runtime"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/robalyx/gatekeeper/internal/bot/constants"
	"github.com/robalyx/gatekeeper/internal/bot/utils"
)

// Stats is a snapshot of the process shown by the stats command.
type Stats struct {
	Uptime       time.Duration
	HeapInUse    uint64
	GoVersion    string
	DisgoVersion string
	Platform     string
	Goroutines   int
}

// CollectStats reads the current process statistics.
func CollectStats(started time.Time) Stats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return Stats{
		Uptime:       time.Since(started),
		HeapInUse:    mem.HeapInuse,
		GoVersion:    runtime.Version(),
		DisgoVersion: disgo.Version,
		Platform:     runtime.GOOS + " " + runtime.GOARCH,
		Goroutines:   runtime.NumGoroutine(),
	}
}

// StatsEmbed renders a statistics snapshot.
func StatsEmbed(stats Stats, now time.Time) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("📊 ボット統計情報").
		AddField("稼働時間", fmt.Sprintf("`%s`", utils.FormatUptime(stats.Uptime)), false).
		AddField("メモリ使用量", fmt.Sprintf("`%s`", utils.FormatMegabytes(stats.HeapInUse)), true).
		AddField("disgo バージョン", fmt.Sprintf("`%s`", stats.DisgoVersion), true).
		AddField("Go バージョン", fmt.Sprintf("`%s`", stats.GoVersion), true).
		AddField("プラットフォーム", fmt.Sprintf("`%s`", stats.Platform), true).
		AddField("ゴルーチン数", fmt.Sprintf("`%d`", stats.Goroutines), true).
		SetColor(constants.InfoEmbedColor).
		SetFooter("Bot Statistics", "").
		SetTimestamp(now).
		Build()
}

func (h *Handler) stats(event *events.ApplicationCommandInteractionCreate) error {
	embed := StatsEmbed(CollectStats(h.started), time.Now())
	if err := event.CreateMessage(discord.NewMessageCreateBuilder().SetEmbeds(embed).Build()); err != nil {
		return fmt.Errorf("failed to send stats: %w", err)
	}
	return nil
}

package commands

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/robalyx/gatekeeper/internal/bot/constants"
)

// LatencyColor grades a round trip: green under 200ms, amber under 500ms, red otherwise.
func LatencyColor(latency time.Duration) int {
	switch {
	case latency < 200*time.Millisecond:
		return constants.SuccessEmbedColor
	case latency < 500*time.Millisecond:
		return constants.PendingEmbedColor
	default:
		return constants.ErrorEmbedColor
	}
}

// PingEmbed shows the REST round trip and the gateway heartbeat latency.
func PingEmbed(roundTrip, heartbeat time.Duration, now time.Time) discord.Embed {
	return discord.NewEmbedBuilder().
		SetTitle("🏓 Pong!").
		AddField("ボットのレイテンシ", fmt.Sprintf("`%dms`", roundTrip.Milliseconds()), true).
		AddField("APIのレイテンシ", fmt.Sprintf("`%dms`", heartbeat.Milliseconds()), true).
		SetColor(LatencyColor(roundTrip)).
		SetTimestamp(now).
		Build()
}

func (h *Handler) ping(event *events.ApplicationCommandInteractionCreate) error {
	start := time.Now()
	if err := event.CreateMessage(discord.MessageCreate{Content: "Pinging..."}); err != nil {
		return fmt.Errorf("failed to send ping reply: %w", err)
	}
	roundTrip := time.Since(start)

	var heartbeat time.Duration
	if gw := event.Client().Gateway(); gw != nil {
		heartbeat = gw.Latency()
	}

	embed := PingEmbed(roundTrip, heartbeat, time.Now())
	_, err := event.Client().Rest().UpdateInteractionResponse(event.ApplicationID(), event.Token(),
		discord.NewMessageUpdateBuilder().
			SetContent("").
			SetEmbeds(embed).
			Build())
	if err != nil {
		return fmt.Errorf("failed to update ping reply: %w", err)
	}

	return nil
}

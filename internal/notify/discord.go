package notify

import (
	"context"
	"fmt"
	"net/http"
)

// discordDescriptionMax is Discord's embed description limit.
const discordDescriptionMax = 4096

// DiscordSender posts alerts to a webhook as a single embed.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, client: newHTTPClient()}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

// Send posts title and message as an embed. Discord answers 204 on success.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	if len(message) > discordDescriptionMax {
		message = message[:discordDescriptionMax-3] + "..."
	}
	payload := map[string]any{
		"embeds": []discordEmbed{{Title: title, Description: message, Color: 0x2ecc71}},
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string { return "discord" }

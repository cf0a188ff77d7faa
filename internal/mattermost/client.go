// Package mattermost provides webhook client for sending notifications to Mattermost.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lawnpro/crew-ops/internal/config"
	"github.com/lawnpro/crew-ops/pkg/logger"
)

const botUsername = "Quest Board"

// Client handles Mattermost webhook notifications.
type Client struct {
	webhookURL string
	channel    string
	enabled    bool
	httpClient *http.Client
	log        *logger.Logger
}

// NewClient creates a new Mattermost client.
func NewClient(cfg *config.MattermostConfig, log *logger.Logger) *Client {
	return &Client{
		webhookURL: cfg.WebhookURL,
		channel:    cfg.Channel,
		enabled:    cfg.Enabled,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Message represents a Mattermost message payload.
type Message struct {
	Channel     string       `json:"channel,omitempty"`
	Username    string       `json:"username,omitempty"`
	Text        string       `json:"text,omitempty"`
	IconURL     string       `json:"icon_url,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment represents a message attachment.
type Attachment struct {
	Fallback string  `json:"fallback,omitempty"`
	Color    string  `json:"color,omitempty"`
	Pretext  string  `json:"pretext,omitempty"`
	Title    string  `json:"title,omitempty"`
	Text     string  `json:"text,omitempty"`
	Fields   []Field `json:"fields,omitempty"`
	Footer   string  `json:"footer,omitempty"`
}

// Field represents a message field.
type Field struct {
	Short bool   `json:"short"`
	Title string `json:"title"`
	Value string `json:"value"`
}

// SendMessage sends a message to Mattermost.
func (c *Client) SendMessage(ctx context.Context, msg *Message) error {
	if !c.enabled {
		c.log.Debug().Msg("Mattermost is disabled, skipping message")
		return nil
	}

	if msg.Channel == "" {
		msg.Channel = c.channel
	}
	if msg.Username == "" {
		msg.Username = botUsername
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to Mattermost: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mattermost returned status %d", resp.StatusCode)
	}

	c.log.Debug().
		Str("channel", msg.Channel).
		Msg("Sent message to Mattermost")

	return nil
}

// SendLevelUp announces that a crew member reached a new level.
func (c *Client) SendLevelUp(ctx context.Context, name, level string, totalXP int) error {
	return c.SendMessage(ctx, &Message{
		Text: fmt.Sprintf("🎉 **%s** reached **%s** with %d XP!", name, level, totalXP),
	})
}

// SendBountyCompleted announces a claimed bounty and its reward.
func (c *Client) SendBountyCompleted(ctx context.Context, name, questTitle, reward string, xp int) error {
	text := fmt.Sprintf("💰 **%s** claimed the bounty **%s** (+%d XP)", name, questTitle, xp)
	if reward != "" {
		text += fmt.Sprintf("\nReward: %s", reward)
	}
	return c.SendMessage(ctx, &Message{Text: text})
}

// SendProcedurePublished shares a newly drafted procedure as an attachment.
func (c *Client) SendProcedurePublished(ctx context.Context, title, author, markdown string) error {
	return c.SendMessage(ctx, &Message{
		Text: "📋 A new procedure is ready to read and sign.",
		Attachments: []Attachment{{
			Fallback: "New procedure: " + title,
			Color:    "#2e7d32",
			Title:    title,
			Text:     markdown,
			Footer:   "Drafted by " + author,
		}},
	})
}

// DigestEntry is one leaderboard line in the daily digest.
type DigestEntry struct {
	Name   string
	XP     int
	Level  string
	Streak int
}

// TeamQuestStatus is the progress of an open team quest.
type TeamQuestStatus struct {
	Title    string
	Count    int
	Target   int
	Progress float64
}

// Digest is the daily quest board summary.
type Digest struct {
	Date        string
	Completions int
	Leaders     []DigestEntry
	TeamQuests  []TeamQuestStatus
}

// SendDailyDigest posts the daily quest board summary.
func (c *Client) SendDailyDigest(ctx context.Context, digest Digest) error {
	var b strings.Builder
	fmt.Fprintf(&b, "### 🌱 Quest Board Digest for %s\n\n", digest.Date)
	fmt.Fprintf(&b, "Quests completed today: **%d**\n", digest.Completions)

	if len(digest.Leaders) > 0 {
		b.WriteString("\n**This week's leaders**\n\n")
		for i, entry := range digest.Leaders {
			streak := ""
			if entry.Streak > 1 {
				streak = fmt.Sprintf(" 🔥 %d days", entry.Streak)
			}
			fmt.Fprintf(&b, "%d. %s (%s) %d XP%s\n", i+1, entry.Name, entry.Level, entry.XP, streak)
		}
	}

	if len(digest.TeamQuests) > 0 {
		b.WriteString("\n**Team quests still open**\n\n")
		for _, q := range digest.TeamQuests {
			fmt.Fprintf(&b, "• %s: %d/%d (%.0f%%)\n", q.Title, q.Count, q.Target, q.Progress)
		}
	}

	return c.SendMessage(ctx, &Message{Text: b.String()})
}

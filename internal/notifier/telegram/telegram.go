package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/newthinker/chartgen/internal/core"
	"github.com/newthinker/chartgen/internal/notifier"
)

const defaultAPIBase = "https://api.telegram.org"

// maxListed caps how many failed symbols are spelled out in one message
const maxListed = 20

// Telegram implements the Notifier interface for Telegram Bot API
type Telegram struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

// New creates a new Telegram notifier
func New(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

func (t *Telegram) Init(cfg notifier.Config) error {
	if token, ok := cfg.Params["bot_token"].(string); ok {
		t.botToken = token
	}
	if chatID, ok := cfg.Params["chat_id"].(string); ok {
		t.chatID = chatID
	}
	if base, ok := cfg.Params["api_base"].(string); ok && base != "" {
		t.apiBase = base
	}

	if t.botToken == "" {
		return fmt.Errorf("telegram: bot_token is required")
	}
	if t.chatID == "" {
		return fmt.Errorf("telegram: chat_id is required")
	}
	if t.apiBase == "" {
		t.apiBase = defaultAPIBase
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: 30 * time.Second}
	}

	return nil
}

// Send posts a plain-text digest of the run
func (t *Telegram) Send(ctx context.Context, summary core.RunSummary) error {
	return t.sendMessage(ctx, t.formatSummary(summary))
}

// Alert posts text as its own message
func (t *Telegram) Alert(ctx context.Context, text string) error {
	return t.sendMessage(ctx, "🚨 "+text)
}

func (t *Telegram) formatSummary(s core.RunSummary) string {
	var sb strings.Builder

	icon := "✅"
	if s.Failed > 0 {
		icon = "⚠️"
	}
	sb.WriteString(fmt.Sprintf("%s Chart run %s\n", icon, s.FinishedAt.Format("2006-01-02 15:04")))
	sb.WriteString(fmt.Sprintf("📊 %d symbols: %d saved, %d no data, %d failed\n", s.Total, s.Saved, s.NoData, s.Failed))
	sb.WriteString(fmt.Sprintf("⏱ %s", s.Duration().Round(time.Second)))

	listed := 0
	for _, o := range s.Outcomes {
		if o.Status != core.StatusFailed {
			continue
		}
		if listed == maxListed {
			sb.WriteString(fmt.Sprintf("\n… and %d more", s.Failed-listed))
			break
		}
		sb.WriteString(fmt.Sprintf("\n❌ %s: %s", o.Symbol, o.Error))
		listed++
	}

	return sb.String()
}

func (t *Telegram) sendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)

	payload := map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		return fmt.Errorf("telegram: API error (status %d): %v", resp.StatusCode, result)
	}

	return nil
}

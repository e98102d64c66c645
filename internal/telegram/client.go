// Package telegram provides a client for sending anomaly alerts via the
// Telegram Bot API. It formats tick assessments into human-readable messages
// and handles delivery with retry logic for reliability.
package telegram

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/guardian-iot/guardian-sim/internal/models"
)

// Client handles Telegram notifications
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// SendAlert sends a formatted alert for one tick assessment
func (c *Client) SendAlert(assessment models.TickAssessment) error {
	msg := tgbotapi.NewMessage(c.chatID, formatAlert(assessment))
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		_, err := c.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}

	return fmt.Errorf("failed to send message after %d retries: %w", c.maxRetries, lastErr)
}

// formatAlert formats a tick assessment into a Telegram message
func formatAlert(assessment models.TickAssessment) string {
	message := fmt.Sprintf("*Guardian Alert: %s*\n\n", escapeMarkdownV2(string(assessment.CombinedSeverity)))
	message += fmt.Sprintf("Detected: %s\n\n", escapeMarkdownV2(assessment.Timestamp))

	if len(assessment.WaterAnomaly.Anomalies) > 0 {
		message += fmt.Sprintf("*Water* \\(%s, %s\\)\n",
			escapeMarkdownV2(assessment.WaterAnomaly.SensorID),
			escapeMarkdownV2(string(assessment.WaterAnomaly.Severity)))
		message += formatAnomalies(assessment.WaterAnomaly.Anomalies)
	}

	if len(assessment.FundAnomaly.Anomalies) > 0 || assessment.FundAnomaly.Severity != models.SeverityLow {
		message += fmt.Sprintf("*Funds* \\(%s, %s, %s\\)\n",
			escapeMarkdownV2(assessment.FundAnomaly.FundID),
			escapeMarkdownV2(string(assessment.FundAnomaly.Department)),
			escapeMarkdownV2(string(assessment.FundAnomaly.Severity)))
		message += formatAnomalies(assessment.FundAnomaly.Anomalies)
	}

	return message
}

// formatAnomalies renders one line per triggered rule
func formatAnomalies(anomalies []models.Anomaly) string {
	var out string
	for _, a := range anomalies {
		out += fmt.Sprintf("  • %s: %s\n",
			escapeMarkdownV2(string(a.Code)),
			escapeMarkdownV2(a.Message))
	}
	return out + "\n"
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	// Characters that need escaping in MarkdownV2:
	// _ * [ ] ( ) ~ ` > # + - = | { } . !

	result := ""
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			result += "\\" + string(char)
		default:
			result += string(char)
		}
	}
	return result
}

package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tis24dev/diskwatch/internal/logging"
	"github.com/tis24dev/diskwatch/internal/version"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	Enabled   bool
	BotToken  string
	ChatID    string
	APIURL    string
	ParseMode string
	Timeout   time.Duration
}

// TelegramNotifier implements the Notifier interface for Telegram
type TelegramNotifier struct {
	config TelegramConfig
	logger *logging.Logger
	client *http.Client
}

var (
	tokenRegex  = regexp.MustCompile(`^[0-9]+:[A-Za-z0-9_-]{20,}$`)
	chatIDRegex = regexp.MustCompile(`^(-?[0-9]+|@[A-Za-z0-9_]{4,})$`)
)

// telegramResponse is the envelope every Bot API call returns.
type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// NewTelegramNotifier creates a new Telegram notifier. Malformed credentials
// are logged; the notifier stays disabled for this run.
func NewTelegramNotifier(config TelegramConfig, logger *logging.Logger) *TelegramNotifier {
	if config.APIURL == "" {
		config.APIURL = defaultTelegramAPI
	}
	config.APIURL = strings.TrimRight(config.APIURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.ParseMode == "" {
		config.ParseMode = ParseModeMarkdown
	}

	t := &TelegramNotifier{
		config: config,
		logger: logger,
		client: &http.Client{Timeout: config.Timeout},
	}

	if config.Enabled {
		switch {
		case config.BotToken == "" || config.ChatID == "":
			logger.Warning("Telegram enabled but TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID is missing, notifications skipped")
		case !tokenRegex.MatchString(config.BotToken):
			logger.Warning("Invalid TELEGRAM_BOT_TOKEN format (expected digits:token)")
		case !chatIDRegex.MatchString(config.ChatID):
			logger.Warning("Invalid TELEGRAM_CHAT_ID format (expected numeric id or @channel)")
		}
	}
	return t
}

// Name returns the notifier name
func (t *TelegramNotifier) Name() string {
	return "Telegram"
}

// IsEnabled reports whether Telegram is switched on with usable credentials.
func (t *TelegramNotifier) IsEnabled() bool {
	return t.config.Enabled &&
		tokenRegex.MatchString(t.config.BotToken) &&
		chatIDRegex.MatchString(t.config.ChatID)
}

// Send posts one message for the report. No retries are attempted.
func (t *TelegramNotifier) Send(ctx context.Context, data *NotificationData) (*NotificationResult, error) {
	startTime := time.Now()
	result := &NotificationResult{
		Method:   "telegram",
		Metadata: make(map[string]interface{}),
	}

	if !t.IsEnabled() {
		t.logger.Debug("Telegram notifications disabled or not configured")
		result.Error = fmt.Errorf("telegram not configured")
		result.Duration = time.Since(startTime)
		return result, nil
	}
	if data == nil || data.Report == nil {
		return nil, fmt.Errorf("telegram: nothing to send")
	}

	message := BuildMessage(data, t.config.ParseMode)
	result.Metadata["length"] = len([]rune(message))

	status, err := t.sendToTelegram(ctx, message)
	result.Metadata["http_status"] = status
	result.Duration = time.Since(startTime)
	if err != nil {
		t.logger.Warning("Failed to send Telegram notification: %v", err)
		result.Error = err
		return result, nil
	}

	t.logger.Debug("Telegram API confirmed message delivery in %s", FormatDuration(result.Duration))
	result.Success = true
	return result, nil
}

// sendToTelegram posts the message to sendMessage and returns the HTTP status.
func (t *TelegramNotifier) sendToTelegram(ctx context.Context, message string) (int, error) {
	apiURL := fmt.Sprintf("%s/bot%s/sendMessage", t.config.APIURL, t.config.BotToken)

	formData := url.Values{}
	formData.Set("chat_id", t.config.ChatID)
	formData.Set("text", message)
	if t.config.ParseMode != "" && t.config.ParseMode != "None" {
		formData.Set("parse_mode", t.config.ParseMode)
	}
	formData.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, strings.NewReader(formData.Encode()))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("api request failed: %s", t.redact(err.Error()))
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		var apiResp telegramResponse
		if json.Unmarshal(body, &apiResp) == nil && apiResp.Description != "" {
			return resp.StatusCode, fmt.Errorf("telegram api returned status %d: %s", resp.StatusCode, apiResp.Description)
		}
		return resp.StatusCode, fmt.Errorf("telegram api returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp.StatusCode, nil
}

// redact removes the bot token from error text; url.Error embeds the URL.
func (t *TelegramNotifier) redact(s string) string {
	if t.config.BotToken == "" {
		return s
	}
	return strings.ReplaceAll(s, t.config.BotToken, "<token>")
}

package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"auction-advisor/internal/market"
)

// Notification wraps an alert for outbound delivery.
type Notification struct {
	SessionID string
	Alert     market.SmartAlert
	// Silent asks the channel to deliver without sound.
	Silent   bool
	Channels []string
}

// Notifier delivers notifications to one channel.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramOptions configure the Telegram notifier.
type TelegramOptions struct {
	BotToken      string
	ChatID        string
	APIBase       string
	Timeout       time.Duration
	RatePerMinute int
	MaxRetries    int
	// RetryInterval is the first backoff interval; it doubles per attempt.
	RetryInterval time.Duration
}

// TelegramNotifier pushes alerts through the Bot API sendMessage call.
type TelegramNotifier struct {
	botToken      string
	chatID        string
	baseURL       string
	client        *http.Client
	limiter       *rate.Limiter
	maxRetries    int
	retryInterval time.Duration
	logger        zerolog.Logger
}

// NewTelegramNotifier constructs the Telegram notifier.
func NewTelegramNotifier(opts TelegramOptions, logger zerolog.Logger) *TelegramNotifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.APIBase == "" {
		opts.APIBase = "https://api.telegram.org"
	}
	if opts.RatePerMinute <= 0 {
		opts.RatePerMinute = 20
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 500 * time.Millisecond
	}

	return &TelegramNotifier{
		botToken:      opts.BotToken,
		chatID:        opts.ChatID,
		baseURL:       strings.TrimRight(opts.APIBase, "/"),
		client:        &http.Client{Timeout: opts.Timeout},
		limiter:       rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), opts.RatePerMinute),
		maxRetries:    opts.MaxRetries,
		retryInterval: opts.RetryInterval,
		logger:        logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// statusError is a non-2xx answer from the Bot API.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("telegram status %d", e.code)
}

// Notify sends one message, retrying transport failures, 429 and 5xx answers
// with exponential backoff.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"chat_id":              n.chatID,
		"text":                 RenderMessage(note.Alert),
		"disable_notification": note.Silent,
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	attempts := 0
	operation := func() error {
		attempts++
		return n.send(ctx, url, body)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = n.retryInterval
	policy.MaxElapsedTime = 30 * time.Second
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(n.maxRetries)), ctx)

	if err := backoff.Retry(operation, retry); err != nil {
		return fmt.Errorf("send telegram message after %d attempt(s): %w", attempts, err)
	}

	n.logger.Info().Str("alert_id", note.Alert.ID).
		Str("level", string(note.Alert.Level)).
		Bool("silent", note.Silent).
		Int("attempts", attempts).
		Msg("alert delivered (telegram)")
	return nil
}

func (n *TelegramNotifier) send(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create telegram request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := &statusError{code: resp.StatusCode}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return serr
		}
		return backoff.Permanent(serr)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return backoff.Permanent(errors.New("telegram returned ok=false: " + result.Description))
	}
	return nil
}

// RenderMessage formats an alert as plain text.
func RenderMessage(a market.SmartAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Auction %s] %s\n", strings.ToUpper(string(a.Level)), a.Title)
	if a.Message != "" {
		b.WriteString(a.Message)
		b.WriteString("\n")
	}
	if a.Suggestion != "" {
		fmt.Fprintf(&b, "Suggestion: %s\n", a.Suggestion)
	}
	fmt.Fprintf(&b, "Priority %d/10, confidence %d%%", a.Priority, a.Confidence)
	if a.Metadata.Reasoning != "" {
		fmt.Fprintf(&b, "\n%s", a.Metadata.Reasoning)
	}
	return b.String()
}

// LogNotifier writes notifications to the log. It backs the "log" channel.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs a log-backed notifier.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify logs the alert at warn level.
func (n *LogNotifier) Notify(_ context.Context, note Notification) error {
	a := note.Alert
	n.logger.Warn().Str("alert_id", a.ID).
		Str("level", string(a.Level)).
		Str("category", string(a.Category)).
		Int("priority", a.Priority).
		Msg(a.Title)
	return nil
}

var (
	_ Notifier = (*TelegramNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)

// Package notify delivers free-text status messages to operators. Delivery is
// strictly best-effort: a failure here never affects distribution.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Notifier accepts a status message, fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, text string)
}

// Nop discards all messages.
type Nop struct{}

func (Nop) Notify(context.Context, string) {}

// Telegram posts messages to a chat through the bot API. Messages over the
// bot rate budget are dropped rather than queued.
type Telegram struct {
	endpoint string
	chatID   string
	client   *http.Client
	limiter  *rate.Limiter
	log      *logrus.Entry
}

const telegramAPI = "https://api.telegram.org"

func NewTelegram(botToken, chatID string) *Telegram {
	return newTelegram(telegramAPI, botToken, chatID)
}

func newTelegram(base, botToken, chatID string) *Telegram {
	return &Telegram{
		endpoint: fmt.Sprintf("%v/bot%v/sendMessage", base, botToken),
		chatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
		// bot API allows roughly one message per second per chat
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		log:     logrus.WithField("module", "notify"),
	}
}

func (t *Telegram) Notify(ctx context.Context, text string) {
	if !t.limiter.Allow() {
		t.log.Debug("notification dropped, rate budget exceeded")
		return
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		t.log.Warnf("marshal notification: %v", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
	if err != nil {
		t.log.Warnf("build notification request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.log.Warnf("send notification: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.log.Warnf("send notification: unexpected status %v", resp.Status)
	}
}

// Package notify implements the Notifier external collaborator as a
// Telegram chat sender.
package notify

import (
	"context"
	"strings"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"screener-backend/internal/domain"
)

const (
	maxMessageLen  = 4000
	minSendSpacing = 400 * time.Millisecond
)

// Telegram sends notifications to a single chat, splitting on line
// boundaries to stay under maxMessageLen and pacing sends at least
// minSendSpacing apart.
type Telegram struct {
	bot      *tgbot.BotAPI
	chatID   int64
	lastSent time.Time
}

// NewTelegram builds a Telegram notifier. token/chatID absent yields a
// nil-safe no-op notifier.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

// Notify sends text, splitting it into <=maxMessageLen chunks on line
// boundaries and pacing each send at least minSendSpacing apart.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if t == nil || t.bot == nil {
		return nil
	}

	for _, chunk := range splitOnLines(text, maxMessageLen) {
		if wait := minSendSpacing - time.Since(t.lastSent); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, chunk)); err != nil {
			return err
		}
		t.lastSent = time.Now()
	}
	return nil
}

func splitOnLines(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if current.Len()+len(line)+1 > limit && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

var _ domain.Notifier = (*Telegram)(nil)

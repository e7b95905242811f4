// Package notify delivers operator messages over the Telegram Bot API.
package notify

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"slotwatch/pkg/logx"
)

type Config struct {
	Token  string
	ChatID int64

	// RatePerSec caps outgoing sends; Telegram throttles bots that burst.
	RatePerSec int
}

// Telegram sends plain-text messages to a single configured chat. It only
// sends; there is no inbound update handling.
type Telegram struct {
	bot     *tele.Bot
	chatID  int64
	limiter *rate.Limiter
	log     logx.Logger
}

func NewTelegram(cfg Config, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	// No poller: this bot only ever sends.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}

	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &Telegram{
		bot:     b,
		chatID:  cfg.ChatID,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}, nil
}

// Send delivers text to the configured chat. silent suppresses the audible
// alert on the operator's device.
func (t *Telegram) Send(ctx context.Context, text string, silent bool) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	chat := &tele.Chat{ID: t.chatID}
	_, err := t.bot.Send(chat, text, &tele.SendOptions{
		DisableNotification:   silent,
		DisableWebPagePreview: true,
	})
	if err != nil {
		t.log.Warn("telegram send failed", logx.Int64("chat_id", t.chatID), logx.Err(err))
		return err
	}
	t.log.Debug("telegram message sent", logx.Int64("chat_id", t.chatID), logx.Bool("silent", silent))
	return nil
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"rewards-ledger-bot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Bot connects a Handler to the Telegram Bot API through long polling. It
// also implements Sender, so notifications can be delivered before Run starts.
type Bot struct {
	api           *tgbotapi.BotAPI
	username      string
	updateTimeout int

	userLocks sync.Map // int64 -> *sync.Mutex
	wg        sync.WaitGroup
}

func NewBot(cfg models.BotConfig) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram bot token is required")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to telegram: %w", err)
	}
	api.Debug = cfg.Debug

	username := cfg.Username
	if username == "" {
		username = api.Self.UserName
	}
	timeout := cfg.UpdateTimeout
	if timeout <= 0 {
		timeout = 60
	}

	zap.L().Info("Telegram bot authorized", zap.String("username", username))
	return &Bot{api: api, username: username, updateTimeout: timeout}, nil
}

// Username is the handle used in referral links
func (b *Bot) Username() string {
	return b.username
}

// Run consumes updates until ctx is cancelled, then waits for in-flight handlers
func (b *Bot) Run(ctx context.Context, handler *Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.updateTimeout
	updates := b.api.GetUpdatesChan(u)

	zap.L().Info("Listening for Telegram updates")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			zap.L().Info("Telegram update loop stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return errors.New("telegram update channel closed")
			}
			b.wg.Add(1)
			go func(update tgbotapi.Update) {
				defer b.wg.Done()
				b.dispatch(ctx, handler, update)
			}(update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, handler *Handler, update tgbotapi.Update) {
	req, callbackId, ok := toRequest(update)
	if !ok {
		return
	}
	if callbackId != "" {
		if _, err := b.api.Request(tgbotapi.NewCallback(callbackId, "")); err != nil {
			zap.L().Debug("Failed to answer callback", zap.Error(err))
		}
	}

	// One update at a time per user keeps session transitions ordered.
	lock, _ := b.userLocks.LoadOrStore(req.UserId, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("Panic while handling update",
				zap.Int64("user_id", req.UserId),
				zap.Any("panic", r))
			_ = b.Send(ctx, Reply{ChatId: req.ChatId, Text: "⚠️ An error occurred. Please try again later."})
		}
	}()

	for _, reply := range handler.Handle(ctx, req) {
		if err := b.Send(ctx, reply); err != nil {
			zap.L().Error("Failed to send reply",
				zap.Int64("chat_id", reply.ChatId),
				zap.Error(err))
		}
	}
}

func toRequest(update tgbotapi.Update) (Request, string, bool) {
	switch {
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		if q.From == nil || q.Message == nil || q.Message.Chat == nil {
			return Request{}, "", false
		}
		action, err := ParseAction(q.Data)
		if err != nil {
			zap.L().Debug("Unrecognized callback", zap.String("data", q.Data), zap.Error(err))
			action = Action{Kind: ActionUnknown}
		}
		return Request{
			UserId:    q.From.ID,
			ChatId:    q.Message.Chat.ID,
			Username:  displayName(q.From),
			MessageId: q.Message.MessageID,
			Callback:  &action,
		}, q.ID, true

	case update.Message != nil:
		m := update.Message
		if m.From == nil || m.Chat == nil {
			return Request{}, "", false
		}
		req := Request{
			UserId:   m.From.ID,
			ChatId:   m.Chat.ID,
			Username: displayName(m.From),
		}
		if m.IsCommand() {
			req.Command = m.Command()
			req.Args = m.CommandArguments()
		} else {
			req.Text = m.Text
		}
		return req, "", true
	}
	return Request{}, "", false
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return u.FirstName
}

// Send implements Sender. A Markdown reply that Telegram refuses to parse is
// resent as plain text.
func (b *Bot) Send(_ context.Context, reply Reply) error {
	err := b.send(reply)
	if err != nil && reply.Markdown {
		zap.L().Debug("Markdown reply rejected, retrying as plain text", zap.Error(err))
		reply.Markdown = false
		err = b.send(reply)
	}
	return err
}

func (b *Bot) send(reply Reply) error {
	markup := keyboard(reply.Buttons)

	if reply.EditMessageId != 0 {
		edit := tgbotapi.NewEditMessageText(reply.ChatId, reply.EditMessageId, reply.Text)
		edit.ReplyMarkup = markup
		if reply.Markdown {
			edit.ParseMode = tgbotapi.ModeMarkdown
		}
		_, err := b.api.Request(edit)
		return err
	}

	msg := tgbotapi.NewMessage(reply.ChatId, reply.Text)
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	if reply.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	_, err := b.api.Send(msg)
	return err
}

func keyboard(buttons [][]Button) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		out := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			if btn.Url != "" {
				out = append(out, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.Url))
			} else {
				out = append(out, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Action.Encode()))
			}
		}
		rows = append(rows, out)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

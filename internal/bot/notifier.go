package bot

import (
	"context"
	"errors"
	"fmt"

	"rewards-ledger-bot/internal/models"

	"go.uber.org/zap"
)

// Sender delivers a reply through some chat transport
type Sender interface {
	Send(ctx context.Context, reply Reply) error
}

// Notifier pushes workflow events to users and administrators. Private chat
// ids equal user ids, so users are addressed directly.
type Notifier struct {
	sender Sender
	admins []int64
}

func NewNotifier(sender Sender, adminIds []int64) *Notifier {
	return &Notifier{sender: sender, admins: adminIds}
}

func (n *Notifier) NotifyWithdrawalRequested(ctx context.Context, req models.WithdrawalRequest) error {
	if len(n.admins) == 0 {
		zap.L().Warn("No administrators configured for withdrawal notifications",
			zap.Int64("request_id", req.Id))
		return nil
	}

	var errs []error
	for _, adminId := range n.admins {
		err := n.sender.Send(ctx, Reply{
			ChatId:   adminId,
			Text:     withdrawalRequestedAdminText(req),
			Buttons:  withdrawalAdminButtons(req.Id),
			Markdown: true,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("admin %d: %w", adminId, err))
		}
	}
	return errors.Join(errs...)
}

func (n *Notifier) NotifyWithdrawalProcessed(ctx context.Context, req models.WithdrawalRequest) error {
	return n.sender.Send(ctx, Reply{
		ChatId:   req.UserId,
		Text:     withdrawalProcessedUserText(req),
		Markdown: req.Status == models.WithdrawalStatusCompleted,
	})
}

func (n *Notifier) NotifyDepositConfirmed(ctx context.Context, c models.DepositConfirmation) error {
	return n.sender.Send(ctx, Reply{
		ChatId:  c.Invoice.UserId,
		Text:    confirmationText(&c),
		Buttons: [][]Button{{actionButton("📊 My Account", ActionAccount)}},
	})
}

// LogSender writes replies to the log instead of a chat. Used where no bot
// token is available.
type LogSender struct{}

func (LogSender) Send(_ context.Context, reply Reply) error {
	zap.L().Info("Notification",
		zap.Int64("chat_id", reply.ChatId),
		zap.String("text", reply.Text))
	return nil
}

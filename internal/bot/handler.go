package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rewards-ledger-bot/internal/bonus"
	"rewards-ledger-bot/internal/cryptopay"
	"rewards-ledger-bot/internal/deposit"
	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/store"
	"rewards-ledger-bot/internal/withdrawal"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const adminListLimit = 10

type Accounts interface {
	RegisterUser(ctx context.Context, userId int64, username string, referrerId *int64) (*models.RegistrationResult, error)
	GetAccount(ctx context.Context, userId int64) (*models.AccountSummary, error)
	GetReferrals(ctx context.Context, userId int64) (*models.ReferralSummary, error)
}

type Bonuses interface {
	Status(ctx context.Context, userId int64) (*models.BonusStatus, error)
	Claim(ctx context.Context, userId int64) (*models.ClaimResult, error)
}

type Withdrawals interface {
	CheckEligibility(ctx context.Context, userId int64) (*withdrawal.Eligibility, error)
	Quote(ctx context.Context, userId int64, symbol string) (*withdrawal.Quote, error)
	ValidateWalletAddress(address string) error
	Request(ctx context.Context, params withdrawal.RequestParams) (*models.WithdrawalResult, error)
	Approve(ctx context.Context, requestId int64) (*models.WithdrawalRequest, error)
	Reject(ctx context.Context, requestId int64) (*models.WithdrawalRequest, error)
	ListPending(ctx context.Context, limit int) ([]models.WithdrawalRequest, error)
}

type Deposits interface {
	CreateInvoice(ctx context.Context, userId int64, symbol string, amount decimal.Decimal) (*models.PaymentInvoice, error)
	Check(ctx context.Context, userId, invoiceId int64) (*models.InvoiceCheck, error)
	DeleteInvoice(ctx context.Context, invoiceId int64) error
	ListActive(ctx context.Context, limit, offset int) ([]models.PaymentInvoice, error)
}

// Request is one inbound chat event. Exactly one of Command, Callback or Text
// is meaningful.
type Request struct {
	UserId    int64
	ChatId    int64
	Username  string
	MessageId int

	Command string
	Args    string

	Callback *Action
	Text     string
}

type HandlerConfig struct {
	Accounts    Accounts
	Bonuses     Bonuses
	Withdrawals Withdrawals
	Deposits    Deposits
	Assets      *models.AssetCatalogue
	BonusRules  bonus.Rules
	AdminIds    []int64
	BotUsername string
	Sessions    *SessionStore
}

// Handler turns chat events into ledger operations and replies
type Handler struct {
	accounts    Accounts
	bonuses     Bonuses
	withdrawals Withdrawals
	deposits    Deposits
	assets      *models.AssetCatalogue
	rules       bonus.Rules
	admins      map[int64]bool
	botUsername string
	sessions    *SessionStore
	now         func() time.Time
}

func NewHandler(cfg HandlerConfig) *Handler {
	admins := make(map[int64]bool, len(cfg.AdminIds))
	for _, id := range cfg.AdminIds {
		admins[id] = true
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = NewSessionStore()
	}
	return &Handler{
		accounts:    cfg.Accounts,
		bonuses:     cfg.Bonuses,
		withdrawals: cfg.Withdrawals,
		deposits:    cfg.Deposits,
		assets:      cfg.Assets,
		rules:       cfg.BonusRules,
		admins:      admins,
		botUsername: cfg.BotUsername,
		sessions:    sessions,
		now:         time.Now,
	}
}

func (h *Handler) IsAdmin(userId int64) bool {
	return h.admins[userId]
}

// Handle processes one event to completion and returns the replies to send
func (h *Handler) Handle(ctx context.Context, req Request) []Reply {
	ctx = models.WithOperationContext(ctx, models.OperationContext{ActorId: req.UserId, Source: "chat"})

	switch {
	case req.Command != "":
		return h.handleCommand(ctx, req)
	case req.Callback != nil:
		return h.handleAction(ctx, req, *req.Callback)
	default:
		return h.handleText(ctx, req)
	}
}

func (h *Handler) handleCommand(ctx context.Context, req Request) []Reply {
	switch req.Command {
	case "start":
		return h.start(ctx, req)
	case "admin":
		if !h.IsAdmin(req.UserId) {
			return h.send(req, "❌ You are not authorized to access the admin panel.", nil)
		}
		return []Reply{{
			ChatId:   req.ChatId,
			Text:     "🔐 *Admin Panel*",
			Markdown: true,
			Buttons: [][]Button{
				{actionButton("📄 Pending Withdrawals", ActionAdminWithdrawals)},
				{actionButton("💰 Unpaid Invoices", ActionAdminInvoices)},
			},
		}}
	case "cancel":
		h.sessions.Reset(req.UserId)
		return h.send(req, mainMenuText(referralLink(h.botUsername, req.UserId)), mainMenuButtons())
	}
	return h.send(req, "Unknown command. Use /start to open the menu.", nil)
}

func (h *Handler) start(ctx context.Context, req Request) []Reply {
	var referrerId *int64
	if arg := strings.TrimSpace(req.Args); arg != "" {
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
			referrerId = &id
		}
	}

	result, err := h.accounts.RegisterUser(ctx, req.UserId, req.Username, referrerId)
	if err != nil {
		return h.failure(req, "start", err)
	}
	h.sessions.Reset(req.UserId)

	reply := Reply{
		ChatId:   req.ChatId,
		Text:     welcomeText(result, referralLink(h.botUsername, req.UserId)),
		Buttons:  mainMenuButtons(),
		Markdown: true,
	}
	return []Reply{reply}
}

func (h *Handler) handleAction(ctx context.Context, req Request, action Action) []Reply {
	if action.RequiresAdmin() && !h.IsAdmin(req.UserId) {
		zap.L().Warn("Refused admin action",
			zap.Int64("user_id", req.UserId),
			zap.String("action", action.Encode()))
		return h.edit(req, "❌ You are not authorized to perform this action.", nil)
	}

	switch action.Kind {
	case ActionMainMenu:
		h.sessions.Reset(req.UserId)
		return h.edit(req, mainMenuText(referralLink(h.botUsername, req.UserId)), mainMenuButtons())
	case ActionAccount:
		return h.account(ctx, req)
	case ActionReferrals:
		return h.referrals(ctx, req)
	case ActionDeposit:
		return h.depositMenu(req)
	case ActionDepositAsset:
		return h.depositAsset(req, action.Asset)
	case ActionCheckDeposit:
		return h.checkDeposit(ctx, req, action.Id)
	case ActionDailyBonus:
		return h.bonusStatus(ctx, req)
	case ActionClaimBonus:
		return h.claimBonus(ctx, req)
	case ActionWithdraw:
		return h.withdrawMenu(ctx, req)
	case ActionWithdrawAsset:
		return h.withdrawAsset(ctx, req, action.Asset)
	case ActionAdminWithdrawals:
		return h.adminWithdrawals(ctx, req)
	case ActionAdminInvoices:
		return h.adminInvoices(ctx, req)
	case ActionApproveWithdrawal:
		return h.decideWithdrawal(ctx, req, action.Id, true)
	case ActionRejectWithdrawal:
		return h.decideWithdrawal(ctx, req, action.Id, false)
	case ActionDeleteInvoice:
		return h.deleteInvoice(ctx, req, action.Id)
	case ActionUnknown:
	}
	return h.edit(req, "This button is no longer valid. Use /start to open the menu.", nil)
}

func (h *Handler) account(ctx context.Context, req Request) []Reply {
	account, err := h.accounts.GetAccount(ctx, req.UserId)
	if errors.Is(err, store.ErrUserNotFound) {
		return h.edit(req, "User not found. Please restart the bot with /start", nil)
	}
	if err != nil {
		return h.failure(req, "account", err)
	}
	reply := h.edit(req, accountText(account, referralLink(h.botUsername, req.UserId)), [][]Button{
		{actionButton("💰 Make Deposit", ActionDeposit), actionButton("🎁 Daily Bonus", ActionDailyBonus)},
		{actionButton("💸 Withdraw", ActionWithdraw), actionButton("👥 My Referrals", ActionReferrals)},
		backRow(ActionMainMenu),
	})
	reply[0].Markdown = true
	return reply
}

func (h *Handler) referrals(ctx context.Context, req Request) []Reply {
	summary, err := h.accounts.GetReferrals(ctx, req.UserId)
	if errors.Is(err, store.ErrUserNotFound) {
		return h.edit(req, "User not found. Please restart the bot with /start", nil)
	}
	if err != nil {
		return h.failure(req, "referrals", err)
	}
	reply := h.edit(req, referralsText(summary, referralLink(h.botUsername, req.UserId)), [][]Button{
		{actionButton("💰 Make Deposit", ActionDeposit)},
		{actionButton("📊 My Account", ActionAccount)},
		backRow(ActionMainMenu),
	})
	reply[0].Markdown = true
	return reply
}

func (h *Handler) depositMenu(req Request) []Reply {
	var rows [][]Button
	for _, asset := range h.assets.All() {
		rows = append(rows, []Button{{
			Text:   fmt.Sprintf("%s (%s)", asset.Name, asset.Symbol),
			Action: Action{Kind: ActionDepositAsset, Asset: asset.Symbol},
		}})
	}
	rows = append(rows, backRow(ActionMainMenu))
	reply := h.edit(req, "💰 *Make a Deposit*\n\nPlease select the cryptocurrency you want to deposit:", rows)
	reply[0].Markdown = true
	return reply
}

func (h *Handler) depositAsset(req Request, symbol string) []Reply {
	asset, ok := h.assets.Lookup(symbol)
	if !ok {
		return h.edit(req, fmt.Sprintf("%s is not supported.", symbol), [][]Button{backRow(ActionDeposit)})
	}
	h.sessions.Set(req.UserId, Session{State: StateAwaitingDepositAmount, Asset: asset.Symbol})

	reply := h.edit(req, depositAssetText(asset), [][]Button{backRow(ActionDeposit)})
	reply[0].Markdown = true
	return reply
}

func (h *Handler) checkDeposit(ctx context.Context, req Request, invoiceId int64) []Reply {
	check, err := h.deposits.Check(ctx, req.UserId, invoiceId)
	if errors.Is(err, store.ErrInvoiceNotFound) {
		return h.edit(req, "Invoice not found. Please contact support.", [][]Button{backRow(ActionMainMenu)})
	}
	if err != nil {
		zap.L().Error("Failed to check invoice",
			zap.Int64("user_id", req.UserId),
			zap.Int64("invoice_id", invoiceId),
			zap.Error(err))
		return h.edit(req, "Unable to check invoice status. Please try again later.", [][]Button{
			{{Text: "Check Again", Action: Action{Kind: ActionCheckDeposit, Id: invoiceId}}},
			backRow(ActionMainMenu),
		})
	}

	var text string
	checkAgain := false
	switch {
	case check.AlreadyPaid:
		text = "✅ This invoice has already been paid and processed."
	case check.Confirmation != nil:
		text = confirmationText(check.Confirmation)
	case check.ProcessorStatus == cryptopay.StatusActive:
		text = fmt.Sprintf("⏳ This invoice is still waiting for payment.\n\nAmount: %s %s\n\nClick 'Pay Now' to complete your deposit.",
			check.Invoice.Amount.String(), check.Invoice.Asset)
		checkAgain = true
	default:
		text = fmt.Sprintf("❌ This invoice is %s. Please create a new deposit request.", check.ProcessorStatus)
	}

	var rows [][]Button
	if checkAgain {
		if check.Invoice.PayUrl != "" {
			rows = append(rows, []Button{{Text: "💳 Pay Now", Url: check.Invoice.PayUrl}})
		}
		rows = append(rows, []Button{{Text: "Check Again", Action: Action{Kind: ActionCheckDeposit, Id: invoiceId}}})
	}
	rows = append(rows, []Button{actionButton("🔙 Back to Main", ActionMainMenu)})
	return h.edit(req, text, rows)
}

func (h *Handler) bonusStatus(ctx context.Context, req Request) []Reply {
	status, err := h.bonuses.Status(ctx, req.UserId)
	if errors.Is(err, store.ErrUserNotFound) {
		return h.edit(req, "User not found. Please restart the bot with /start", nil)
	}
	if err != nil {
		return h.failure(req, "bonus_status", err)
	}

	var rows [][]Button
	if status.CanClaim {
		rows = append(rows, []Button{actionButton("🎁 Claim Daily Bonus", ActionClaimBonus)})
	}
	if status.DepositRequired {
		rows = append(rows, []Button{actionButton("💰 Make Deposit", ActionDeposit)})
	}
	rows = append(rows, backRow(ActionMainMenu))

	reply := h.edit(req, bonusStatusText(status, h.rules, h.now()), rows)
	reply[0].Markdown = true
	return reply
}

func (h *Handler) claimBonus(ctx context.Context, req Request) []Reply {
	result, err := h.bonuses.Claim(ctx, req.UserId)
	switch {
	case errors.Is(err, bonus.ErrCooldownActive):
		return h.edit(req, "⏳ You have already claimed your bonus. Please wait until the cooldown ends.",
			[][]Button{backRow(ActionDailyBonus)})
	case errors.Is(err, bonus.ErrDepositRequired):
		return h.edit(req, fmt.Sprintf("⚠️ You've reached the free bonus limit. Deposit at least %s to keep claiming.",
			usd(h.rules.MinRequiredDeposit)), [][]Button{
			{actionButton("💰 Make Deposit", ActionDeposit)},
			backRow(ActionDailyBonus),
		})
	case errors.Is(err, store.ErrUserNotFound):
		return h.edit(req, "User not found. Please restart the bot with /start", nil)
	case err != nil:
		return h.failure(req, "claim_bonus", err)
	}

	return h.edit(req, claimText(result), [][]Button{
		{actionButton("📊 My Account", ActionAccount)},
		backRow(ActionMainMenu),
	})
}

func (h *Handler) withdrawMenu(ctx context.Context, req Request) []Reply {
	eligibility, err := h.withdrawals.CheckEligibility(ctx, req.UserId)
	if errors.Is(err, store.ErrUserNotFound) {
		return h.markdownEdit(req, "💸 *Withdraw Funds*\n\nYou don't have an account with us yet. Please start using the bot first.",
			[][]Button{backRow(ActionMainMenu)})
	}
	if err != nil && !errors.Is(err, withdrawal.ErrNotEnoughReferrals) {
		return h.failure(req, "withdraw", err)
	}

	if !eligibility.Available.IsPositive() {
		return h.markdownEdit(req, "💸 *Withdraw Funds*\n\nYou currently have no funds available to withdraw.\n\n"+
			"Earn by referring friends and claiming daily bonuses!", [][]Button{backRow(ActionMainMenu)})
	}
	if errors.Is(err, withdrawal.ErrNotEnoughReferrals) {
		return h.markdownEdit(req, withdrawalLockedText(eligibility.ReferralCount, eligibility.RequiredReferral),
			[][]Button{backRow(ActionMainMenu)})
	}

	var rows [][]Button
	for _, asset := range h.assets.All() {
		rows = append(rows, []Button{{
			Text:   fmt.Sprintf("%s (%s)", asset.Name, asset.Symbol),
			Action: Action{Kind: ActionWithdrawAsset, Asset: asset.Symbol},
		}})
	}
	rows = append(rows, backRow(ActionMainMenu))
	return h.markdownEdit(req, withdrawMenuText(eligibilityView{
		Available: eligibility.Available,
		Earning:   eligibility.Earning,
		Deposit:   eligibility.Deposit,
	}), rows)
}

func (h *Handler) withdrawAsset(ctx context.Context, req Request, symbol string) []Reply {
	quote, err := h.withdrawals.Quote(ctx, req.UserId, symbol)
	if errors.Is(err, models.ErrUnsupportedAsset) {
		return h.edit(req, fmt.Sprintf("%s is not supported.", symbol), [][]Button{backRow(ActionWithdraw)})
	}
	if err != nil {
		return h.failure(req, "withdraw_asset", err)
	}
	h.sessions.Set(req.UserId, Session{
		State:     StateAwaitingWalletAddress,
		Asset:     quote.Asset.Symbol,
		Available: quote.Available,
	})

	text := fmt.Sprintf("💸 *Withdraw %s*\n\n"+
		"Available Balance: %s\n"+
		"Minimum withdrawal: %s %s\n\n"+
		"Please enter your %s wallet address:",
		quote.Asset.Symbol, usd(quote.Available), quote.Asset.MinWithdrawal.String(), quote.Asset.Symbol, quote.Asset.Symbol)
	return h.markdownEdit(req, text, [][]Button{backRow(ActionWithdraw)})
}

func (h *Handler) adminWithdrawals(ctx context.Context, req Request) []Reply {
	pending, err := h.withdrawals.ListPending(ctx, adminListLimit)
	if err != nil {
		return h.failure(req, "admin_withdrawals", err)
	}
	if len(pending) == 0 {
		return h.edit(req, "✅ No pending withdrawals.", nil)
	}

	replies := h.edit(req, "📄 Showing pending withdrawal requests...", nil)
	for _, p := range pending {
		replies = append(replies, Reply{
			ChatId:   req.ChatId,
			Text:     pendingWithdrawalText(p),
			Buttons:  withdrawalAdminButtons(p.Id),
			Markdown: true,
		})
	}
	return replies
}

func (h *Handler) adminInvoices(ctx context.Context, req Request) []Reply {
	invoices, err := h.deposits.ListActive(ctx, adminListLimit, 0)
	if err != nil {
		return h.failure(req, "admin_invoices", err)
	}
	if len(invoices) == 0 {
		return h.edit(req, "✅ No unpaid deposit invoices.", nil)
	}

	replies := h.edit(req, "📄 Showing unpaid invoices below:", nil)
	for _, inv := range invoices {
		replies = append(replies, Reply{
			ChatId:   req.ChatId,
			Text:     activeInvoiceText(inv),
			Buttons:  [][]Button{{{Text: "🗑️ Delete", Action: Action{Kind: ActionDeleteInvoice, Id: inv.InvoiceId}}}},
			Markdown: true,
		})
	}
	return replies
}

func (h *Handler) decideWithdrawal(ctx context.Context, req Request, requestId int64, approve bool) []Reply {
	var err error
	if approve {
		_, err = h.withdrawals.Approve(ctx, requestId)
	} else {
		_, err = h.withdrawals.Reject(ctx, requestId)
	}
	if errors.Is(err, store.ErrRequestNotFoundOrAlreadyProcessed) {
		return h.edit(req, "⚠️ Request not found or already processed.", nil)
	}
	if err != nil {
		return h.failure(req, "withdrawal_decision", err)
	}

	if approve {
		return h.edit(req, fmt.Sprintf("✅ Withdrawal request #%d approved.", requestId), nil)
	}
	return h.edit(req, fmt.Sprintf("❌ Withdrawal request #%d rejected and funds returned to user.", requestId), nil)
}

func (h *Handler) deleteInvoice(ctx context.Context, req Request, invoiceId int64) []Reply {
	err := h.deposits.DeleteInvoice(ctx, invoiceId)
	if errors.Is(err, store.ErrInvoiceNotFound) {
		return h.edit(req, fmt.Sprintf("⚠️ Invoice %d not found or no longer active.", invoiceId), nil)
	}
	if err != nil {
		zap.L().Error("Failed to delete invoice", zap.Int64("invoice_id", invoiceId), zap.Error(err))
		return h.edit(req, fmt.Sprintf("❌ Failed to delete invoice %d. Please try again later.", invoiceId), nil)
	}
	return h.markdownEdit(req, fmt.Sprintf("✅ Invoice `%d` has been successfully deleted.", invoiceId), nil)
}

func (h *Handler) handleText(ctx context.Context, req Request) []Reply {
	session := h.sessions.Get(req.UserId)
	text := strings.TrimSpace(req.Text)

	switch session.State {
	case StateAwaitingDepositAmount:
		return h.depositAmount(ctx, req, session, text)
	case StateAwaitingWalletAddress:
		return h.walletAddress(ctx, req, session, text)
	case StateAwaitingWithdrawalAmount:
		return h.withdrawalAmount(ctx, req, session, text)
	case StateIdle:
	}
	return h.send(req, "Use /start to open the menu.", nil)
}

func (h *Handler) depositAmount(ctx context.Context, req Request, session Session, text string) []Reply {
	amount, err := decimal.NewFromString(text)
	if err != nil || !amount.IsPositive() {
		return h.send(req, "Please enter a valid number for the deposit amount.", nil)
	}

	invoice, err := h.deposits.CreateInvoice(ctx, req.UserId, session.Asset, amount)
	if errors.Is(err, deposit.ErrBelowMinimum) {
		asset, _ := h.assets.Lookup(session.Asset)
		return h.send(req, fmt.Sprintf("Amount too small. Minimum deposit is %s %s.", asset.MinDeposit.String(), asset.Symbol), nil)
	}
	if err != nil {
		h.sessions.Reset(req.UserId)
		zap.L().Error("Failed to create deposit invoice",
			zap.Int64("user_id", req.UserId),
			zap.String("asset", session.Asset),
			zap.Error(err))
		return h.send(req, "Sorry, there was an error creating your deposit invoice. Please try again later.",
			[][]Button{backRow(ActionMainMenu)})
	}
	h.sessions.Reset(req.UserId)

	return h.send(req, invoiceCreatedText(invoice), [][]Button{
		{{Text: "💳 Pay Now", Url: invoice.PayUrl}},
		{{Text: "Check Payment Status", Action: Action{Kind: ActionCheckDeposit, Id: invoice.InvoiceId}}},
		{actionButton("🔙 Back to Main", ActionMainMenu)},
	})
}

func (h *Handler) walletAddress(ctx context.Context, req Request, session Session, text string) []Reply {
	if err := h.withdrawals.ValidateWalletAddress(text); err != nil {
		return h.send(req, "Please enter a valid wallet address (at least 10 characters, no spaces).", nil)
	}

	quote, err := h.withdrawals.Quote(ctx, req.UserId, session.Asset)
	if err != nil {
		return h.failure(req, "wallet_address", err)
	}
	session.State = StateAwaitingWithdrawalAmount
	session.WalletAddress = text
	session.Available = quote.Available
	h.sessions.Set(req.UserId, session)

	reply := h.send(req, fmt.Sprintf("💸 *Withdraw %s*\n\n"+
		"Available Balance: %s (≈ %s %s)\n"+
		"Minimum withdrawal: %s %s (≈ %s)\n\n"+
		"Wallet address: `%s`\n\n"+
		"Now, please enter the amount of %s you wish to withdraw:",
		quote.Asset.Symbol,
		usd(quote.Available), quote.AvailableInAsset.StringFixed(8), quote.Asset.Symbol,
		quote.Asset.MinWithdrawal.String(), quote.Asset.Symbol, usd(quote.MinUsd),
		text, quote.Asset.Symbol), nil)
	reply[0].Markdown = true
	return reply
}

func (h *Handler) withdrawalAmount(ctx context.Context, req Request, session Session, text string) []Reply {
	amount, err := decimal.NewFromString(text)
	if err != nil || !amount.IsPositive() {
		return h.send(req, "Please enter a valid number for the withdrawal amount.", nil)
	}

	result, err := h.withdrawals.Request(ctx, withdrawal.RequestParams{
		UserId:        req.UserId,
		Asset:         session.Asset,
		Amount:        amount,
		WalletAddress: session.WalletAddress,
	})
	switch {
	case errors.Is(err, withdrawal.ErrBelowMinimum):
		asset, _ := h.assets.Lookup(session.Asset)
		return h.send(req, fmt.Sprintf("Amount too small. Minimum withdrawal is %s %s.", asset.MinWithdrawal.String(), asset.Symbol), nil)
	case errors.Is(err, store.ErrInsufficientFunds):
		return h.send(req, fmt.Sprintf("Insufficient funds. Your maximum withdrawal amount is %s.\n\nPlease enter a smaller amount.",
			usd(session.Available)), nil)
	case errors.Is(err, withdrawal.ErrNotEnoughReferrals):
		h.sessions.Reset(req.UserId)
		return h.send(req, "❌ Withdrawals require more referrals. Open the withdraw menu for details.",
			[][]Button{backRow(ActionMainMenu)})
	case err != nil:
		h.sessions.Reset(req.UserId)
		zap.L().Error("Failed to create withdrawal request",
			zap.Int64("user_id", req.UserId),
			zap.String("asset", session.Asset),
			zap.Error(err))
		return h.send(req, "❌ Error creating withdrawal request.\n\nPlease try again later or contact support.",
			[][]Button{backRow(ActionMainMenu)})
	}
	h.sessions.Reset(req.UserId)

	r := result.Request
	reply := h.send(req, fmt.Sprintf("✅ Withdrawal request submitted!\n\n"+
		"Amount: %s %s (≈ %s)\n"+
		"To: `%s`\n\n"+
		"Your request has been sent to our administrators for processing. "+
		"It usually takes up to 72 hours.\n\n"+
		"You will be notified once it's processed.\n\n"+
		"New balance: %s",
		r.Amount.String(), r.Asset, usd(r.UsdAmount), r.WalletAddress, usd(result.NewBalance)), [][]Button{
		{actionButton("📊 My Account", ActionAccount)},
		backRow(ActionMainMenu),
	})
	reply[0].Markdown = true
	return reply
}

func (h *Handler) failure(req Request, operation string, err error) []Reply {
	zap.L().Error("Chat operation failed",
		zap.String("operation", operation),
		zap.Int64("user_id", req.UserId),
		zap.Error(err))
	text := "⚠️ An error occurred. Please try again later."
	if req.Callback != nil {
		return h.edit(req, text, [][]Button{backRow(ActionMainMenu)})
	}
	return h.send(req, text, nil)
}

func (h *Handler) send(req Request, text string, buttons [][]Button) []Reply {
	return []Reply{{ChatId: req.ChatId, Text: text, Buttons: buttons}}
}

// edit replaces the message the button was pressed on
func (h *Handler) edit(req Request, text string, buttons [][]Button) []Reply {
	return []Reply{{ChatId: req.ChatId, Text: text, Buttons: buttons, EditMessageId: req.MessageId}}
}

func (h *Handler) markdownEdit(req Request, text string, buttons [][]Button) []Reply {
	reply := h.edit(req, text, buttons)
	reply[0].Markdown = true
	return reply
}

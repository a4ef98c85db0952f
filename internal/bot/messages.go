package bot

import (
	"fmt"
	"strings"
	"time"

	"rewards-ledger-bot/internal/bonus"
	"rewards-ledger-bot/internal/models"
	"rewards-ledger-bot/internal/tier"

	"github.com/shopspring/decimal"
)

// Button is an inline button carrying either an action or a link
type Button struct {
	Text   string
	Action Action
	Url    string
}

// Reply is one outbound message. EditMessageId replaces an earlier message
// in place instead of sending a new one.
type Reply struct {
	ChatId        int64
	Text          string
	Buttons       [][]Button
	Markdown      bool
	EditMessageId int
}

func usd(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

func actionButton(text string, kind ActionKind) Button {
	return Button{Text: text, Action: Action{Kind: kind}}
}

func backRow(kind ActionKind) []Button {
	return []Button{actionButton("🔙 Back", kind)}
}

func mainMenuButtons() [][]Button {
	return [][]Button{
		{actionButton("💰 Make Deposit", ActionDeposit), actionButton("🎁 Daily Bonus", ActionDailyBonus)},
		{actionButton("💸 Withdraw", ActionWithdraw), actionButton("👥 My Referrals", ActionReferrals)},
		{actionButton("📊 My Account", ActionAccount)},
	}
}

func referralLink(botUsername string, userId int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, userId)
}

func welcomeText(result *models.RegistrationResult, link string) string {
	var b strings.Builder
	if result.Created {
		b.WriteString("🎉 Welcome to the Daily Reward & Referral Bot! 🎉\n\n")
		if result.ReferredBy != nil {
			b.WriteString("You were referred by a friend! You'll both earn bonuses when you make deposits.\n\n")
		}
	} else {
		b.WriteString("Welcome back to the Daily Reward & Referral Bot!\n\n")
	}
	b.WriteString("• Use the buttons below to navigate\n\n")
	b.WriteString("• Earn higher bonuses by upgrading your tier!\n\n")
	fmt.Fprintf(&b, "• Share your referral link:\n `%s`", link)
	return b.String()
}

func mainMenuText(link string) string {
	return "Welcome to the Deposit & Referral Bot!\n\n" +
		"• Use the buttons below to navigate\n" +
		"• Share your referral link to earn bonuses: " + link + "\n" +
		"• Earn higher bonuses by upgrading your tier!"
}

func tierLadder() string {
	var b strings.Builder
	for _, level := range tier.All() {
		fmt.Fprintf(&b, "\n• %s (%s+): %s%% referral bonus",
			level, usd(level.MinDeposit()), level.ReferralBonusPercent().String())
	}
	return b.String()
}

func accountText(account *models.AccountSummary, link string) string {
	u := account.User
	return fmt.Sprintf("📊 *Account Information*\n\n"+
		"User ID: `%d`\n"+
		"Username: %s\n"+
		"Current Tier: %s\n"+
		"Total Deposits: %s\n"+
		"Total Earnings: %s\n"+
		"Available Balance: %s\n"+
		"Referrals: %d\n"+
		"Join Date: %s\n\n"+
		"Your Referral Link:\n`%s`\n\n"+
		"*Tier Benefits:*%s",
		u.Id, u.Username, u.Tier, usd(u.DepositAmount), usd(u.EarningAmount), usd(account.Available),
		account.ReferralCount, u.JoinDate.Format("2006-01-02 15:04:05"), link, tierLadder())
}

func referralsText(summary *models.ReferralSummary, link string) string {
	var b strings.Builder
	if len(summary.Referrals) == 0 {
		b.WriteString("You haven't referred any users yet. Share your referral link to start earning bonuses!")
	} else {
		b.WriteString("👥 *Your Referrals:*\n\n")
		for i, r := range summary.Referrals {
			fmt.Fprintf(&b, "%d. %s - Tier: %s - Deposits: %s\n", i+1, r.Username, r.Tier, usd(r.DepositAmount))
		}
	}
	rate := summary.ReferralRate.String()
	fmt.Fprintf(&b, "\n\n*Your Referral Bonus Rate: %s%%*", rate)
	fmt.Fprintf(&b, "\n\nWhen your referrals make deposits, you earn %s%% of their deposit amount!", rate)
	fmt.Fprintf(&b, "\n\nYour Referral Link:\n`%s`", link)
	return b.String()
}

func bonusStatusText(status *models.BonusStatus, rules bonus.Rules, now time.Time) string {
	var b strings.Builder
	b.WriteString("🎁 *Daily Bonus*\n\n")
	fmt.Fprintf(&b, "Your tier: *%s*\n", status.Tier)
	fmt.Fprintf(&b, "Your daily bonus amount: %s - %s\n", usd(status.BonusMin), usd(status.BonusMax))
	fmt.Fprintf(&b, "Total claimed so far: %s\n", usd(status.TotalClaimed))
	if status.StreakDays > 0 {
		fmt.Fprintf(&b, "Current streak: %d day(s)\n", status.StreakDays)
	}
	b.WriteString("\n")

	if status.DepositRequired {
		fmt.Fprintf(&b, "⚠️ You've reached the maximum free bonus limit of %s.\n"+
			"To continue receiving daily bonuses, please deposit at least %s.\n\n",
			usd(rules.MaxFreeBonusTotal), usd(rules.MinRequiredDeposit))
	}
	if status.NextClaimAt != nil && status.NextClaimAt.After(now) {
		fmt.Fprintf(&b, "⏳ Next claim available in: %s\n\n", remaining(status.NextClaimAt.Sub(now)))
	} else if status.CanClaim {
		b.WriteString("✅ Your daily bonus is ready to claim!\n\n")
	}
	return b.String()
}

func remaining(d time.Duration) string {
	d = d.Round(time.Minute)
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func claimText(result *models.ClaimResult) string {
	return fmt.Sprintf("🎉 Congratulations! You've claimed your daily bonus of %s!\n\n"+
		"Streak: %d day(s). The bonus has been added to your balance. Come back in 24 hours to claim again!",
		usd(result.Amount), result.StreakDays)
}

func depositAssetText(asset models.Asset) string {
	minimum := asset.MinDeposit.String()
	return fmt.Sprintf("💰 *Deposit %s*\n\n"+
		"Please enter the amount of %s you wish to deposit.\n\n"+
		"Minimum deposit: %s %s\n\n"+
		"Example: To deposit %s %s, just type `%s`",
		asset.Symbol, asset.Symbol, minimum, asset.Symbol, minimum, asset.Symbol, minimum)
}

func invoiceCreatedText(invoice *models.PaymentInvoice) string {
	return fmt.Sprintf("🧾 I've created a deposit invoice for %s %s.\n\n"+
		"Click the 'Pay Now' button below to complete your deposit.\n\n"+
		"After payment, click 'Check Payment Status' to verify your deposit was received.",
		invoice.Amount.String(), invoice.Asset)
}

func confirmationText(c *models.DepositConfirmation) string {
	return fmt.Sprintf("✅ Deposit confirmed: %s %s (%s)\n\n"+
		"Your deposit has been added to your account.\n\n"+
		"Total deposit balance: %s\n"+
		"Current tier: %s",
		c.Invoice.Amount.String(), c.Invoice.Asset, usd(c.UsdAmount), usd(c.DepositAmount), c.Tier)
}

func withdrawMenuText(e eligibilityView) string {
	return fmt.Sprintf("💸 *Withdraw Funds*\n\n"+
		"Available Balance: %s\n"+
		"- From earnings: %s\n"+
		"- From deposits: %s\n\n"+
		"Please select the cryptocurrency you want to withdraw:",
		usd(e.Available), usd(e.Earning), usd(e.Deposit))
}

// eligibilityView keeps messages independent of the withdrawal package
type eligibilityView struct {
	Available, Earning, Deposit decimal.Decimal
}

func withdrawalLockedText(have, need int) string {
	return fmt.Sprintf("❌ *Withdrawal Locked*\n\n"+
		"To withdraw funds, you must refer at least *%d new users* using your referral link.\n\n"+
		"You have referred only *%d* user(s) so far.\n"+
		"Start sharing your referral link to unlock withdrawals!", need, have)
}

func withdrawalRequestedAdminText(req models.WithdrawalRequest) string {
	return fmt.Sprintf("🔔 *New Withdrawal Request*\n\n"+
		"Request ID: `%d`\n"+
		"User ID: `%d`\n"+
		"Amount: `%s %s` (%s)\n"+
		"Wallet: `%s`\n\n"+
		"Use /admin to approve or reject.",
		req.Id, req.UserId, req.Amount.String(), req.Asset, usd(req.UsdAmount), req.WalletAddress)
}

func withdrawalAdminButtons(requestId int64) [][]Button {
	return [][]Button{{
		{Text: "✅ Approve", Action: Action{Kind: ActionApproveWithdrawal, Id: requestId}},
		{Text: "❌ Reject", Action: Action{Kind: ActionRejectWithdrawal, Id: requestId}},
	}}
}

func withdrawalProcessedUserText(req models.WithdrawalRequest) string {
	if req.Status == models.WithdrawalStatusCompleted {
		return fmt.Sprintf("✅ Your withdrawal of %s %s to `%s` has been approved and processed.",
			req.Amount.String(), req.Asset, req.WalletAddress)
	}
	return fmt.Sprintf("❌ Your withdrawal request of %s has been rejected. Funds returned to your balance.",
		usd(req.UsdAmount))
}

func pendingWithdrawalText(req models.WithdrawalRequest) string {
	return fmt.Sprintf("🆔 Request ID: `%d`\n👤 User: `%d`\n💸 Amount: %s %s (%s)\n🏦 Wallet: `%s`",
		req.Id, req.UserId, req.Amount.String(), req.Asset, usd(req.UsdAmount), req.WalletAddress)
}

func activeInvoiceText(inv models.PaymentInvoice) string {
	return fmt.Sprintf("🧾 Invoice ID: `%d`\n👤 User: `%d`\n💰 Amount: %s %s - *%s*",
		inv.InvoiceId, inv.UserId, inv.Amount.String(), inv.Asset, inv.Status)
}

package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownAction = errors.New("unknown action")

// ActionKind tags a decoded button press
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionMainMenu
	ActionAccount
	ActionReferrals
	ActionDeposit
	ActionDepositAsset
	ActionCheckDeposit
	ActionDailyBonus
	ActionClaimBonus
	ActionWithdraw
	ActionWithdrawAsset
	ActionAdminWithdrawals
	ActionAdminInvoices
	ActionApproveWithdrawal
	ActionRejectWithdrawal
	ActionDeleteInvoice
)

// Action is a button press decoded once at the transport boundary. Asset is
// set for the *Asset kinds, Id for the kinds that address a request or invoice.
type Action struct {
	Kind  ActionKind
	Asset string
	Id    int64
}

var plainActions = map[string]ActionKind{
	"back_to_main":      ActionMainMenu,
	"account":           ActionAccount,
	"referrals":         ActionReferrals,
	"deposit":           ActionDeposit,
	"daily_bonus":       ActionDailyBonus,
	"claim_bonus":       ActionClaimBonus,
	"withdraw":          ActionWithdraw,
	"admin_withdrawals": ActionAdminWithdrawals,
	"admin_invoices":    ActionAdminInvoices,
}

const (
	prefixDepositAsset  = "deposit_asset_"
	prefixWithdrawAsset = "withdraw_asset_"
	prefixCheckDeposit  = "check_deposit_"
	prefixApprove       = "approve_"
	prefixReject        = "reject_"
	prefixDeleteInvoice = "delete_invoice_"
)

// ParseAction decodes callback data. Longer prefixes are tried before the
// plain names they start with.
func ParseAction(data string) (Action, error) {
	switch {
	case strings.HasPrefix(data, prefixDepositAsset):
		return assetAction(ActionDepositAsset, data, prefixDepositAsset)
	case strings.HasPrefix(data, prefixWithdrawAsset):
		return assetAction(ActionWithdrawAsset, data, prefixWithdrawAsset)
	case strings.HasPrefix(data, prefixCheckDeposit):
		return idAction(ActionCheckDeposit, data, prefixCheckDeposit)
	case strings.HasPrefix(data, prefixApprove):
		return idAction(ActionApproveWithdrawal, data, prefixApprove)
	case strings.HasPrefix(data, prefixReject):
		return idAction(ActionRejectWithdrawal, data, prefixReject)
	case strings.HasPrefix(data, prefixDeleteInvoice):
		return idAction(ActionDeleteInvoice, data, prefixDeleteInvoice)
	}
	if kind, ok := plainActions[data]; ok {
		return Action{Kind: kind}, nil
	}
	return Action{}, fmt.Errorf("%q: %w", data, ErrUnknownAction)
}

func assetAction(kind ActionKind, data, prefix string) (Action, error) {
	asset := strings.ToUpper(strings.TrimPrefix(data, prefix))
	if asset == "" {
		return Action{}, fmt.Errorf("%q has no asset: %w", data, ErrUnknownAction)
	}
	return Action{Kind: kind, Asset: asset}, nil
}

func idAction(kind ActionKind, data, prefix string) (Action, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
	if err != nil || id <= 0 {
		return Action{}, fmt.Errorf("%q has no valid id: %w", data, ErrUnknownAction)
	}
	return Action{Kind: kind, Id: id}, nil
}

// Encode is the inverse of ParseAction
func (a Action) Encode() string {
	switch a.Kind {
	case ActionDepositAsset:
		return prefixDepositAsset + a.Asset
	case ActionWithdrawAsset:
		return prefixWithdrawAsset + a.Asset
	case ActionCheckDeposit:
		return prefixCheckDeposit + strconv.FormatInt(a.Id, 10)
	case ActionApproveWithdrawal:
		return prefixApprove + strconv.FormatInt(a.Id, 10)
	case ActionRejectWithdrawal:
		return prefixReject + strconv.FormatInt(a.Id, 10)
	case ActionDeleteInvoice:
		return prefixDeleteInvoice + strconv.FormatInt(a.Id, 10)
	}
	for name, kind := range plainActions {
		if kind == a.Kind {
			return name
		}
	}
	return ""
}

// RequiresAdmin reports whether only an administrator may trigger the action
func (a Action) RequiresAdmin() bool {
	switch a.Kind {
	case ActionAdminWithdrawals, ActionAdminInvoices,
		ActionApproveWithdrawal, ActionRejectWithdrawal, ActionDeleteInvoice:
		return true
	}
	return false
}

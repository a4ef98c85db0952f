package bot

import (
	"sync"

	"github.com/shopspring/decimal"
)

// State is where a user is inside a multi-step flow
type State int

const (
	StateIdle State = iota
	StateAwaitingDepositAmount
	StateAwaitingWalletAddress
	StateAwaitingWithdrawalAmount
)

func (s State) String() string {
	switch s {
	case StateAwaitingDepositAmount:
		return "awaiting_deposit_amount"
	case StateAwaitingWalletAddress:
		return "awaiting_wallet_address"
	case StateAwaitingWithdrawalAmount:
		return "awaiting_withdrawal_amount"
	}
	return "idle"
}

// Session holds the inputs collected so far. Starting a new flow overwrites it;
// nothing touches the ledger until the last step.
type Session struct {
	State         State
	Asset         string
	WalletAddress string
	// Available is the balance shown when the flow started, used for hints only
	Available decimal.Decimal
}

// SessionStore keeps one session per user in memory
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]Session)}
}

func (s *SessionStore) Get(userId int64) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userId]
}

func (s *SessionStore) Set(userId int64, session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.State == StateIdle {
		delete(s.sessions, userId)
		return
	}
	s.sessions[userId] = session
}

func (s *SessionStore) Reset(userId int64) {
	s.Set(userId, Session{})
}

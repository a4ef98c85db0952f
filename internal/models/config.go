package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Bot        BotConfig
	CryptoPay  CryptoPayConfig
	Rates      RatesConfig
	Listener   ListenerConfig
	Server     ServerConfig
	Rewards    RewardsConfig
	Log        LogConfig
	AssetsFile string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// BotConfig holds chat transport settings
type BotConfig struct {
	Token         string
	Username      string
	AdminIds      []int64
	UpdateTimeout int
	Debug         bool
}

// CryptoPayConfig holds payment processor settings
type CryptoPayConfig struct {
	ApiToken       string
	BaseUrl        string
	Timeout        time.Duration
	PaidButtonUrl  string
	WebhookEnabled bool
}

// RatesConfig holds rate oracle settings
type RatesConfig struct {
	ApiKey            string
	ApiUrl            string
	CacheTTL          time.Duration
	RequestTimeout    time.Duration
	RequestsPerMinute int
}

// ListenerConfig holds invoice poller settings
type ListenerConfig struct {
	PollingInterval time.Duration
	CleanupInterval time.Duration
	BatchSize       int
}

// ServerConfig holds the HTTP surface settings
type ServerConfig struct {
	ListenAddr      string
	ShutdownTimeout time.Duration
}

// RewardsConfig holds the program rules
type RewardsConfig struct {
	MinReferralsForWithdrawal int
	MaxFreeBonusTotal         decimal.Decimal
	MinRequiredDeposit        decimal.Decimal
	BonusCooldown             time.Duration
	BonusLocation             *time.Location
	MinWalletAddressLength    int
}

// LogConfig holds logger settings
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

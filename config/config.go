package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"kzcasino/database"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	// Discord configuration
	DiscordToken      string `env:"DISCORD_TOKEN"`
	GuildID           string `env:"GUILD_ID"`
	AnnounceChannelID string `env:"ANNOUNCE_CHANNEL_ID"` // Channel for duel, loan and prediction announcements

	// Database configuration
	DatabaseURL  string `env:"DATABASE_URL"`
	DatabaseName string `env:"DATABASE_NAME"`

	// Economy configuration
	StartingBalance int64   `env:"STARTING_BALANCE" envDefault:"2500"`
	TransferTaxPct  float64 `env:"TRANSFER_TAX_PCT" envDefault:"2.0"` // Percent of a transfer that is burned
	OwnerDiscordIDs []int64 `env:"OWNER_DISCORD_IDS" envSeparator:","` // Discord IDs that approve bank loans
	HouseDiscordID  int64   `env:"HOUSE_DISCORD_ID"` // The automated house player

	// Claim cooldowns
	DailyCooldownHours  int `env:"DAILY_COOLDOWN_H" envDefault:"20"`
	WeeklyCooldownDays  int `env:"WEEKLY_COOLDOWN_D" envDefault:"7"`
	WorkCooldownMinutes int `env:"WORK_COOLDOWN_MIN" envDefault:"30"`

	// Loan configuration
	MaxActiveLoans      int     `env:"LOANS_MAX_ACTIVE_PER_USER" envDefault:"3"`
	LoanMinAmount       int64   `env:"LOANS_MIN_AMOUNT" envDefault:"100"`
	LoanMaxAmount       int64   `env:"LOANS_MAX_AMOUNT" envDefault:"50000"`
	LoanMaxTermDays     int     `env:"LOANS_MAX_TERM_DAYS" envDefault:"14"`
	LoanP2PMaxTermDays  int     `env:"LOANS_P2P_MAX_TERM_DAYS" envDefault:"14"`
	LoanDefaultTermDays int     `env:"LOANS_DEFAULT_TERM_DAYS" envDefault:"7"`
	P2PMaxInterestPct   float64 `env:"LOANS_P2P_MAX_INTEREST_PCT" envDefault:"30"`
	LoanHistoryLimit    int     `env:"LOANS_HISTORY_LIMIT" envDefault:"15"`

	// Progress (XP) configuration
	XPPerGame      int64 `env:"XP_PER_GAME" envDefault:"25"`
	XPBonusWin     int64 `env:"XP_BONUS_WIN" envDefault:"25"`
	XPBonusLoss    int64 `env:"XP_BONUS_LOSS" envDefault:"10"`
	XPPerPvPGame   int64 `env:"XP_PVP_GAME" envDefault:"35"`
	XPBonusPvPWin  int64 `env:"XP_PVP_WIN" envDefault:"35"`
	XPBonusPvPLoss int64 `env:"XP_PVP_LOSS" envDefault:"15"`

	// Scheduler configuration (robfig/cron spec with seconds field)
	DuelSweepCron string `env:"DUEL_SWEEP_CRON" envDefault:"*/5 * * * * *"`
	LoanSweepCron string `env:"LOAN_SWEEP_CRON" envDefault:"0 */10 * * * *"`

	// NATS configuration, empty disables event forwarding
	NATSServers string `env:"NATS_SERVERS"`

	// Admin HTTP API
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			// In test environment, use a default test config instead of panicking
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// IsOwner reports whether the Discord ID may approve bank loans
func (c *Config) IsOwner(discordID int64) bool {
	for _, id := range c.OwnerDiscordIDs {
		if id == discordID {
			return true
		}
	}
	return false
}

// IsHouse reports whether the Discord ID is the automated house player
func (c *Config) IsHouse(discordID int64) bool {
	return c.HouseDiscordID != 0 && c.HouseDiscordID == discordID
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		// If DatabaseName is provided, ensure it's not empty
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
		}
		if config.MaxActiveLoans < 1 {
			return nil, fmt.Errorf("LOANS_MAX_ACTIVE_PER_USER must be at least 1")
		}
		if config.LoanMinAmount > config.LoanMaxAmount {
			return nil, fmt.Errorf("LOANS_MIN_AMOUNT cannot exceed LOANS_MAX_AMOUNT")
		}
		if config.LoanDefaultTermDays < 1 || config.LoanDefaultTermDays > config.LoanMaxTermDays {
			return nil, fmt.Errorf("LOANS_DEFAULT_TERM_DAYS must be between 1 and LOANS_MAX_TERM_DAYS")
		}
		if config.LoanP2PMaxTermDays < 1 {
			return nil, fmt.Errorf("LOANS_P2P_MAX_TERM_DAYS must be at least 1")
		}
		if config.TransferTaxPct < 0 || config.TransferTaxPct >= 100 {
			return nil, fmt.Errorf("TRANSFER_TAX_PCT must be in [0, 100)")
		}
	}

	return config, nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:         "test",
		StartingBalance:     2500,
		TransferTaxPct:      2.0,
		DailyCooldownHours:  20,
		WeeklyCooldownDays:  7,
		WorkCooldownMinutes: 30,
		OwnerDiscordIDs:     []int64{999999}, // Default test owner ID
		HouseDiscordID:      424242,
		MaxActiveLoans:      3,
		LoanMinAmount:       100,
		LoanMaxAmount:       50000,
		LoanMaxTermDays:     14,
		LoanP2PMaxTermDays:  14,
		LoanDefaultTermDays: 7,
		P2PMaxInterestPct:   30,
		LoanHistoryLimit:    15,
		XPPerGame:           25,
		XPBonusWin:          25,
		XPBonusLoss:         10,
		XPPerPvPGame:        35,
		XPBonusPvPWin:       35,
		XPBonusPvPLoss:      15,
		DuelSweepCron:       "*/5 * * * * *",
		LoanSweepCron:       "0 */10 * * * *",
		HTTPAddr:            ":0",
		LogLevel:            "debug",
	}
}

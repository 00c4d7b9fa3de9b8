// Package config loads worker configuration from the environment.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration values. Every knob has a default so the
// worker starts with nothing but a database DSN.
type Config struct {
	BaseURL     string        `mapstructure:"BASE_URL"`
	HTTPTimeout time.Duration `mapstructure:"HTTP_TIMEOUT"`

	DatabaseDSN   string `mapstructure:"DATABASE_DSN"`
	AccountsLimit int    `mapstructure:"ACCOUNTS_LIMIT"`
	Migrate       bool   `mapstructure:"MIGRATE"`

	BatchSize int           `mapstructure:"BATCH_SIZE"`
	Interval  time.Duration `mapstructure:"INTERVAL"`
	RunOnce   bool          `mapstructure:"RUN_ONCE"`

	DeviceID        string `mapstructure:"DEVICE_ID"`
	DataDir         string `mapstructure:"DATA_DIR"`
	StorePassphrase string `mapstructure:"STORE_PASSPHRASE"`

	OTPTimeout     time.Duration `mapstructure:"OTP_TIMEOUT"`
	OTPPoll        time.Duration `mapstructure:"OTP_POLL"`
	OTPVerifyRetry int           `mapstructure:"OTP_VERIFY_RETRY"`
	VerifyWindow   time.Duration `mapstructure:"VERIFY_WINDOW"`
	ResendWindow   time.Duration `mapstructure:"RESEND_WINDOW"`
	MaxResend      int           `mapstructure:"MAX_RESEND"`

	AutoFetchOTP bool   `mapstructure:"AUTO_FETCH_OTP"`
	AutoResend   bool   `mapstructure:"AUTO_RESEND"`
	PromptOTP    bool   `mapstructure:"PROMPT_OTP"`
	OTPDebugPath string `mapstructure:"OTP_DEBUG_PATH"`

	AccessTTL  time.Duration `mapstructure:"ACCESS_TTL"`
	RefreshTTL time.Duration `mapstructure:"REFRESH_TTL"`

	LogLevel             string `mapstructure:"LOG_LEVEL"`
	LogConsole           bool   `mapstructure:"LOG_CONSOLE"`
	LogVerbose           bool   `mapstructure:"LOG_VERBOSE"`
	LogDir               string `mapstructure:"LOG_DIR"`
	LogRetentionDays     int    `mapstructure:"LOG_RETENTION_DAYS"`
	LogOTPPlaintext      bool   `mapstructure:"LOG_OTP_PLAINTEXT"`
	LogPasswordPlaintext bool   `mapstructure:"LOG_PASSWORD_PLAINTEXT"`
}

// Load reads a .env file when present, then the process environment.
func Load() (*Config, error) {
	// Missing .env is fine; the environment is authoritative anyway.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("BASE_URL", "http://localhost:3001")
	v.SetDefault("HTTP_TIMEOUT", 20*time.Second)

	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("ACCOUNTS_LIMIT", 1000)
	v.SetDefault("MIGRATE", false)

	v.SetDefault("BATCH_SIZE", 5)
	v.SetDefault("INTERVAL", time.Minute)
	v.SetDefault("RUN_ONCE", false)

	v.SetDefault("DEVICE_ID", "")
	v.SetDefault("DATA_DIR", "data")
	v.SetDefault("STORE_PASSPHRASE", "")

	v.SetDefault("OTP_TIMEOUT", 30*time.Second)
	v.SetDefault("OTP_POLL", 300*time.Millisecond)
	v.SetDefault("OTP_VERIFY_RETRY", 5)
	v.SetDefault("VERIFY_WINDOW", 3*time.Minute)
	v.SetDefault("RESEND_WINDOW", 2*time.Minute)
	v.SetDefault("MAX_RESEND", 2)

	v.SetDefault("AUTO_FETCH_OTP", true)
	v.SetDefault("AUTO_RESEND", true)
	v.SetDefault("PROMPT_OTP", false)
	v.SetDefault("OTP_DEBUG_PATH", "/auth/debug/redis-otp")

	v.SetDefault("ACCESS_TTL", time.Minute)
	v.SetDefault("REFRESH_TTL", 10*time.Minute)

	v.SetDefault("LOG_LEVEL", "debug")
	v.SetDefault("LOG_CONSOLE", false)
	v.SetDefault("LOG_VERBOSE", false)
	v.SetDefault("LOG_DIR", "data/logs")
	v.SetDefault("LOG_RETENTION_DAYS", 7)
	v.SetDefault("LOG_OTP_PLAINTEXT", false)
	v.SetDefault("LOG_PASSWORD_PLAINTEXT", false)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LogFields is the one-time config snapshot logged on the first run.
// The DSN is omitted: it may embed credentials.
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("baseURL", c.BaseURL),
		zap.Int("accountsLimit", c.AccountsLimit),
		zap.Int("batchSize", c.BatchSize),
		zap.Duration("interval", c.Interval),
		zap.Bool("runOnce", c.RunOnce),
		zap.Bool("autoFetchOTP", c.AutoFetchOTP),
		zap.Bool("autoResend", c.AutoResend),
		zap.Bool("promptOTP", c.PromptOTP),
		zap.Duration("otpTimeout", c.OTPTimeout),
		zap.Duration("otpPoll", c.OTPPoll),
		zap.Int("otpVerifyRetry", c.OTPVerifyRetry),
		zap.Duration("verifyWindow", c.VerifyWindow),
		zap.Duration("resendWindow", c.ResendWindow),
		zap.Int("maxResend", c.MaxResend),
		zap.String("otpDebugPath", c.OTPDebugPath),
		zap.Duration("accessTTL", c.AccessTTL),
		zap.Duration("refreshTTL", c.RefreshTTL),
		zap.String("logLevel", c.LogLevel),
		zap.Bool("logVerbose", c.LogVerbose),
	}
}

package authgate

import (
	"errors"
	"time"
)

// Config is the immutable engine configuration. Zero values are filled
// with defaults by [Builder]; Validate runs once at Build.
type Config struct {
	OTP         OTPConfig
	ResetToken  ResetTokenConfig
	Throttle    ThrottleConfig
	Password    PasswordConfig
	Token       TokenConfig
	Notify      NotifyConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
	RedisPrefix string
}

// OTPConfig controls one-time-password generation.
type OTPConfig struct {
	// Digits is the code length. Default 6, bounds 4..10.
	Digits int
	// Validity is the window in which a generated code verifies.
	// Default 5 minutes.
	Validity time.Duration
}

// ResetTokenConfig controls password-reset tokens.
type ResetTokenConfig struct {
	// Length of the random token. Default 60.
	Length int
	// TTL of the cached token. Default 5 minutes.
	TTL time.Duration
}

// ThrottleConfig controls the per-email OTP request limiter.
type ThrottleConfig struct {
	// MaxAttempts within one decay window. Default 1.
	MaxAttempts int
	// Decay is the window length. Default 60 seconds.
	Decay time.Duration
}

// PasswordConfig carries argon2id parameters.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// TokenConfig controls bearer-token issuance.
type TokenConfig struct {
	// TTL of issued tokens. Default 30 days.
	TTL time.Duration
}

// NotifyConfig tunes the async OTP delivery queue.
type NotifyConfig struct {
	BufferSize int
	DropIfFull bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		OTP: OTPConfig{
			Digits:   6,
			Validity: 5 * time.Minute,
		},
		ResetToken: ResetTokenConfig{
			Length: 60,
			TTL:    5 * time.Minute,
		},
		Throttle: ThrottleConfig{
			MaxAttempts: 1,
			Decay:       60 * time.Second,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        2,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Token: TokenConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Notify: NotifyConfig{
			BufferSize: 64,
			DropIfFull: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks config bounds. Called by [Builder.Build] after
// defaults are applied.
func (c *Config) Validate() error {
	if c.OTP.Digits < 4 || c.OTP.Digits > 10 {
		return errors.New("OTP.Digits must be between 4 and 10")
	}
	if c.OTP.Validity <= 0 {
		return errors.New("OTP.Validity must be positive")
	}
	if c.ResetToken.Length < 16 || c.ResetToken.Length > 128 {
		return errors.New("ResetToken.Length must be between 16 and 128")
	}
	if c.ResetToken.TTL <= 0 {
		return errors.New("ResetToken.TTL must be positive")
	}
	if c.Throttle.MaxAttempts <= 0 {
		return errors.New("Throttle.MaxAttempts must be positive")
	}
	if c.Throttle.Decay <= 0 {
		return errors.New("Throttle.Decay must be positive")
	}
	if c.Token.TTL <= 0 {
		return errors.New("Token.TTL must be positive")
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := defaultConfig()
	if c.OTP.Digits == 0 {
		c.OTP.Digits = def.OTP.Digits
	}
	if c.OTP.Validity == 0 {
		c.OTP.Validity = def.OTP.Validity
	}
	if c.ResetToken.Length == 0 {
		c.ResetToken.Length = def.ResetToken.Length
	}
	if c.ResetToken.TTL == 0 {
		c.ResetToken.TTL = def.ResetToken.TTL
	}
	if c.Throttle.MaxAttempts == 0 {
		c.Throttle.MaxAttempts = def.Throttle.MaxAttempts
	}
	if c.Throttle.Decay == 0 {
		c.Throttle.Decay = def.Throttle.Decay
	}
	if c.Password.Memory == 0 {
		c.Password = def.Password
	}
	if c.Token.TTL == 0 {
		c.Token.TTL = def.Token.TTL
	}
	if c.Notify.BufferSize == 0 {
		c.Notify = def.Notify
	}
	if c.Audit.BufferSize == 0 {
		c.Audit.BufferSize = def.Audit.BufferSize
	}
	return c
}

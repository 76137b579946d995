package authgate

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mwillfox/authgate/internal/rate"
	"github.com/mwillfox/authgate/internal/stores"
	"github.com/mwillfox/authgate/notify"
	"github.com/mwillfox/authgate/password"
	"github.com/mwillfox/authgate/token"
)

// Builder assembles an [Engine]. Redis and a [UserProvider] are
// mandatory; everything else has defaults. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	userProvider UserProvider
	tokenIssuer  token.Issuer
	notifier     notify.Notifier
	auditSink    AuditSink

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg.withDefaults()
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithTokenIssuer overrides the default opaque issuer, e.g. with
// [token.JWTIssuer].
func (b *Builder) WithTokenIssuer(issuer token.Issuer) *Builder {
	b.tokenIssuer = issuer
	return b
}

// WithNotifier sets the OTP delivery backend. Without one, generated
// codes are stored but not sent.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}

	prefix := cfg.RedisPrefix
	if prefix == "" {
		prefix = "ag"
	}

	engine := &Engine{
		config:       cfg,
		userProvider: b.userProvider,
		otpStore:     stores.NewOTPStore(b.redis, prefix+"otp"),
		resetStore:   stores.NewResetTokenStore(b.redis, prefix+"rst"),
		limiter:      rate.New(b.redis, prefix+"rl"),
		metrics:      NewMetrics(cfg.Metrics),
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		now:          time.Now,
	}

	engine.tokens = b.tokenIssuer
	if engine.tokens == nil {
		engine.tokens = token.NewOpaqueIssuer(b.redis, prefix+"tok", cfg.Token.TTL)
	}

	if b.notifier != nil {
		engine.notifier = notify.NewDispatcher(notify.DispatcherConfig{
			BufferSize: cfg.Notify.BufferSize,
			DropIfFull: cfg.Notify.DropIfFull,
		}, b.notifier, nil)
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.hasher = ph

	b.built = true

	return engine, nil
}

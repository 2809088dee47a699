package sessiontrust

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/sessiontrust/internal/audit"
	"github.com/MrEthical07/sessiontrust/internal/rate"
	"github.com/MrEthical07/sessiontrust/jwt"
	"github.com/MrEthical07/sessiontrust/password"
	"github.com/MrEthical07/sessiontrust/session"
)

const tracerName = "github.com/MrEthical07/sessiontrust"

// Builder assembles an [Engine]. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts AccountStore
	tokens   TokenStore
	notifier Notifier

	logger         logrus.FieldLogger
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
	auditSink      AuditSink
	clock          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis enables the Redis-backed pieces: the login throttle and, unless
// WithTokenStore is used, a [session.RedisStore] for session tokens.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.tokens = store
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the logger for best-effort failures. Without one, the engine
// logs nothing.
func (b *Builder) WithLogger(logger logrus.FieldLogger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsRegisterer exports the engine counters on reg.
func (b *Builder) WithMetricsRegisterer(reg prometheus.Registerer) *Builder {
	b.registerer = reg
	return b
}

// WithTracerProvider sets the provider for engine spans. The global provider is
// used otherwise.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithAuditSink sets where audit events go. With auditing enabled and no sink,
// events are logged through the engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for token issue times and challenge expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// Build validates the configuration and returns the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}

	tokens := b.tokens
	if tokens == nil {
		if b.redis == nil {
			return nil, errors.New("token store or redis client required")
		}
		tokens = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix)
	}

	logger := b.logger
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}
	logger = logger.WithField("component", "sessiontrust")

	hasher, err := password.NewArgon2(cfg.hashingConfig())
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwtConfig(cfg.Token, b.clock))
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(b.registerer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	engine := &Engine{
		config:   cfg,
		accounts: b.accounts,
		tokens:   tokens,
		notifier: b.notifier,
		jwt:      jm,
		hasher:   hasher,
		policy:   password.Policy{MinLength: cfg.Password.MinLength},
		cookies: session.NewCookieManager(session.CookieConfig{
			Name:   cfg.Cookie.Name,
			Path:   cfg.Cookie.Path,
			Domain: cfg.Cookie.Domain,
			Secure: cfg.Cookie.Secure,
			MaxAge: cfg.Token.Lifetime,
		}),
		limiter: rate.New(b.redis, rate.Config{
			KeyPrefix:             cfg.Session.RedisPrefix,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldown,
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
		}),
		metrics: metrics,
		tracer:  tp.Tracer(tracerName),
		logger:  logger,
		clock:   b.clock,
	}

	sink := b.auditSink
	if sink == nil {
		sink = audit.NewLogrusSink(logger)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(audit.Event) {
			metrics.Observe("audit", "dropped")
		},
	}, sink)

	b.built = true
	return engine, nil
}

func jwtConfig(c TokenConfig, clock func() time.Time) jwt.Config {
	method := jwt.SigningMethod(strings.ToLower(c.SigningMethod))
	out := jwt.Config{
		Lifetime:      c.Lifetime,
		SigningMethod: method,
		Issuer:        c.Issuer,
		Leeway:        c.Leeway,
		PrivateKey:    []byte(c.Secret),
		Clock:         clock,
	}
	if method == jwt.MethodEd25519 {
		out.PublicKey = []byte(c.PublicKey)
	}
	return out
}

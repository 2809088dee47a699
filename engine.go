package sessiontrust

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/sessiontrust/internal/audit"
	"github.com/MrEthical07/sessiontrust/internal/flows"
	"github.com/MrEthical07/sessiontrust/internal/rate"
	"github.com/MrEthical07/sessiontrust/jwt"
	"github.com/MrEthical07/sessiontrust/password"
	"github.com/MrEthical07/sessiontrust/session"
)

// Engine runs the login, two-factor, password reset, and session flows.
//
// Build an Engine with [New]. It is safe for concurrent use; per-account
// atomicity is delegated to the configured [AccountStore] and [TokenStore].
type Engine struct {
	config   Config
	accounts AccountStore
	tokens   TokenStore
	notifier Notifier

	jwt     *jwt.Manager
	hasher  *password.Argon2
	policy  password.Policy
	cookies *session.CookieManager
	limiter *rate.Limiter

	audit   *audit.Dispatcher
	metrics *Metrics
	tracer  trace.Tracer
	logger  logrus.FieldLogger
	clock   func() time.Time
}

// Close drains pending audit events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current operation counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Operations: map[OperationKey]uint64{}}
	}
	s := e.metrics.Snapshot()
	s.AuditDropped = e.audit.Dropped()
	return s
}

// Cookies returns the manager for the session cookie. Its Max-Age matches the
// token lifetime.
func (e *Engine) Cookies() *session.CookieManager {
	if e == nil {
		return nil
	}
	return e.cookies
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return e.config
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock()
}

// span starts a trace span for op; the returned func ends it and records latency.
func (e *Engine) span(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, sp := e.tracer.Start(ctx, "sessiontrust."+op)
	return ctx, func(err error) {
		if err != nil {
			sp.RecordError(err)
			sp.SetStatus(codes.Error, err.Error())
		}
		sp.End()
		e.metrics.ObserveDuration(op, time.Since(start))
	}
}

func (e *Engine) commonDeps() flows.Common {
	return flows.Common{
		Now:           e.now,
		ClientIP:      clientIPFromContext,
		Logger:        e.logger,
		FindByEmail:   e.accounts.ByEmail,
		FindByID:      e.accounts.ByID,
		UpdateAccount: e.accounts.Update,
		MapStoreError: mapStoreError,
		EmitAudit:     e.emitAudit,
		Observe:       e.metrics.Observe,
		Events:        flowEvents(),
		Errors:        flowErrors(),
	}
}

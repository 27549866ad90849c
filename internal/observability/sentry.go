package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/irfndi/gutsense-go/internal/config"
)

// InitSentry configures the Sentry SDK. It is a no-op when reporting is
// disabled or no DSN is set.
func InitSentry(cfg config.SentryConfig, fallbackRelease string, fallbackEnv string) error {
	if !Enabled(cfg) {
		return nil
	}

	release := cfg.Release
	if release == "" {
		release = fallbackRelease
	}

	environment := cfg.Environment
	if environment == "" {
		environment = fallbackEnv
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      environment,
		Release:          release,
		EnableTracing:    cfg.TracesSampleRate > 0,
		TracesSampleRate: cfg.TracesSampleRate,
		AttachStacktrace: true,
	})
}

// Enabled reports whether cfg turns Sentry reporting on.
func Enabled(cfg config.SentryConfig) bool {
	return cfg.Enabled && cfg.DSN != ""
}

// Flush drains buffered events within the context deadline, or two seconds
// when ctx has none.
func Flush(ctx context.Context) {
	timeout := 2 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout < 0 {
			timeout = 0
		}
	}
	sentry.Flush(timeout)
}

// CaptureException reports err, preferring the hub attached to ctx.
func CaptureException(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// CaptureRunFailure reports a failed correlation run tagged with its trigger.
func CaptureRunFailure(ctx context.Context, trigger string, err error) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "correlation_engine")
		scope.SetTag("trigger", trigger)
		hub.CaptureException(err)
	})
}

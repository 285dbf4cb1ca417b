// Package telemetry wraps Sentry tracing for turns, retrieval and the
// knowledge services.
package telemetry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

const serverName = "gateway"

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init initializes Sentry and returns a flush function. An empty DSN, or a
// DSN Sentry rejects, leaves tracing disabled and returns a no-op.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate <= 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serverName,
		TracesSampler:    sampler(cfg.TracesSampleRate),
	})
	if err != nil {
		log.Warn().Err(err).Msg("sentry: failed to initialize, continuing without tracing")
		return func() {}, nil
	}

	log.Info().Str("environment", cfg.Environment).Float64("sample_rate", cfg.TracesSampleRate).Msg("sentry: tracing initialized")
	return func() { sentry.Flush(5 * time.Second) }, nil
}

// sampler drops health probes and keeps child spans with their parent.
func sampler(rate float64) sentry.TracesSampler {
	return func(ctx sentry.SamplingContext) float64 {
		if ctx.Span.Name == "GET /health" {
			return 0
		}
		var root sentry.SpanID
		if ctx.Span.ParentSpanID != root {
			if ctx.Span.Sampled.Bool() {
				return 1
			}
			return 0
		}
		return rate
	}
}

// SpanAttributes are the tags shared by gateway spans.
type SpanAttributes struct {
	ThreadID  string
	Persona   string
	Node      string
	Operation string
}

// Span is a nil-safe handle on a Sentry span.
type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

// SetError marks the span failed and reports err to the request's hub.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = sentry.SpanStatusInternalError
	if hub := sentry.GetHubFromContext(s.inner.Context()); hub != nil {
		hub.CaptureException(err)
	}
}

// Finish records err, if any, and ends the span.
func (s *Span) Finish(err error) {
	if err != nil {
		s.SetError(err)
	} else if s.inner != nil {
		s.inner.Status = sentry.SpanStatusOK
	}
	s.End()
}

// StartSpan starts a child of the span in ctx, or a new transaction when
// there is none. Orchestrator node spans also leave a breadcrumb so an
// error event shows the path the turn took.
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	if attrs.ThreadID != "" {
		span.SetTag("thread_id", attrs.ThreadID)
	}
	if attrs.Persona != "" {
		span.SetTag("persona", attrs.Persona)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}
	if attrs.Node != "" {
		span.SetTag("node", attrs.Node)
		if hub := sentry.GetHubFromContext(ctx); hub != nil {
			hub.AddBreadcrumb(&sentry.Breadcrumb{
				Category:  "orchestrator",
				Message:   attrs.Node,
				Level:     sentry.LevelInfo,
				Timestamp: time.Now(),
			}, nil)
		}
	}

	return span.Context(), &Span{inner: span}
}

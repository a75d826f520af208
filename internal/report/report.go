// Package report sends failed attestation attempts to Sentry. Reporting is
// opt-in; a disabled Reporter drops everything.
package report

import (
	"errors"
	"time"

	"github.com/backkem/homekey-reader/pkg/homekey"
	"github.com/getsentry/sentry-go"
)

// Options configures a Reporter.
type Options struct {
	Enabled     bool
	DSN         string
	Environment string
	Release     string

	// BeforeSend, if set, sees every event before it is sent.
	BeforeSend func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event
}

// Reporter captures attestation failures.
type Reporter struct {
	hub *sentry.Hub
}

// New creates a Reporter. With Enabled false it returns a no-op Reporter.
func New(opts Options) (*Reporter, error) {
	if !opts.Enabled {
		return &Reporter{}, nil
	}
	environment := opts.Environment
	if environment == "" {
		environment = "production"
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Release:          "homekey-reader@" + opts.Release,
		Environment:      environment,
		AttachStacktrace: false,
		TracesSampleRate: 0.0,
		BeforeSend:       opts.BeforeSend,
	})
	if err != nil {
		return nil, err
	}
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Enabled reports whether events are captured.
func (r *Reporter) Enabled() bool {
	return r.hub != nil
}

// CaptureAttestation reports a failed attempt, tagged with the failing step
// and kind. Only the error text and the endpoint identifier are sent.
func (r *Reporter) CaptureAttestation(err error, endpointID string) {
	if r.hub == nil || err == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "attestation")
		scope.SetTag("endpoint", endpointID)
		var attestErr *homekey.AttestError
		if errors.As(err, &attestErr) {
			scope.SetTag("step", attestErr.Step.String())
			scope.SetTag("kind", attestErr.Kind.Error())
		}
		r.hub.CaptureException(err)
	})
}

// Flush waits up to timeout for queued events.
func (r *Reporter) Flush(timeout time.Duration) bool {
	if r.hub == nil {
		return true
	}
	return r.hub.Flush(timeout)
}

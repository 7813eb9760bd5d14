// Package telemetry provides optional Sentry error reporting for faultline.
// When enabled it attaches itself to the errors package reporting hook so that
// every enhanced error built anywhere in the application is captured with its
// component, category and context metadata.
package telemetry

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/faultline/faultline/internal/conf"
	"github.com/faultline/faultline/internal/errors"
)

var initialized atomic.Bool

// Init configures the Sentry SDK from settings and installs the error reporter.
// It is a no-op when Sentry is disabled in the settings.
func Init(settings *conf.Settings, version string) error {
	if !settings.Sentry.Enabled {
		slog.Debug("Sentry telemetry disabled in settings")
		return nil
	}
	if settings.Sentry.DSN == "" {
		return errors.Newf("sentry enabled but no DSN configured").
			Category(errors.CategoryConfiguration).
			Component("telemetry").
			Build()
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         settings.Sentry.DSN,
		Environment: settings.Sentry.Environment,
		Release:     fmt.Sprintf("faultline@%s", version),
		Debug:       settings.Sentry.Debug,
		ServerName:  settings.Main.Name,
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	initialized.Store(true)
	errors.SetTelemetryReporter(&sentryReporter{})
	slog.Info("Sentry telemetry initialized", "environment", settings.Sentry.Environment)
	return nil
}

// Flush waits for buffered events to be sent. Call before process exit.
func Flush(timeout time.Duration) {
	if initialized.Load() {
		sentry.Flush(timeout)
	}
}

// sentryReporter forwards enhanced errors to Sentry with their metadata.
type sentryReporter struct{}

// ReportError implements errors.ErrorReporter
func (r *sentryReporter) ReportError(ee *errors.EnhancedError) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		if ee.Priority != "" {
			scope.SetTag("priority", ee.Priority)
		}
		if len(ee.Context) > 0 {
			scope.SetContext("error_context", ee.Context)
		}
		scope.SetLevel(levelFor(ee.Priority))
		sentry.CaptureException(ee.Err)
	})
}

func levelFor(priority string) sentry.Level {
	switch priority {
	case errors.PriorityCritical:
		return sentry.LevelFatal
	case errors.PriorityHigh:
		return sentry.LevelError
	case errors.PriorityLow:
		return sentry.LevelInfo
	default:
		return sentry.LevelWarning
	}
}

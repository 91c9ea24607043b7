package logger

import (
	"time"
)

// LogRequest writes one access log line for a served HTTP request.
// Level follows the status class.
func LogRequest(l Logger, requestID, method, path string, status int, duration time.Duration) {
	fields := map[string]interface{}{
		"request_id": requestID,
		"method":     method,
		"path":       path,
		"status":     status,
		"duration":   duration,
	}

	switch {
	case status >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case status >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.InfoWithFields("HTTP request completed", fields)
	}
}

// LogLogin records the outcome of a login or two-factor attempt
func LogLogin(l Logger, username, step, outcome string) {
	l.InfoWithFields("Login attempt finished", map[string]interface{}{
		"username": username,
		"step":     step,
		"outcome":  outcome,
	})
}

// LogAccessMode records whether a read was served with a session or anonymously
func LogAccessMode(l Logger, identity, mode, reason string) {
	fields := map[string]interface{}{
		"identity": identity,
		"mode":     mode,
	}
	if reason != "" {
		fields["reason"] = reason
	}
	l.DebugWithFields("Access resolved", fields)
}

// LogRateLimit logs rate limiting events
func LogRateLimit(l Logger, endpoint string, retryAfter time.Duration) {
	l.WithFields(map[string]interface{}{
		"endpoint":    endpoint,
		"retry_after": retryAfter,
		"action":      "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogComponentStart records a long running component coming up along with
// the settings it runs with
func LogComponentStart(l Logger, component string, settings map[string]interface{}) {
	l.WithField("component", component).InfoWithFields("Component started", settings)
}

func LogComponentStop(l Logger, component, reason string) {
	l.WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}

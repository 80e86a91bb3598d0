package credentials

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventRegistration         ActivityEventType = "credentials.registration"
	ActivityEventEmailVerified        ActivityEventType = "credentials.email.verified"
	ActivityEventLoginSuccess         ActivityEventType = "session.login.success"
	ActivityEventLoginFailure         ActivityEventType = "session.login.failure"
	ActivityEventTokenRefresh         ActivityEventType = "session.token.refresh"
	ActivityEventLogout               ActivityEventType = "session.logout"
	ActivityEventLogoutAll            ActivityEventType = "session.logout.all"
	ActivityEventPasswordResetRequest ActivityEventType = "credentials.password.reset.request"
	ActivityEventPasswordResetSuccess ActivityEventType = "credentials.password.reset"
)

// ActorRef identifies who triggered an event.
type ActorRef struct {
	ID   string
	Type string
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

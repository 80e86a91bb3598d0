package credentials

import "context"

type noopSender struct{}

var _ NotificationSender = noopSender{}

func (noopSender) SendVerification(context.Context, string, string, string) error {
	return nil
}

func (noopSender) SendPasswordReset(context.Context, string, string, string) error {
	return nil
}

// LogSender writes notification payloads to the logger instead of delivering
// them. Useful for development and tests.
type LogSender struct {
	Logger Logger
}

var _ NotificationSender = LogSender{}

func (s LogSender) SendVerification(ctx context.Context, email, firstName, token string) error {
	s.getLogger().Info("====== SENDING VERIFICATION EMAIL =======")
	s.getLogger().Info("to: %s (%s)", email, firstName)
	s.getLogger().Info("link: /verify-email/%s", token)
	return nil
}

func (s LogSender) SendPasswordReset(ctx context.Context, email, firstName, token string) error {
	s.getLogger().Info("====== SENDING PASSWORD RESET EMAIL =======")
	s.getLogger().Info("to: %s (%s)", email, firstName)
	s.getLogger().Info("link: /password-reset/%s", token)
	return nil
}

func (s LogSender) getLogger() Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return defLogger{}
}

func normalizeSender(s NotificationSender) NotificationSender {
	if s == nil {
		return noopSender{}
	}
	return s
}

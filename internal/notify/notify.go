// Package notify defines the EmailService contract (§6) OrchestratorCore
// and StartupRecovery call on failure; this package never constructs
// transport details itself.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// EmailService is the notification hook invoked on orchestration failure
// and on startup interruption.
type EmailService interface {
	Send(ctx context.Context, subject, body string, attachment []byte) error
}

// LoggingEmailService logs the notification instead of sending mail. It is
// the default wired in cmd/server until a real transport (SMTP, SES, ...)
// is configured.
type LoggingEmailService struct {
	log *zap.SugaredLogger
}

// NewLoggingEmailService builds a LoggingEmailService.
func NewLoggingEmailService(log *zap.SugaredLogger) *LoggingEmailService {
	return &LoggingEmailService{log: log}
}

// Send implements EmailService by logging the notification at warn level.
func (s *LoggingEmailService) Send(ctx context.Context, subject, body string, attachment []byte) error {
	s.log.Warnw("notification", "subject", subject, "body", body, "has_attachment", len(attachment) > 0)
	return nil
}

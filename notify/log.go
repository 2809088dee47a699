package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogNotifier logs every message instead of sending it. Codes and links appear
// in the log, so it must not be used in production.
type LogNotifier struct {
	logger logrus.FieldLogger
}

func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogNotifier{logger: logger.WithField("component", "notify")}
}

func (n *LogNotifier) SendTwoFactorCode(_ context.Context, email, code string) error {
	n.logger.WithFields(logrus.Fields{"to": email, "code": code}).Info("two-factor code")
	return nil
}

func (n *LogNotifier) SendPasswordResetLink(_ context.Context, email, link string) error {
	n.logger.WithFields(logrus.Fields{"to": email, "link": link}).Info("password reset link")
	return nil
}

func (n *LogNotifier) SendPasswordChanged(_ context.Context, email string) error {
	n.logger.WithField("to", email).Info("password changed notice")
	return nil
}

package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes notifications to the logger instead of delivering them.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, body, senderName string) error {
	s.logger.Info("email notification",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("sender", senderName),
		zap.Int("body_length", len(body)),
	)
	return nil
}

func (s *LogSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info("sms notification", zap.String("to", to), zap.String("body", body))
	return nil
}

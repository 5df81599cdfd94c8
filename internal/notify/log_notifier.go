package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Proton-105/pricechek-rider/pkg/metrics"
)

// LogNotifier only logs messages. It is selected explicitly with notifier.driver=log.
type LogNotifier struct {
	countryCode string
	log         *slog.Logger
}

func NewLogNotifier(countryCode string, log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}

	return &LogNotifier{countryCode: countryCode, log: log}
}

func (n *LogNotifier) Send(ctx context.Context, msg *Message) error {
	msg.ID = "log-" + uuid.NewString()

	n.log.InfoContext(ctx, "sms not sent, log notifier active",
		slog.String("recipient", NormalizePhone(msg.To, n.countryCode)),
		slog.String("from", msg.From),
		slog.String("message_id", msg.ID),
		slog.String("body", msg.Body),
	)
	metrics.RecordNotification("logged")

	return nil
}

package notify

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// LogNotifier writes the recipient and subject of each message to the log.
// The body is never logged since it may carry a reset code. It is used when
// no mail account is configured.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.Warn(ctx, "mail delivery disabled, message dropped", "to", msg.To, "subject", msg.Subject)
	return nil
}

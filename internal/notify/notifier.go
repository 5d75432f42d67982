package notify

import (
	"context"
	"log"

	"github.com/violet-hub/keygate/utils"
)

// Notifier delivers a private message to an identity. Delivery is advisory:
// callers log failures and carry on, they never roll state back.
type Notifier interface {
	SendDM(ctx context.Context, identity, content string) error
}

// LogNotifier is the fallback used when no Discord token is configured. It
// records the message server-side and reports success.
type LogNotifier struct{}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) SendDM(_ context.Context, identity, content string) error {
	log.Printf("[Notify] (dry-run) to %s: %s", utils.SanitizeLogMessage(identity), utils.SanitizeLogMessage(content))
	return nil
}

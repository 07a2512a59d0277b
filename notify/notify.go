/*
Package notify provides the outbound notification collaborator.

PURPOSE:
  The engine fires a notification after every bonus lifecycle transition.
  Delivery is an external concern (email, chat, whatever ops wires up);
  the engine only sees the narrow Notifier interface and treats every
  failure as best-effort.

IMPLEMENTATIONS:
  LogNotifier: writes to the process log. The default, and what dev and
  tests run with. A real deployment substitutes an SMTP or webhook
  implementation without the engine noticing.
*/
package notify

import (
	"context"
	"log"
	"strings"
)

// LogNotifier logs notifications instead of delivering them.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify writes the would-be message to the log.
func (n *LogNotifier) Notify(_ context.Context, recipients []string, subject, body string) error {
	log.Printf("[Notify] to=%s subject=%q body=%q", strings.Join(recipients, ","), subject, body)
	return nil
}

package delivery

import "context"

// EmailSender sends a single message to a single address. Implementations
// report failure through the returned error but must never panic; the caller
// treats each send as fire-and-forget with a boolean outcome.
type EmailSender interface {
	Send(address, subject, body string) error
}

// PushSender delivers one notification to a set of device tokens. It returns
// the number of successful deliveries and the tokens the provider reported as
// no longer registered, so the caller can prune them.
type PushSender interface {
	SendToTokens(ctx context.Context, tokens []string, title, body string) (sent int, staleTokens []string, err error)
}

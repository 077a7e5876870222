// internal/domain/notification/sender.go
package notification

import "context"

// Sender delivers a templated reminder and returns the provider's message ID.
// Implementations live in infra so the reminder loop never depends on a provider SDK.
type Sender interface {
	Send(ctx context.Context, recipient string, kind TemplateKind, vars Variables) (string, error)
}

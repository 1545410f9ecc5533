// Package publisher emits run-completion events to an external broker.
package publisher

import "context"

// Noop drops events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, topic string, payload any) (string, error) {
	return "", nil
}

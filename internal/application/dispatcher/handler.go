package dispatcher

import (
	"context"

	"github.com/G1r1shCodes/BimaBot/internal/domain/event"
)

// Handler reacts to a session event
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}

package billing

import (
	"context"
	"sort"

	"github.com/wekeepgrowing/semo-backend-monorepo/billing-sync/internal/domain/entity"
	"go.uber.org/zap"
)

// HandlerFunc handles one event type
type HandlerFunc func(ctx context.Context, n *entity.Notification) Result

// Router dispatches notifications by type. The table is fixed at construction.
type Router struct {
	handlers map[string]HandlerFunc
	logger   *zap.Logger
}

// NewRouter copies the route table so later changes to routes have no effect.
func NewRouter(routes map[string]HandlerFunc, logger *zap.Logger) *Router {
	handlers := make(map[string]HandlerFunc, len(routes))
	for eventType, handler := range routes {
		handlers[eventType] = handler
	}
	return &Router{
		handlers: handlers,
		logger:   logger,
	}
}

// Dispatch runs the handler registered for n.Type. Unregistered types are a logged no-op.
func (r *Router) Dispatch(ctx context.Context, n *entity.Notification) Result {
	handler, ok := r.handlers[n.Type]
	if !ok {
		r.logger.Info("Ignoring unhandled webhook event",
			zap.String("event_id", n.ID),
			zap.String("event_type", n.Type))
		return Ignored()
	}
	return handler(ctx, n)
}

// Handles reports whether a handler is registered for the type.
func (r *Router) Handles(eventType string) bool {
	_, ok := r.handlers[eventType]
	return ok
}

// Types returns the registered event types, sorted.
func (r *Router) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for eventType := range r.handlers {
		types = append(types, eventType)
	}
	sort.Strings(types)
	return types
}

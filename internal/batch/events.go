package batch

import (
	"sync"

	"go.uber.org/zap"

	"github.com/formweaver/formweaver/api/schemas"
)

// notifier fans batch lifecycle events out to registered listeners.
// Delivery is synchronous and in registration order so event ordering per
// batch is explicit; a misbehaving listener must never take the executor
// down with it, so panics are contained per call.
type notifier struct {
	logger *zap.Logger

	mu        sync.RWMutex
	listeners []schemas.EventListener
}

func newNotifier(logger *zap.Logger) *notifier {
	return &notifier{logger: logger}
}

func (n *notifier) Subscribe(l schemas.EventListener) {
	if l == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// Emit delivers the event to every listener, fire-and-forget.
func (n *notifier) Emit(event schemas.BatchEvent) {
	n.mu.RLock()
	listeners := make([]schemas.EventListener, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.RUnlock()

	for _, l := range listeners {
		n.deliver(l, event)
	}
}

func (n *notifier) deliver(l schemas.EventListener, event schemas.BatchEvent) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Batch event listener panicked",
				zap.String("event_type", string(event.Type)),
				zap.String("batch_id", event.BatchID),
				zap.Any("panic", r))
		}
	}()
	l.OnBatchEvent(event)
}

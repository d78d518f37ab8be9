// Package notify fans out run lifecycle events to registered listeners.
// Delivery is fire-and-forget: a slow or panicking listener never blocks
// or fails the run.
package notify

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"workforce/pkg/models"
)

// Listener receives run lifecycle events.
type Listener interface {
	Notify(event models.Event)
}

// Func adapts a function to the Listener interface.
type Func func(event models.Event)

// Notify implements Listener.
func (f Func) Notify(event models.Event) { f(event) }

// Notifier delivers events to all registered listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *zap.Logger
}

// New creates a notifier.
func New(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{logger: logger}
}

// Register adds a listener for all subsequent events.
func (n *Notifier) Register(l Listener) {
	if l == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// Emit delivers the event to every listener on its own goroutine and
// returns immediately.
func (n *Notifier) Emit(event models.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	n.mu.RLock()
	listeners := make([]Listener, len(n.listeners))
	copy(listeners, n.listeners)
	n.mu.RUnlock()

	for _, l := range listeners {
		go func(l Listener) {
			defer func() {
				if r := recover(); r != nil {
					n.logger.Warn("event listener panicked", zap.Any("panic", r), zap.String("event", string(event.Type)))
				}
			}()
			l.Notify(event)
		}(l)
	}
}

// LogListener returns a listener that logs every event. The CLI
// registers it so run progress is visible without a front-end.
func LogListener(logger *zap.Logger) Listener {
	return Func(func(event models.Event) {
		logger.Info("run event",
			zap.String("type", string(event.Type)),
			zap.String("run_id", event.RunID),
			zap.Int("wave", event.Wave),
			zap.String("message", event.Message))
	})
}

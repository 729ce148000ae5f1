package schemas

import (
	"context"
	"errors"
)

// ErrCaptchaDetected is returned by a RowProcessor when the target page is
// behind a CAPTCHA wall. Batches configured with StopOnCaptcha abort their
// remaining rows when they see it.
var ErrCaptchaDetected = errors.New("captcha detected")

// -- Consumed Capability Interfaces --

// RowProcessor is the external per-row form-fill-and-submit capability. Any
// returned error is treated as a row failure by the batch executor; the
// executor extracts a human-readable message from it and moves on.
type RowProcessor interface {
	ProcessRow(ctx context.Context, profile string, row any) (any, error)
}

// RowProcessorFunc adapts a plain function to the RowProcessor interface.
type RowProcessorFunc func(ctx context.Context, profile string, row any) (any, error)

// ProcessRow implements RowProcessor.
func (f RowProcessorFunc) ProcessRow(ctx context.Context, profile string, row any) (any, error) {
	return f(ctx, profile, row)
}

// BatchStore is the durable persistence collaborator for batch state. Save is
// called after every state-changing operation; a crash between calls loses at
// most the latest unpersisted delta. Implementations need not serialize
// concurrent writers themselves; the executor routes all writes through a
// single ordered queue.
type BatchStore interface {
	Save(ctx context.Context, batchID string, batch *Batch) error
	LoadAll(ctx context.Context) (map[string]*Batch, error)
}

// EventListener receives batch lifecycle events. Delivery is fire-and-forget:
// the executor never waits for acknowledgment and isolates listener panics.
type EventListener interface {
	OnBatchEvent(event BatchEvent)
}

// EventListenerFunc adapts a plain function to the EventListener interface.
type EventListenerFunc func(event BatchEvent)

// OnBatchEvent implements EventListener.
func (f EventListenerFunc) OnBatchEvent(event BatchEvent) { f(event) }

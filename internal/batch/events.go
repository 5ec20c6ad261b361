package batch

import (
	"log/slog"
	"time"
)

// EventKind names a batch event.
type EventKind string

const (
	EventRunStarted    EventKind = "run-started"
	EventRecordUpdated EventKind = "record-updated"
	EventStatsUpdated  EventKind = "stats-updated"
	EventRunFinished   EventKind = "run-finished"
	EventRecordRemoved EventKind = "record-removed"
	EventBatchCleared  EventKind = "batch-cleared"
)

// Event is an immutable notification about a batch change. Record is set for
// record events; Stats always carries the aggregate at emission time.
type Event struct {
	Kind      EventKind   `json:"kind"`
	BatchID   string      `json:"batchId"`
	Record    *FileRecord `json:"file,omitempty"`
	Stats     Stats       `json:"stats"`
	Cancelled bool        `json:"cancelled,omitempty"`
	At        time.Time   `json:"at"`
}

// Subscribe registers a buffered event channel. Delivery never blocks the
// batch: when the buffer is full the event is dropped for that subscriber.
// The returned function unsubscribes and closes the channel.
func (b *Batch) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	b.subsMu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = ch
	b.subsMu.Unlock()

	var once bool
	return ch, func() {
		b.subsMu.Lock()
		defer b.subsMu.Unlock()
		if once {
			return
		}
		once = true
		delete(b.subs, id)
		close(ch)
	}
}

// publish delivers ev to observers (synchronously, in order) and to
// subscribers (non-blocking). Callers hold emitMu.
func (b *Batch) publish(ev Event) {
	for _, obs := range b.observers {
		obs(ev)
	}

	b.subsMu.Lock()
	defer b.subsMu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("event dropped for slow subscriber",
				slog.Int("subscriber", id),
				slog.String("kind", string(ev.Kind)),
			)
		}
	}
}

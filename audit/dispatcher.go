package audit

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

const DefaultBufferSize = 1024

// Dispatcher decouples audit recording from the request path. Record buffers
// the entry and returns immediately; a background worker drains the buffer
// into the wrapped sink. When the buffer is full the entry is dropped and
// counted rather than blocking the authorization decision.
type Dispatcher struct {
	sink    Sink
	logger  *zap.Logger
	entries chan Entry
	dropped atomic.Uint64

	closeOnce sync.Once
	done      chan struct{}
}

func NewDispatcher(sink Sink, bufferSize int, logger *zap.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	d := &Dispatcher{
		sink:    sink,
		logger:  logger,
		entries: make(chan Entry, bufferSize),
		done:    make(chan struct{}),
	}

	go d.drain()

	return d
}

// Record buffers the entry for asynchronous delivery. It never blocks.
func (d *Dispatcher) Record(entry Entry) error {
	select {
	case d.entries <- entry:
	default:
		d.dropped.Add(1)
		d.logger.Warn("Audit buffer full, entry dropped.", zap.String("audit_id", entry.ID))
	}

	return nil
}

// Dropped returns the number of entries dropped due to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close flushes buffered entries and stops the worker.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.entries)
		<-d.done
	})
}

func (d *Dispatcher) drain() {
	defer close(d.done)

	for entry := range d.entries {
		if err := d.sink.Record(entry); err != nil {
			d.logger.Error("Failed to record audit entry.",
				zap.String("audit_id", entry.ID), zap.Error(err))
		}
	}
}
